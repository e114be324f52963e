package rewrite

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tidwall/gjson"
)

func TestEncodeRequestSingleLine(t *testing.T) {
	body, err := encodeRequest(Request{
		Prompt: "tighten this",
		Line:   &LineContext{LineNumber: 4, Text: "\\section{Intro}"},
	})
	if err != nil {
		t.Fatalf("encodeRequest failed: %v", err)
	}

	if got := gjson.GetBytes(body, "prompt").String(); got != "tighten this" {
		t.Errorf("prompt = %q", got)
	}
	if got := gjson.GetBytes(body, "selected_line.line_number").Int(); got != 4 {
		t.Errorf("selected_line.line_number = %d", got)
	}
	if gjson.GetBytes(body, "selected_lines").Exists() {
		t.Error("selected_lines must be absent for a single-line request")
	}
}

func TestEncodeRequestMultiLinePrecedence(t *testing.T) {
	// When both could apply, multi-line wins and selected_line is not
	// sent at all.
	body, err := encodeRequest(Request{
		Prompt: "rework",
		Line:   &LineContext{LineNumber: 2, Text: "B"},
		Lines: []LineContext{
			{LineNumber: 2, Text: "B"},
			{LineNumber: 3, Text: "C"},
		},
	})
	if err != nil {
		t.Fatalf("encodeRequest failed: %v", err)
	}

	if gjson.GetBytes(body, "selected_line").Exists() {
		t.Error("selected_line must be absent when selected_lines is sent")
	}
	lines := gjson.GetBytes(body, "selected_lines")
	if !lines.IsArray() || len(lines.Array()) != 2 {
		t.Errorf("selected_lines = %s", lines.Raw)
	}
}

func TestEncodeRequestNoSelection(t *testing.T) {
	body, err := encodeRequest(Request{Prompt: "hello"})
	if err != nil {
		t.Fatalf("encodeRequest failed: %v", err)
	}
	if gjson.GetBytes(body, "selected_line").Exists() ||
		gjson.GetBytes(body, "selected_lines").Exists() {
		t.Error("no selection context should be sent")
	}
}

func TestServerClientRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if got := gjson.GetBytes(body, "prompt").String(); got != "shorten" {
			t.Errorf("server saw prompt %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("missing request id header")
		}

		json.NewEncoder(w).Encode(map[string]any{
			"reply": "Done, tightened the section.",
			"latex": "\\section{Intro}\nShort.",
		})
	}))
	defer srv.Close()

	c := NewServerClient(srv.URL)
	resp, err := c.Rewrite(context.Background(), Request{
		Prompt: "shorten",
		Lines: []LineContext{
			{LineNumber: 1, Text: "\\section{Introduction}"},
			{LineNumber: 2, Text: "A very long paragraph."},
		},
	})
	if err != nil {
		t.Fatalf("Rewrite failed: %v", err)
	}

	if resp.LaTeX == nil || *resp.LaTeX != "\\section{Intro}\nShort." {
		t.Errorf("latex = %v", resp.LaTeX)
	}
	if resp.Reply == "" {
		t.Error("empty reply")
	}
}

func TestServerClientNullLaTeX(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"reply": "Just an answer, no edit.", "latex": null}`))
	}))
	defer srv.Close()

	resp, err := NewServerClient(srv.URL).Rewrite(context.Background(), Request{Prompt: "explain"})
	if err != nil {
		t.Fatalf("Rewrite failed: %v", err)
	}
	if resp.LaTeX != nil {
		t.Errorf("latex = %q, want nil (no buffer mutation)", *resp.LaTeX)
	}
}

func TestServerClientErrorBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"json error", `{"error": "model overloaded"}`, "model overloaded"},
		{"bare string", `out of capacity`, "out of capacity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewServerClient(srv.URL).Rewrite(context.Background(), Request{Prompt: "x"})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want to contain %q", err, tt.want)
			}
		})
	}
}

func TestExtractReplacement(t *testing.T) {
	ptr := func(s string) *string { return &s }

	tests := []struct {
		name  string
		reply string
		want  *string
	}{
		{
			"latex fence",
			"Here you go:\n```latex\n\\section{A}\nBody.\n```\nAnything else?",
			ptr("\\section{A}\nBody."),
		},
		{
			"plain fence",
			"```\n\\item one\n```",
			ptr("\\item one"),
		},
		{
			"json latex field",
			`{"reply": "ok", "latex": "\\section{B}"}`,
			ptr("\\section{B}"),
		},
		{
			"prose only",
			"That line is already as short as it can be.",
			nil,
		},
		{
			"json null latex",
			`{"reply": "ok", "latex": null}`,
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractReplacement(tt.reply)
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("extractReplacement = %q, want nil", *got)
			case tt.want != nil && got == nil:
				t.Errorf("extractReplacement = nil, want %q", *tt.want)
			case tt.want != nil && got != nil && *got != *tt.want:
				t.Errorf("extractReplacement = %q, want %q", *got, *tt.want)
			}
		})
	}
}

func TestContextBlockPrecedence(t *testing.T) {
	req := Request{
		Line:  &LineContext{LineNumber: 1, Text: "single"},
		Lines: []LineContext{{LineNumber: 1, Text: "first"}, {LineNumber: 2, Text: "second"}},
	}

	block := contextBlock(req)
	if !strings.Contains(block, "first") || strings.Contains(block, "single") {
		t.Errorf("contextBlock should prefer multi-line context, got %q", block)
	}
}

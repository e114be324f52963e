// Package rewrite turns a natural-language request about the selected
// lines into replacement text for that line range.
//
// Two kinds of backends serve the boundary: the study-sheet server's
// chat endpoint, and direct LLM providers. All of them implement
// Provider; the orchestrator neither knows nor cares which is wired.
package rewrite

import (
	"context"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// LineContext carries one selected source line to the service.
type LineContext struct {
	LineNumber int    `json:"line_number"`
	Text       string `json:"text"`
}

// Request is a rewrite request. Line and Lines are mutually exclusive
// in practice: a multi-line selection takes precedence and only Lines
// is sent, a single active line sends only Line.
type Request struct {
	Prompt string
	Line   *LineContext
	Lines  []LineContext
}

// Response is the service's answer. LaTeX non-nil means the selected
// range should be replaced with its value via an animated edit;
// nil means the reply is conversational only and the buffer is not
// touched.
type Response struct {
	Reply        string       `json:"reply"`
	SelectedLine *LineContext `json:"selected_line"`
	LaTeX        *string      `json:"latex"`
}

// Provider serves rewrite requests.
type Provider interface {
	Rewrite(ctx context.Context, req Request) (*Response, error)
}

var fencedBlock = regexp.MustCompile("(?s)```(?:latex|tex)?\\s*\\n?(.*?)```")

// extractReplacement pulls replacement text out of a raw model reply.
// Direct providers have no structured response contract, so this
// accepts either a fenced code block or a JSON object with a "latex"
// field. Returns nil when the reply carries no replacement.
func extractReplacement(reply string) *string {
	if m := fencedBlock.FindStringSubmatch(reply); m != nil {
		text := strings.TrimRight(m[1], "\n")
		return &text
	}

	if gjson.Valid(reply) {
		if v := gjson.Get(reply, "latex"); v.Exists() && v.Type == gjson.String {
			text := v.String()
			return &text
		}
	}

	return nil
}

// contextBlock renders the selection context for a direct provider
// prompt.
func contextBlock(req Request) string {
	var b strings.Builder

	switch {
	case len(req.Lines) > 0:
		b.WriteString("Selected lines:\n")
		for _, l := range req.Lines {
			b.WriteString(formatLine(l))
		}
	case req.Line != nil:
		b.WriteString("Selected line:\n")
		b.WriteString(formatLine(*req.Line))
	}

	return b.String()
}

func formatLine(l LineContext) string {
	var b strings.Builder
	b.WriteString("  ")
	b.WriteString(strings.TrimRight(l.Text, "\n"))
	b.WriteString("\n")
	return b.String()
}

// systemPrompt instructs direct providers to answer in a shape
// extractReplacement understands.
const systemPrompt = `You are a LaTeX study-sheet editor. The user will show you ` +
	`selected lines from a LaTeX document and ask for a change. When the request ` +
	`calls for editing the selection, answer with the full replacement for exactly ` +
	`those lines inside a fenced code block marked latex. When no edit is needed, ` +
	`answer in plain prose with no code block.`

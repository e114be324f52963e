package hook

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeScript(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hook.lua")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTransformRewritesText(t *testing.T) {
	path := writeScript(t, `
function transform_rewrite(latex, start_line, end_line)
    return "% lines " .. start_line .. "-" .. end_line .. "\n" .. latex
end
`)
	r, err := New(path)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer r.Close()

	got, err := r.Transform(context.Background(), "\\section{A}", 2, 4)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	want := "% lines 2-4\n\\section{A}"
	if got != want {
		t.Errorf("Transform = %q, want %q", got, want)
	}
}

func TestTransformNilKeepsInput(t *testing.T) {
	path := writeScript(t, `
function transform_rewrite(latex, start_line, end_line)
    return nil
end
`)
	r, err := New(path)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer r.Close()

	got, err := r.Transform(context.Background(), "unchanged", 1, 1)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	if got != "unchanged" {
		t.Errorf("Transform = %q, want input back", got)
	}
}

func TestTransformWrongReturnType(t *testing.T) {
	path := writeScript(t, `
function transform_rewrite(latex, start_line, end_line)
    return 42
end
`)
	r, err := New(path)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer r.Close()

	if _, err := r.Transform(context.Background(), "x", 1, 1); !errors.Is(err, ErrHookFailed) {
		t.Errorf("err = %v, want ErrHookFailed", err)
	}
}

func TestNewRejectsMissingFunction(t *testing.T) {
	path := writeScript(t, `x = 1`)
	if _, err := New(path); !errors.Is(err, ErrHookFailed) {
		t.Errorf("err = %v, want ErrHookFailed", err)
	}
}

func TestNewRejectsBrokenScript(t *testing.T) {
	path := writeScript(t, `function transform_rewrite(`)
	if _, err := New(path); !errors.Is(err, ErrHookFailed) {
		t.Errorf("err = %v, want ErrHookFailed", err)
	}
}

func TestNewMissingFile(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "absent.lua")); err == nil {
		t.Error("expected error for missing script")
	}
}

func TestSandboxStripsLoaders(t *testing.T) {
	path := writeScript(t, `
function transform_rewrite(latex, start_line, end_line)
    if dofile ~= nil or loadfile ~= nil or load ~= nil then
        error("loader escaped the sandbox")
    end
    if os ~= nil or io ~= nil then
        error("os/io escaped the sandbox")
    end
    return latex
end
`)
	r, err := New(path)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer r.Close()

	if _, err := r.Transform(context.Background(), "x", 1, 1); err != nil {
		t.Errorf("Transform failed: %v", err)
	}
}

func TestTransformTimeout(t *testing.T) {
	path := writeScript(t, `
function transform_rewrite(latex, start_line, end_line)
    while true do end
end
`)
	r, err := New(path, WithTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer r.Close()

	start := time.Now()
	_, err = r.Transform(context.Background(), "x", 1, 1)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("runaway script took %v to stop", elapsed)
	}
}

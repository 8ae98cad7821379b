package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultRender(t *testing.T) {
	s := MustDefault()
	out, err := s.Render(EnhanceUser, map[string]any{
		"Prompt":      "a cat surfing",
		"AspectRatio": "9:16",
		"HighQuality": true,
		"Language":    "Spanish",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"a cat surfing", "9:16", "premium quality", "Spanish"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
	if strings.Contains(out, "Source summary") {
		t.Fatalf("unexpected research block: %q", out)
	}
}

func TestLoad_OverrideKeepsMissingDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompts.yaml")
	if err := os.WriteFile(path, []byte("research: \"Summarise {{.URL}} briefly.\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	out, err := s.Render(Research, map[string]any{"URL": "https://example.com"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != "Summarise https://example.com briefly." {
		t.Fatalf("unexpected override output: %q", out)
	}
	if _, err := s.Render(EnhanceSystem, nil); err != nil {
		t.Fatalf("default template should survive override: %v", err)
	}
}

func TestLoad_BadTemplate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompts.yaml")
	if err := os.WriteFile(path, []byte("research: \"{{.URL\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

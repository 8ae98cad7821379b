package prompts

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Templates named in the YAML file.
const (
	EnhanceSystem  = "enhance_system"
	EnhanceUser    = "enhance_user"
	Research       = "research"
	MetadataSystem = "metadata_system"
	MetadataUser   = "metadata_user"
)

type Set struct {
	tmpl map[string]*template.Template
}

// Load parses the embedded defaults and overlays path when it is non-empty.
// Keys missing from the override keep their default.
func Load(path string) (*Set, error) {
	raw := map[string]string{}
	if err := yaml.Unmarshal(defaultYAML, &raw); err != nil {
		return nil, fmt.Errorf("parse default prompts: %w", err)
	}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read prompts file: %w", err)
		}
		override := map[string]string{}
		if err := yaml.Unmarshal(b, &override); err != nil {
			return nil, fmt.Errorf("parse prompts file %s: %w", path, err)
		}
		for k, v := range override {
			if strings.TrimSpace(v) != "" {
				raw[k] = v
			}
		}
	}

	s := &Set{tmpl: make(map[string]*template.Template, len(raw))}
	for name, text := range raw {
		t, err := template.New(name).Option("missingkey=zero").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", name, err)
		}
		s.tmpl[name] = t
	}
	for _, name := range []string{EnhanceSystem, EnhanceUser, Research, MetadataSystem, MetadataUser} {
		if _, ok := s.tmpl[name]; !ok {
			return nil, fmt.Errorf("prompt template %q missing", name)
		}
	}
	return s, nil
}

// MustDefault returns the embedded templates and panics if they do not parse.
func MustDefault() *Set {
	s, err := Load("")
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Set) Render(name string, data any) (string, error) {
	t, ok := s.tmpl[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt template %q", name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

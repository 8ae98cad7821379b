package ai

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/suPer8Hu/ai-prime/internal/prompts"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

type EnhanceRequest struct {
	Prompt      string
	Language    string
	AspectRatio string
	HighQuality bool
}

// Enhancer rewrites a short idea into a detailed cinematic prompt.
type Enhancer struct {
	provider   Provider
	researcher Researcher
	prompts    *prompts.Set
}

// NewEnhancer wires the chat provider. researcher may be nil, in which case URL
// prompts are enhanced as plain text.
func NewEnhancer(provider Provider, researcher Researcher, set *prompts.Set) *Enhancer {
	if set == nil {
		set = prompts.MustDefault()
	}
	return &Enhancer{provider: provider, researcher: researcher, prompts: set}
}

func (e *Enhancer) Enhance(ctx context.Context, req EnhanceRequest) (string, error) {
	original := strings.TrimSpace(req.Prompt)
	if original == "" {
		return "", fmt.Errorf("enhance: empty prompt")
	}

	var research string
	if e.researcher != nil && looksLikeURL(original) {
		q, err := e.prompts.Render(prompts.Research, map[string]any{"URL": original})
		if err != nil {
			return "", err
		}
		research, err = e.researcher.Research(ctx, q)
		if err != nil {
			return "", fmt.Errorf("research %s: %w", original, err)
		}
	}

	system, err := e.prompts.Render(prompts.EnhanceSystem, nil)
	if err != nil {
		return "", err
	}
	user, err := e.prompts.Render(prompts.EnhanceUser, map[string]any{
		"Prompt":      original,
		"AspectRatio": req.AspectRatio,
		"HighQuality": req.HighQuality,
		"Language":    LanguageName(req.Language),
		"Research":    strings.TrimSpace(research),
	})
	if err != nil {
		return "", err
	}

	reply, err := e.provider.Chat(ctx, []Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: user},
	})
	if err != nil {
		return "", err
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		return original, nil
	}
	return reply, nil
}

// LanguageName renders a BCP 47 tag as its English name ("pt-BR" ->
// "Brazilian Portuguese"). Unknown tags are returned unchanged.
func LanguageName(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ""
	}
	t, err := language.Parse(tag)
	if err != nil {
		return tag
	}
	if name := display.English.Tags().Name(t); name != "" {
		return name
	}
	return tag
}

func looksLikeURL(s string) bool {
	if strings.ContainsAny(s, " \n\t") {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

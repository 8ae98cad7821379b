package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/suPer8Hu/ai-prime/internal/prompts"
)

// Metadata is the upload package for a finished video.
type Metadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

type MetadataRequest struct {
	Prompt   string
	Language string
	Platform string
}

type MetadataGenerator struct {
	provider JSONProvider
	prompts  *prompts.Set
}

func NewMetadataGenerator(provider JSONProvider, set *prompts.Set) *MetadataGenerator {
	if set == nil {
		set = prompts.MustDefault()
	}
	return &MetadataGenerator{provider: provider, prompts: set}
}

var metadataSchema = &Schema{
	Properties: map[string]SchemaField{
		"title":       {Type: "string", Description: "catchy video title"},
		"description": {Type: "string", Description: "two or three sentences with a call to action"},
		"tags":        {Type: "array", Description: "hashtags without the leading #"},
	},
	Required: []string{"title", "description", "tags"},
}

func (g *MetadataGenerator) Generate(ctx context.Context, req MetadataRequest) (*Metadata, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("metadata: empty prompt")
	}

	system, err := g.prompts.Render(prompts.MetadataSystem, nil)
	if err != nil {
		return nil, err
	}
	user, err := g.prompts.Render(prompts.MetadataUser, map[string]any{
		"Prompt":   req.Prompt,
		"Platform": req.Platform,
		"Language": LanguageName(req.Language),
	})
	if err != nil {
		return nil, err
	}

	var md Metadata
	if err := g.provider.GenerateJSON(ctx, system, user, metadataSchema, &md); err != nil {
		return nil, err
	}

	md.Title = strings.TrimSpace(md.Title)
	md.Description = strings.TrimSpace(md.Description)
	tags := md.Tags[:0]
	for _, t := range md.Tags {
		t = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(t), "#"))
		if t != "" {
			tags = append(tags, t)
		}
	}
	md.Tags = tags
	if md.Title == "" {
		return nil, fmt.Errorf("metadata: model returned no title")
	}
	return &md, nil
}

package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// NewGeminiClient builds the shared genai client. An empty key returns a nil
// client; providers built on it report ErrMissingCredential at call time so the
// service can still start and surface the problem per request.
func NewGeminiClient(ctx context.Context, apiKey string, httpClient *http.Client) (*genai.Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return client, nil
}

// GeminiProvider implements Provider, JSONProvider and Researcher on top of a
// Gemini text model.
type GeminiProvider struct {
	client *genai.Client
	model  string
	log    zerolog.Logger
}

func NewGeminiProvider(client *genai.Client, model string, logger zerolog.Logger) *GeminiProvider {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &GeminiProvider{client: client, model: model, log: logger.With().Str("component", "gemini").Logger()}
}

func (p *GeminiProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if p.client == nil {
		return "", ErrMissingCredential
	}

	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	cfg := &genai.GenerateContentConfig{}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini: generate text: %w", err)
	}
	return responseText(resp)
}

// GenerateJSON asks for application/json constrained by schema and decodes it
// into target.
func (p *GeminiProvider) GenerateJSON(ctx context.Context, system, prompt string, schema *Schema, target any) error {
	if p.client == nil {
		return ErrMissingCredential
	}

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   toGenaiSchema(schema),
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), cfg)
	if err != nil {
		return fmt.Errorf("gemini: generate json: %w", err)
	}
	text, err := responseText(resp)
	if err != nil {
		return err
	}

	cleaned := cleanJSONBlock(text)
	if err := json.Unmarshal([]byte(cleaned), target); err != nil {
		return fmt.Errorf("gemini: unmarshal json response: %w. Response: %s", err, cleaned)
	}
	return nil
}

// Research runs prompt with the Google Search tool enabled. Search grounding is
// incompatible with JSON mode, so the answer is plain text.
func (p *GeminiProvider) Research(ctx context.Context, prompt string) (string, error) {
	if p.client == nil {
		return "", ErrMissingCredential
	}

	cfg := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	}
	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini: research: %w", err)
	}

	if len(resp.Candidates) > 0 {
		if meta := resp.Candidates[0].GroundingMetadata; meta != nil {
			p.log.Debug().
				Int("snippets", len(meta.GroundingChunks)).
				Strs("queries", meta.WebSearchQueries).
				Msg("google search used")
		} else {
			p.log.Warn().Msg("google search tool configured but not used by model")
		}
	}
	return responseText(resp)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("gemini: empty response")
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		return "", fmt.Errorf("gemini: prompt blocked (%s): %w", fb.BlockReason, ErrContentBlocked)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("gemini: no candidates returned")
	}
	switch resp.Candidates[0].FinishReason {
	case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent:
		return "", fmt.Errorf("gemini: finish reason %s: %w", resp.Candidates[0].FinishReason, ErrContentBlocked)
	}
	return resp.Text(), nil
}

// toGenaiSchema orders properties as Required lists them, then the rest by name.
func toGenaiSchema(s *Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(s.Properties)),
		Required:   s.Required,
	}
	for name, f := range s.Properties {
		field := &genai.Schema{Description: f.Description}
		if f.Type == "array" {
			field.Type = genai.TypeArray
			field.Items = &genai.Schema{Type: genai.TypeString}
		} else {
			field.Type = genai.TypeString
		}
		out.Properties[name] = field
	}

	for _, name := range s.Required {
		if _, ok := s.Properties[name]; ok && !slices.Contains(out.PropertyOrdering, name) {
			out.PropertyOrdering = append(out.PropertyOrdering, name)
		}
	}
	for _, name := range slices.Sorted(maps.Keys(s.Properties)) {
		if !slices.Contains(out.PropertyOrdering, name) {
			out.PropertyOrdering = append(out.PropertyOrdering, name)
		}
	}
	return out
}

func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimSuffix(text, "```")
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
	}
	return strings.TrimSpace(text)
}

package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"google.golang.org/genai"
)

type VideoRequest struct {
	Prompt      string
	AspectRatio string
	HighQuality bool
}

// VideoOperation is a handle on a long-running video generation.
type VideoOperation struct {
	Name     string
	Done     bool
	VideoURI string
	Bytes    []byte
	MIMEType string

	raw *genai.GenerateVideosOperation
}

// VideoBackend starts, polls and downloads asynchronous video generations.
type VideoBackend interface {
	StartVideo(ctx context.Context, req VideoRequest) (*VideoOperation, error)
	PollVideo(ctx context.Context, op *VideoOperation) (*VideoOperation, error)
	DownloadVideo(ctx context.Context, op *VideoOperation) ([]byte, string, error)
}

// GeminiVideo renders through Veo models.
type GeminiVideo struct {
	client  *genai.Client
	apiKey  string
	model   string
	modelHQ string
	http    *http.Client
}

func NewGeminiVideo(client *genai.Client, apiKey, model, modelHQ string) *GeminiVideo {
	if model == "" {
		model = "veo-3.1-fast-generate-preview"
	}
	if modelHQ == "" {
		modelHQ = model
	}
	return &GeminiVideo{
		client:  client,
		apiKey:  apiKey,
		model:   model,
		modelHQ: modelHQ,
		http:    &http.Client{Timeout: 5 * time.Minute},
	}
}

func (g *GeminiVideo) StartVideo(ctx context.Context, req VideoRequest) (*VideoOperation, error) {
	if g.client == nil {
		return nil, ErrMissingCredential
	}

	model, resolution := g.model, "720p"
	if req.HighQuality {
		model, resolution = g.modelHQ, "1080p"
	}

	op, err := g.client.Models.GenerateVideos(ctx, model, req.Prompt, nil, &genai.GenerateVideosConfig{
		NumberOfVideos: 1,
		AspectRatio:    req.AspectRatio,
		Resolution:     resolution,
	})
	if err != nil {
		return nil, fmt.Errorf("veo: start %s: %w", model, err)
	}
	return fromGenaiOperation(op)
}

func (g *GeminiVideo) PollVideo(ctx context.Context, op *VideoOperation) (*VideoOperation, error) {
	if g.client == nil {
		return nil, ErrMissingCredential
	}
	if op == nil || op.raw == nil {
		return nil, errors.New("veo: poll without operation")
	}
	next, err := g.client.Operations.GetVideosOperation(ctx, op.raw, nil)
	if err != nil {
		return nil, fmt.Errorf("veo: poll %s: %w", op.Name, err)
	}
	return fromGenaiOperation(next)
}

// DownloadVideo returns the video bytes. Inline bytes win; otherwise the signed
// URI is fetched with the API key appended as the key query parameter.
func (g *GeminiVideo) DownloadVideo(ctx context.Context, op *VideoOperation) ([]byte, string, error) {
	if op == nil {
		return nil, "", ErrNoVideo
	}
	if len(op.Bytes) > 0 {
		return op.Bytes, mimeOrDefault(op.MIMEType), nil
	}
	if op.VideoURI == "" {
		return nil, "", ErrNoVideo
	}
	return download(ctx, g.http, op.VideoURI, g.apiKey)
}

func fromGenaiOperation(op *genai.GenerateVideosOperation) (*VideoOperation, error) {
	if op == nil {
		return nil, errors.New("veo: empty operation")
	}
	out := &VideoOperation{Name: op.Name, Done: op.Done, raw: op}
	if !op.Done {
		return out, nil
	}
	if len(op.Error) > 0 {
		return nil, fmt.Errorf("veo: operation %s failed: %v", op.Name, op.Error["message"])
	}

	resp := op.Response
	if resp == nil || len(resp.GeneratedVideos) == 0 || resp.GeneratedVideos[0].Video == nil {
		if resp != nil && resp.RAIMediaFilteredCount > 0 {
			return nil, fmt.Errorf("veo: %s: %w", strings.Join(resp.RAIMediaFilteredReasons, "; "), ErrContentBlocked)
		}
		return nil, ErrNoVideo
	}

	v := resp.GeneratedVideos[0].Video
	out.VideoURI = v.URI
	out.Bytes = v.VideoBytes
	out.MIMEType = v.MIMEType
	return out, nil
}

func download(ctx context.Context, client *http.Client, rawURL, apiKey string) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("veo: bad video uri: %w", err)
	}
	if apiKey != "" {
		q := u.Query()
		q.Set("key", apiKey)
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("veo: download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, "", &StatusError{Provider: "veo", Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("veo: read video: %w", err)
	}
	return data, mimeOrDefault(resp.Header.Get("Content-Type")), nil
}

func mimeOrDefault(m string) string {
	if m == "" || strings.HasPrefix(m, "application/octet-stream") {
		return "video/mp4"
	}
	return m
}

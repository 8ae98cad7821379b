package production

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/suPer8Hu/ai-prime/internal/ai"
	"github.com/suPer8Hu/ai-prime/internal/blob"
)

type Stage string

const (
	StageEnhancing   Stage = "enhancing"
	StageRendering   Stage = "rendering"
	StageDownloading Stage = "downloading"
)

func (s Stage) Progress() int {
	switch s {
	case StageEnhancing:
		return 25
	case StageRendering:
		return 50
	case StageDownloading:
		return 85
	}
	return 0
}

func (s Stage) MessageKey() string {
	switch s {
	case StageEnhancing:
		return MsgEnhancing
	case StageRendering:
		return MsgRendering
	case StageDownloading:
		return MsgDownloading
	}
	return ""
}

// ProgressFunc is called when a render enters a new stage.
type ProgressFunc func(stage Stage)

type RenderRequest struct {
	JobID       string
	Prompt      string
	AspectRatio string
	HighQuality bool
	Language    string
}

type RenderResult struct {
	EnhancedPrompt string
	VideoURL       string
}

// Renderer turns a job into a stored video.
type Renderer interface {
	Render(ctx context.Context, req RenderRequest, progress ProgressFunc) (*RenderResult, error)
}

type PromptEnhancer interface {
	Enhance(ctx context.Context, req ai.EnhanceRequest) (string, error)
}

// Pipeline is the remote enhancement and render call: enhance the prompt,
// start a video operation, poll it, download the result.
type Pipeline struct {
	enhancer     PromptEnhancer
	video        ai.VideoBackend
	blobs        blob.Store
	baseURL      string
	pollInterval time.Duration
	log          zerolog.Logger
}

func NewPipeline(enhancer PromptEnhancer, video ai.VideoBackend, blobs blob.Store, baseURL string, pollInterval time.Duration, logger zerolog.Logger) *Pipeline {
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	return &Pipeline{
		enhancer:     enhancer,
		video:        video,
		blobs:        blobs,
		baseURL:      baseURL,
		pollInterval: pollInterval,
		log:          logger.With().Str("component", "pipeline").Logger(),
	}
}

// Produce runs the remote call and returns the raw video. progress may be nil.
func (p *Pipeline) Produce(ctx context.Context, req RenderRequest, progress ProgressFunc) (enhanced string, data []byte, contentType string, err error) {
	if progress == nil {
		progress = func(Stage) {}
	}

	progress(StageEnhancing)
	enhanced, err = p.enhancer.Enhance(ctx, ai.EnhanceRequest{
		Prompt:      req.Prompt,
		Language:    req.Language,
		AspectRatio: req.AspectRatio,
		HighQuality: req.HighQuality,
	})
	if err != nil {
		return "", nil, "", fmt.Errorf("enhance prompt: %w", err)
	}

	progress(StageRendering)
	start := time.Now()
	op, err := p.video.StartVideo(ctx, ai.VideoRequest{
		Prompt:      enhanced,
		AspectRatio: req.AspectRatio,
		HighQuality: req.HighQuality,
	})
	if err != nil {
		return "", nil, "", err
	}

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()
	for !op.Done {
		select {
		case <-ctx.Done():
			return "", nil, "", ctx.Err()
		case <-ticker.C:
		}
		op, err = p.video.PollVideo(ctx, op)
		if err != nil {
			return "", nil, "", err
		}
	}
	p.log.Debug().Str("job_id", req.JobID).Str("operation", op.Name).Dur("cost", time.Since(start)).Msg("video operation done")

	progress(StageDownloading)
	data, contentType, err = p.video.DownloadVideo(ctx, op)
	if err != nil {
		return "", nil, "", err
	}
	return enhanced, data, contentType, nil
}

// Render produces the video and stores it under the job's blob key.
func (p *Pipeline) Render(ctx context.Context, req RenderRequest, progress ProgressFunc) (*RenderResult, error) {
	enhanced, data, contentType, err := p.Produce(ctx, req, progress)
	if err != nil {
		return nil, err
	}
	key := blob.VideoKey(req.JobID)
	if err := p.blobs.Put(ctx, key, bytes.NewReader(data), contentType); err != nil {
		return nil, fmt.Errorf("store video: %w", err)
	}
	return &RenderResult{EnhancedPrompt: enhanced, VideoURL: blob.PublicURL(p.baseURL, key)}, nil
}

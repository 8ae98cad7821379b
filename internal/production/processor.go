package production

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/suPer8Hu/ai-prime/internal/ai"
	"github.com/suPer8Hu/ai-prime/internal/events"
)

// Lease serialises processors across processes. release must be called once
// the render is over.
type Lease interface {
	Acquire(ctx context.Context, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// LocalLease is the single-process Lease; it always succeeds.
type LocalLease struct{}

func (LocalLease) Acquire(ctx context.Context, ttl time.Duration) (func(context.Context) error, bool, error) {
	return func(context.Context) error { return nil }, true, nil
}

type MetadataSource interface {
	Generate(ctx context.Context, req ai.MetadataRequest) (*ai.Metadata, error)
}

type ProcessorOptions struct {
	Bus      events.Bus
	Lease    Lease
	Metadata MetadataSource

	RescanInterval time.Duration
	RenderTimeout  time.Duration
	AutoMetadata   bool
}

type inflight struct {
	jobID     string
	cancel    context.CancelFunc
	release   func(context.Context) error
	cancelled atomic.Bool
}

// Processor advances queued jobs one at a time. At most one render runs per
// process (the in-flight slot) and, with a shared Lease and the transactional
// claim, at most one job is generating in the store.
type Processor struct {
	repo     *Repo
	renderer Renderer
	opts     ProcessorOptions
	log      zerolog.Logger

	wake     chan struct{}
	finished chan struct{}

	mu      sync.Mutex
	current *inflight
	wg      sync.WaitGroup
}

func NewProcessor(repo *Repo, renderer Renderer, opts ProcessorOptions, logger zerolog.Logger) *Processor {
	if opts.Lease == nil {
		opts.Lease = LocalLease{}
	}
	if opts.RescanInterval <= 0 {
		opts.RescanInterval = 5 * time.Second
	}
	if opts.RenderTimeout <= 0 {
		opts.RenderTimeout = 15 * time.Minute
	}
	return &Processor{
		repo:     repo,
		renderer: renderer,
		opts:     opts,
		log:      logger.With().Str("component", "processor").Logger(),
		wake:     make(chan struct{}, 1),
		finished: make(chan struct{}, 1),
	}
}

// Notify asks the processor to look for queued work. It never blocks.
func (p *Processor) Notify() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// NotifyQueued lets the embedded processor act as the store's Notifier.
func (p *Processor) NotifyQueued(ctx context.Context, jobID string) error {
	p.Notify()
	return nil
}

// Cancel stops the in-flight render of jobID. Its result is discarded.
func (p *Processor) Cancel(jobID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil || (jobID != "" && p.current.jobID != jobID) {
		return false
	}
	p.current.cancelled.Store(true)
	p.current.cancel()
	return true
}

// Current returns the id of the job being rendered, if any.
func (p *Processor) Current() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return "", false
	}
	return p.current.jobID, true
}

// Run blocks until ctx is done. On shutdown the in-flight render is cancelled
// without being marked failed; it is requeued on the next start.
func (p *Processor) Run(ctx context.Context) error {
	p.requeueStale(ctx)

	var evs <-chan events.Event
	if p.opts.Bus != nil {
		ch, err := p.opts.Bus.Subscribe(ctx)
		if err != nil {
			p.log.Warn().Err(err).Msg("subscribe to job events failed, relying on rescan")
		} else {
			evs = ch
		}
	}

	ticker := time.NewTicker(p.opts.RescanInterval)
	defer ticker.Stop()

	p.log.Info().Dur("rescan", p.opts.RescanInterval).Dur("render_timeout", p.opts.RenderTimeout).Msg("processor started")
	p.tryStart(ctx)

	for {
		select {
		case <-ctx.Done():
			p.Cancel("")
			p.wg.Wait()
			p.log.Info().Msg("processor stopped")
			return nil

		case <-p.wake:
			p.tryStart(ctx)

		case <-p.finished:
			p.tryStart(ctx)

		case <-ticker.C:
			p.tryStart(ctx)

		case ev, ok := <-evs:
			if !ok {
				evs = nil
				continue
			}
			switch ev.Kind {
			case events.JobRemoved:
				if p.Cancel(ev.JobID) {
					p.log.Info().Str("job_id", ev.JobID).Msg("in-flight job removed, render cancelled")
				}
			case events.StoreRestored:
				if id, busy := p.Current(); busy && p.Cancel(id) {
					p.log.Info().Str("job_id", id).Msg("store restored, render cancelled")
				}
			}
			if ev.Kind == events.JobAdded || ev.Kind == events.StoreRestored {
				p.tryStart(ctx)
			}
		}
	}
}

func (p *Processor) requeueStale(ctx context.Context) {
	release, ok, err := p.opts.Lease.Acquire(ctx, time.Minute)
	if err != nil || !ok {
		// another processor is active; its generating job is not stale
		return
	}
	defer func() { _ = release(context.WithoutCancel(ctx)) }()

	n, err := p.repo.RequeueStale(ctx)
	if err != nil {
		p.log.Error().Err(err).Msg("requeue stale jobs failed")
		return
	}
	if n > 0 {
		p.log.Warn().Int64("jobs", n).Msg("requeued jobs left generating by a previous run")
	}
}

func (p *Processor) tryStart(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		return
	}

	release, ok, err := p.opts.Lease.Acquire(ctx, p.opts.RenderTimeout+time.Minute)
	if err != nil {
		p.log.Warn().Err(err).Msg("acquire processor lease failed")
		return
	}
	if !ok {
		return
	}

	job, err := p.repo.ClaimNextQueued(ctx)
	if err != nil || job == nil {
		if err != nil {
			p.log.Error().Err(err).Msg("claim next job failed")
		}
		_ = release(context.WithoutCancel(ctx))
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, p.opts.RenderTimeout)
	cur := &inflight{jobID: job.ID, cancel: cancel, release: release}
	p.current = cur

	p.wg.Add(1)
	go p.render(ctx, jobCtx, job, cur)
}

func (p *Processor) render(runCtx, jobCtx context.Context, job *Job, cur *inflight) {
	defer p.wg.Done()
	defer func() {
		cur.cancel()
		if err := cur.release(context.WithoutCancel(runCtx)); err != nil {
			p.log.Warn().Err(err).Msg("release processor lease failed")
		}
		p.mu.Lock()
		if p.current == cur {
			p.current = nil
		}
		p.mu.Unlock()
		select {
		case p.finished <- struct{}{}:
		default:
		}
	}()

	log := p.log.With().Str("job_id", job.ID).Logger()
	start := time.Now()
	log.Info().Bool("is8K", job.Is8K).Str("aspect", job.AspectRatio).Msg("render started")
	p.publish(runCtx, job.ID, StatusGenerating, job.Progress)

	progress := func(stage Stage) {
		if stage.Progress() <= job.Progress {
			return
		}
		ok, err := p.repo.UpdateProgress(jobCtx, job.ID, stage.Progress(), stage.MessageKey())
		if err != nil {
			log.Warn().Err(err).Str("stage", string(stage)).Msg("update progress failed")
			return
		}
		if ok {
			p.publish(runCtx, job.ID, StatusGenerating, stage.Progress())
		}
	}

	res, err := p.renderer.Render(jobCtx, RenderRequest{
		JobID:       job.ID,
		Prompt:      job.Prompt,
		AspectRatio: job.AspectRatio,
		HighQuality: job.Is8K,
		Language:    job.Language,
	}, progress)

	switch {
	case err != nil && runCtx.Err() != nil:
		log.Info().Msg("render interrupted by shutdown, job stays generating until restart")
		return
	case cur.cancelled.Load():
		log.Info().Msg("render cancelled, result dropped")
		return
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(runCtx), 10*time.Second)
	defer cancel()

	if err != nil {
		kind := ai.Classify(err)
		ok, werr := p.repo.MarkFailed(writeCtx, job.ID, kind.MessageKey(), err.Error())
		if werr != nil {
			log.Error().Err(werr).Msg("mark failed write failed")
			return
		}
		log.Error().Err(err).Str("kind", kind.String()).Dur("cost", time.Since(start)).Bool("stored", ok).Msg("render failed")
		if ok {
			p.publish(runCtx, job.ID, StatusFailed, 100)
		}
		return
	}

	ok, err := p.repo.MarkPublished(writeCtx, job.ID, res.VideoURL, res.EnhancedPrompt)
	if err != nil {
		log.Error().Err(err).Msg("mark published write failed")
		return
	}
	if !ok {
		log.Info().Msg("job no longer generating, result dropped")
		return
	}
	log.Info().Str("video_url", res.VideoURL).Dur("cost", time.Since(start)).Msg("render published")
	p.publish(runCtx, job.ID, StatusPublished, 100)

	if p.opts.AutoMetadata && p.opts.Metadata != nil {
		p.attachMetadata(runCtx, job, log)
	}
}

func (p *Processor) attachMetadata(ctx context.Context, job *Job, log zerolog.Logger) {
	mctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	md, err := p.opts.Metadata.Generate(mctx, ai.MetadataRequest{Prompt: job.Prompt, Language: job.Language, Platform: job.Platform})
	if err != nil {
		log.Warn().Err(err).Msg("auto metadata failed")
		return
	}
	if err := p.repo.SetMetadata(mctx, job.ID, md); err != nil {
		log.Warn().Err(err).Msg("store metadata failed")
		return
	}
	p.publish(ctx, job.ID, StatusPublished, 100)
}

func (p *Processor) publish(ctx context.Context, jobID string, status Status, progress int) {
	if p.opts.Bus == nil {
		return
	}
	ev := events.Event{Kind: events.JobUpdated, JobID: jobID, Status: string(status), Progress: progress}
	if err := p.opts.Bus.Publish(context.WithoutCancel(ctx), ev); err != nil {
		p.log.Warn().Err(err).Str("job_id", jobID).Msg("publish event failed")
	}
}

package production

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/ai-prime/internal/ai"
	"github.com/suPer8Hu/ai-prime/internal/events"
)

type fakeRenderer struct {
	repo    *Repo
	url     string
	err     error
	delay   time.Duration
	block   chan struct{}
	started chan string

	active     atomic.Int32
	maxActive  atomic.Int32
	maxGenSeen atomic.Int64
}

func (f *fakeRenderer) Render(ctx context.Context, req RenderRequest, progress ProgressFunc) (*RenderResult, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxActive.Load()
		if n <= m || f.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	if f.started != nil {
		f.started <- req.JobID
	}

	if f.repo != nil {
		var generating int64
		if err := f.repo.db.Model(&Job{}).Where("status = ?", StatusGenerating).Count(&generating).Error; err == nil {
			if generating > f.maxGenSeen.Load() {
				f.maxGenSeen.Store(generating)
			}
		}
	}

	progress(StageRendering)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	progress(StageDownloading)
	if f.err != nil {
		return nil, f.err
	}
	url := f.url
	if url == "" {
		url = "blob://" + req.JobID
	}
	return &RenderResult{EnhancedPrompt: "enhanced " + req.Prompt, VideoURL: url}, nil
}

type fakeMetadata struct {
	err error
}

func (f fakeMetadata) Generate(ctx context.Context, req ai.MetadataRequest) (*ai.Metadata, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &ai.Metadata{Title: "About " + req.Prompt, Tags: []string{"auto"}}, nil
}

type harness struct {
	svc  *Service
	proc *Processor
	bus  *events.LocalBus
	stop func()
}

func startProcessor(t *testing.T, renderer Renderer, opts ProcessorOptions) *harness {
	t.Helper()
	repo := NewRepo(openTestDB(t))
	if fr, ok := renderer.(*fakeRenderer); ok && fr.repo == nil {
		fr.repo = repo
	}
	bus := events.NewLocalBus(64)
	if opts.RescanInterval == 0 {
		opts.RescanInterval = 20 * time.Millisecond
	}
	opts.Bus = bus
	proc := NewProcessor(repo, renderer, opts, zerolog.Nop())
	svc := NewService(repo, bus, proc, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = proc.Run(ctx)
	}()
	stop := func() {
		cancel()
		wg.Wait()
	}
	t.Cleanup(stop)
	return &harness{svc: svc, proc: proc, bus: bus, stop: stop}
}

func waitStatus(t *testing.T, svc *Service, id string, want Status) *Job {
	t.Helper()
	var got *Job
	require.Eventually(t, func() bool {
		j, err := svc.Get(context.Background(), id)
		if err != nil {
			return false
		}
		got = j
		return j.Status == want
	}, 3*time.Second, 10*time.Millisecond, "job %s never reached %s", id, want)
	return got
}

func TestProcessor_PublishesQueuedJob(t *testing.T) {
	h := startProcessor(t, &fakeRenderer{url: "blob://x"}, ProcessorOptions{})

	_, err := h.svc.Add(context.Background(), &Job{ID: "j1", Prompt: "cat", AspectRatio: "16:9", Is8K: false, Status: StatusQueued, Progress: 10})
	require.NoError(t, err)

	j := waitStatus(t, h.svc, "j1", StatusPublished)
	require.Equal(t, 100, j.Progress)
	require.Equal(t, "blob://x", j.VideoURL)
	require.Equal(t, "enhanced cat", j.EnhancedPrompt)
	require.Empty(t, j.StatusMessage)
}

func TestProcessor_AtMostOneGenerating(t *testing.T) {
	r := &fakeRenderer{delay: 5 * time.Millisecond}
	h := startProcessor(t, r, ProcessorOptions{})
	ctx := context.Background()

	jobs := make([]*Job, 0, 8)
	for i := 0; i < 8; i++ {
		jobs = append(jobs, &Job{Prompt: "burst", AspectRatio: "9:16"})
	}
	_, err := h.svc.AddBatch(ctx, jobs)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		_, err := h.svc.Add(ctx, &Job{Prompt: "late", AspectRatio: "16:9"})
		require.NoError(t, err)
	}

	var maxObserved atomic.Int64
	require.Eventually(t, func() bool {
		var n int64
		if err := h.svc.repo.db.Model(&Job{}).Where("status = ?", StatusGenerating).Count(&n).Error; err != nil {
			return false
		}
		if n > maxObserved.Load() {
			maxObserved.Store(n)
		}
		published, err := h.svc.List(ctx, StatusPublished, 0)
		return err == nil && len(published) == 12
	}, 5*time.Second, 5*time.Millisecond)

	require.LessOrEqual(t, maxObserved.Load(), int64(1))
	require.Equal(t, int32(1), r.maxActive.Load())
	require.Equal(t, int64(1), r.maxGenSeen.Load())
}

func TestProcessor_ProcessesInStoreOrder(t *testing.T) {
	r := &fakeRenderer{started: make(chan string, 8)}
	h := startProcessor(t, r, ProcessorOptions{})
	ctx := context.Background()

	_, err := h.svc.AddBatch(ctx, []*Job{
		{ID: "first", Prompt: "a", AspectRatio: "16:9"},
		{ID: "second", Prompt: "b", AspectRatio: "16:9"},
		{ID: "third", Prompt: "c", AspectRatio: "16:9"},
	})
	require.NoError(t, err)

	var order []string
	for i := 0; i < 3; i++ {
		select {
		case id := <-r.started:
			order = append(order, id)
		case <-time.After(3 * time.Second):
			t.Fatalf("render %d never started", i)
		}
	}
	require.Equal(t, []string{"first", "second", "third"}, order)
}

func TestProcessor_FailureRecordsMessageKey(t *testing.T) {
	quota := errors.New("googleapi: Error 429: RESOURCE_EXHAUSTED")
	h := startProcessor(t, &fakeRenderer{err: quota}, ProcessorOptions{})

	_, err := h.svc.Add(context.Background(), &Job{ID: "f1", Prompt: "cat", AspectRatio: "16:9"})
	require.NoError(t, err)

	j := waitStatus(t, h.svc, "f1", StatusFailed)
	require.Equal(t, 100, j.Progress)
	require.Equal(t, "errors.quotaExceeded", j.StatusMessage)
	require.Contains(t, j.Error, "RESOURCE_EXHAUSTED")
}

func TestProcessor_RenderTimeout(t *testing.T) {
	h := startProcessor(t, &fakeRenderer{block: make(chan struct{})}, ProcessorOptions{RenderTimeout: 50 * time.Millisecond})

	_, err := h.svc.Add(context.Background(), &Job{ID: "slow", Prompt: "cat", AspectRatio: "16:9"})
	require.NoError(t, err)

	j := waitStatus(t, h.svc, "slow", StatusFailed)
	require.Equal(t, "errors.timeout", j.StatusMessage)
}

func TestProcessor_RemoveCancelsInFlight(t *testing.T) {
	r := &fakeRenderer{block: make(chan struct{}), started: make(chan string, 4)}
	h := startProcessor(t, r, ProcessorOptions{})
	ctx := context.Background()

	_, err := h.svc.AddBatch(ctx, []*Job{
		{ID: "doomed", Prompt: "a", AspectRatio: "16:9"},
		{ID: "next", Prompt: "b", AspectRatio: "16:9"},
	})
	require.NoError(t, err)

	select {
	case id := <-r.started:
		require.Equal(t, "doomed", id)
	case <-time.After(3 * time.Second):
		t.Fatalf("render never started")
	}

	require.NoError(t, h.svc.Remove(ctx, "doomed"))

	select {
	case id := <-r.started:
		require.Equal(t, "next", id)
	case <-time.After(3 * time.Second):
		t.Fatalf("next job never started after removal")
	}
	close(r.block)

	waitStatus(t, h.svc, "next", StatusPublished)
	jobs, err := h.svc.List(ctx, "", 0)
	require.NoError(t, err)
	require.Equal(t, []string{"next"}, ids(jobs))
}

func TestProcessor_RequeuesStaleOnStart(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &Job{ID: "stale", Prompt: "cat", AspectRatio: "16:9", Status: StatusGenerating, Progress: 50}))

	proc := NewProcessor(repo, &fakeRenderer{repo: repo}, ProcessorOptions{RescanInterval: 10 * time.Millisecond}, zerolog.Nop())
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = proc.Run(runCtx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	require.Eventually(t, func() bool {
		j, err := repo.Get(ctx, "stale")
		return err == nil && j.Status == StatusPublished
	}, 3*time.Second, 10*time.Millisecond)
}

func TestProcessor_ShutdownDoesNotFailJob(t *testing.T) {
	r := &fakeRenderer{block: make(chan struct{}), started: make(chan string, 1)}
	h := startProcessor(t, r, ProcessorOptions{})

	_, err := h.svc.Add(context.Background(), &Job{ID: "inflight", Prompt: "cat", AspectRatio: "16:9"})
	require.NoError(t, err)
	<-r.started

	h.stop()

	j, err := h.svc.Get(context.Background(), "inflight")
	require.NoError(t, err)
	require.Equal(t, StatusGenerating, j.Status)
}

func TestProcessor_AutoMetadata(t *testing.T) {
	h := startProcessor(t, &fakeRenderer{}, ProcessorOptions{AutoMetadata: true, Metadata: fakeMetadata{}})

	_, err := h.svc.Add(context.Background(), &Job{ID: "m1", Prompt: "cat", AspectRatio: "16:9"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		j, err := h.svc.Get(context.Background(), "m1")
		return err == nil && j.Metadata != nil && j.Metadata.Title == "About cat"
	}, 3*time.Second, 10*time.Millisecond)
}

func TestProcessor_MetadataFailureKeepsPublished(t *testing.T) {
	h := startProcessor(t, &fakeRenderer{}, ProcessorOptions{AutoMetadata: true, Metadata: fakeMetadata{err: ai.ErrMissingCredential}})

	_, err := h.svc.Add(context.Background(), &Job{ID: "m2", Prompt: "cat", AspectRatio: "16:9"})
	require.NoError(t, err)

	j := waitStatus(t, h.svc, "m2", StatusPublished)
	require.Nil(t, j.Metadata)
}

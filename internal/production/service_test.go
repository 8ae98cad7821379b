package production

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/ai-prime/internal/ai"
	"github.com/suPer8Hu/ai-prime/internal/events"
	"gorm.io/gorm"
)

func TestAdd_DefaultsIDAndStatus(t *testing.T) {
	notifier := &countingNotifier{}
	svc := NewService(NewRepo(openTestDB(t)), nil, notifier, zerolog.Nop())

	job, err := svc.Add(context.Background(), &Job{Prompt: "  cat  ", AspectRatio: "16:9", Language: "pt-br"})
	require.NoError(t, err)
	require.Len(t, job.ID, 26)
	require.Equal(t, StatusQueued, job.Status)
	require.Equal(t, "cat", job.Prompt)
	require.Equal(t, "pt-BR", job.Language)
	require.Equal(t, []string{job.ID}, notifier.calls)

	got, err := svc.Get(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, job.Prompt, got.Prompt)
}

func TestAdd_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := []*Job{
		{Prompt: "", AspectRatio: "16:9"},
		{Prompt: "cat", AspectRatio: "4:3"},
		{Prompt: "cat", AspectRatio: "16:9", Progress: 101},
		{Prompt: "cat", AspectRatio: "16:9", Status: StatusPublished},
		{Prompt: "cat", AspectRatio: "16:9", Language: "not a tag"},
	}
	for _, c := range cases {
		if _, err := svc.Add(ctx, c); !errors.Is(err, ErrInvalidJob) {
			t.Fatalf("expected ErrInvalidJob for %+v, got %v", c, err)
		}
	}

	_, err := svc.Add(ctx, &Job{ID: "j1", Prompt: "cat", AspectRatio: "16:9"})
	require.NoError(t, err)
	_, err = svc.Add(ctx, &Job{ID: "j1", Prompt: "dog", AspectRatio: "16:9"})
	require.ErrorIs(t, err, ErrDuplicateJob)
}

func TestAddBatch_AllOrNothing(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddBatch(ctx, []*Job{
		{ID: "a", Prompt: "one", AspectRatio: "16:9"},
		{ID: "b", Prompt: "", AspectRatio: "16:9"},
	})
	require.ErrorIs(t, err, ErrInvalidJob)

	jobs, err := svc.List(ctx, "", 0)
	require.NoError(t, err)
	require.Empty(t, jobs)

	_, err = svc.AddBatch(ctx, []*Job{
		{ID: "a", Prompt: "one", AspectRatio: "16:9"},
		{ID: "b", Prompt: "two", AspectRatio: "9:16"},
		{ID: "c", Prompt: "three", AspectRatio: "16:9"},
	})
	require.NoError(t, err)

	jobs, err = svc.List(ctx, "", 0)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, ids(jobs))
}

func TestAddBatch_RejectsNullEntry(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddBatch(ctx, []*Job{{ID: "a", Prompt: "one", AspectRatio: "16:9"}, nil})
	require.ErrorIs(t, err, ErrInvalidJob)

	jobs, err := svc.List(ctx, "", 0)
	require.NoError(t, err)
	require.Empty(t, jobs)
}

func TestRemove_KeepsRelativeOrder(t *testing.T) {
	svc, bus := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	evs, _ := bus.Subscribe(ctx)

	for _, id := range []string{"a", "b", "c", "d"} {
		_, err := svc.Add(ctx, &Job{ID: id, Prompt: "p " + id, AspectRatio: "16:9"})
		require.NoError(t, err)
	}

	require.NoError(t, svc.Remove(ctx, "b"))
	jobs, err := svc.List(ctx, "", 0)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "c", "d"}, ids(jobs))

	require.ErrorIs(t, svc.Remove(ctx, "b"), gorm.ErrRecordNotFound)

	var removed bool
	for len(evs) > 0 {
		ev := <-evs
		if ev.Kind == events.JobRemoved && ev.JobID == "b" {
			removed = true
		}
	}
	require.True(t, removed, "expected job.removed event")
}

func TestUpdate_ReplacesInPlace(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		_, err := svc.Add(ctx, &Job{ID: id, Prompt: "p " + id, AspectRatio: "16:9"})
		require.NoError(t, err)
	}

	_, err := svc.Update(ctx, &Job{ID: "b", Prompt: "edited", AspectRatio: "9:16", Status: StatusQueued, Progress: 10})
	require.NoError(t, err)

	jobs, err := svc.List(ctx, "", 0)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, ids(jobs))
	require.Equal(t, "edited", jobs[1].Prompt)
	require.Equal(t, "9:16", jobs[1].AspectRatio)
	require.False(t, jobs[1].CreatedAt.IsZero())

	_, err = svc.Update(ctx, &Job{ID: "missing", Prompt: "x", AspectRatio: "16:9", Status: StatusQueued})
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUpdate_RejectsIllegalTransitions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Add(ctx, &Job{ID: "a", Prompt: "cat", AspectRatio: "16:9"})
	require.NoError(t, err)

	for _, to := range []Status{StatusGenerating, StatusPublished, StatusFailed, StatusScheduled} {
		_, err := svc.Update(ctx, &Job{ID: "a", Prompt: "cat", AspectRatio: "16:9", Status: to})
		require.ErrorIs(t, err, ErrInvalidTransition, "queued -> %s", to)
	}
}

func TestUpdate_DoesNotOverwriteJobFinishedMeanwhile(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Add(ctx, &Job{ID: "j1", Prompt: "cat", AspectRatio: "16:9"})
	require.NoError(t, err)
	claimed, err := svc.repo.ClaimNextQueued(ctx)
	require.NoError(t, err)
	require.Equal(t, "j1", claimed.ID)

	edit := *claimed
	edit.Platform = "youtube"
	afterNextRead(t, svc.repo.db, func() {
		ok, err := svc.repo.MarkPublished(ctx, "j1", "blob://j1", "enhanced cat")
		require.NoError(t, err)
		require.True(t, ok)
	})

	_, err = svc.Update(ctx, &edit)
	require.ErrorIs(t, err, ErrInvalidTransition)

	got, err := svc.Get(ctx, "j1")
	require.NoError(t, err)
	require.Equal(t, StatusPublished, got.Status)
	require.Equal(t, 100, got.Progress)
	require.Equal(t, "blob://j1", got.VideoURL)

	// the queue keeps moving
	_, err = svc.Add(ctx, &Job{ID: "j2", Prompt: "dog", AspectRatio: "16:9"})
	require.NoError(t, err)
	next, err := svc.repo.ClaimNextQueued(ctx)
	require.NoError(t, err)
	require.NotNil(t, next)
	require.Equal(t, "j2", next.ID)
}

func TestUpdate_GeneratingKeepsRenderProgress(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Add(ctx, &Job{ID: "j1", Prompt: "cat", AspectRatio: "16:9"})
	require.NoError(t, err)
	_, err = svc.repo.ClaimNextQueued(ctx)
	require.NoError(t, err)
	ok, err := svc.repo.UpdateProgress(ctx, "j1", StageRendering.Progress(), MsgRendering)
	require.NoError(t, err)
	require.True(t, ok)

	job, err := svc.Update(ctx, &Job{ID: "j1", Prompt: "cat", AspectRatio: "16:9", Status: StatusGenerating, Platform: "tiktok"})
	require.NoError(t, err)
	require.Equal(t, StageRendering.Progress(), job.Progress)

	got, err := svc.Get(ctx, "j1")
	require.NoError(t, err)
	require.Equal(t, StatusGenerating, got.Status)
	require.Equal(t, StageRendering.Progress(), got.Progress)
	require.Equal(t, MsgRendering, got.StatusMessage)
	require.Equal(t, "tiktok", got.Platform)
}

func TestSchedule_KeepsMetadataAttachedMeanwhile(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Add(ctx, &Job{ID: "a", Prompt: "cat", AspectRatio: "16:9"})
	require.NoError(t, err)
	require.NoError(t, svc.repo.db.Model(&Job{}).Where("id = ?", "a").
		Updates(map[string]any{"status": StatusPublished, "progress": 100}).Error)

	afterNextRead(t, svc.repo.db, func() {
		require.NoError(t, svc.repo.SetMetadata(ctx, "a", &ai.Metadata{Title: "Cats"}))
	})

	job, err := svc.Schedule(ctx, "a", "Fri", "youtube")
	require.NoError(t, err)
	require.Equal(t, StatusScheduled, job.Status)
	require.NotNil(t, job.Metadata)
	require.Equal(t, "Cats", job.Metadata.Title)
}

func TestSchedule_StatusChangedMeanwhile(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Add(ctx, &Job{ID: "a", Prompt: "cat", AspectRatio: "16:9"})
	require.NoError(t, err)
	require.NoError(t, svc.repo.db.Model(&Job{}).Where("id = ?", "a").
		Updates(map[string]any{"status": StatusPublished, "progress": 100}).Error)

	afterNextRead(t, svc.repo.db, func() {
		require.NoError(t, svc.repo.db.Model(&Job{}).Where("id = ?", "a").
			Update("status", StatusFailed).Error)
	})

	_, err = svc.Schedule(ctx, "a", "Fri", "youtube")
	require.ErrorIs(t, err, ErrInvalidTransition)

	got, err := svc.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, StatusFailed, got.Status)
	require.Empty(t, got.ScheduledDay)
}

func TestSchedule(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Add(ctx, &Job{ID: "a", Prompt: "cat", AspectRatio: "16:9"})
	require.NoError(t, err)

	_, err = svc.Schedule(ctx, "a", "Mon", "tiktok")
	require.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, svc.repo.db.Model(&Job{}).Where("id = ?", "a").
		Updates(map[string]any{"status": StatusPublished, "progress": 100}).Error)

	job, err := svc.Schedule(ctx, "a", "Mon", "tiktok")
	require.NoError(t, err)
	require.Equal(t, StatusScheduled, job.Status)

	job, err = svc.Schedule(ctx, "a", "Wed", "youtube")
	require.NoError(t, err)
	require.Equal(t, "Wed", job.ScheduledDay)
	require.Equal(t, "youtube", job.Platform)

	_, err = svc.Schedule(ctx, "a", " ", "youtube")
	require.ErrorIs(t, err, ErrInvalidJob)
}

func TestAttachMetadata(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Add(ctx, &Job{ID: "a", Prompt: "cat", AspectRatio: "16:9"})
	require.NoError(t, err)

	job, err := svc.AttachMetadata(ctx, "a", &ai.Metadata{Title: "Cats", Description: "d", Tags: []string{"cat"}})
	require.NoError(t, err)
	require.NotNil(t, job.Metadata)
	require.Equal(t, "Cats", job.Metadata.Title)
	require.Equal(t, []string{"cat"}, job.Metadata.Tags)

	_, err = svc.AttachMetadata(ctx, "missing", &ai.Metadata{Title: "x"})
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCanTransition(t *testing.T) {
	require.True(t, CanTransition(StatusQueued, StatusGenerating))
	require.True(t, CanTransition(StatusGenerating, StatusFailed))
	require.True(t, CanTransition(StatusPublished, StatusScheduled))
	require.True(t, CanTransition(StatusScheduled, StatusScheduled))
	require.False(t, CanTransition(StatusFailed, StatusQueued))
	require.False(t, CanTransition(StatusQueued, StatusPublished))
}

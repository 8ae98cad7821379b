package production

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/suPer8Hu/ai-prime/internal/ai"
	"github.com/suPer8Hu/ai-prime/internal/common"
	"github.com/suPer8Hu/ai-prime/internal/events"
)

// Notifier is told about newly queued jobs: the embedded processor or the
// RabbitMQ publisher that wakes a worker.
type Notifier interface {
	NotifyQueued(ctx context.Context, jobID string) error
}

// Service is the Job Store. Every write goes through it so validation and
// change events stay in one place.
type Service struct {
	repo     *Repo
	bus      events.Bus
	notifier Notifier
	log      zerolog.Logger
}

// NewService builds the store. bus and notifier may be nil.
func NewService(repo *Repo, bus events.Bus, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{repo: repo, bus: bus, notifier: notifier, log: logger.With().Str("component", "jobs").Logger()}
}

func (s *Service) Repo() *Repo { return s.repo }

func (s *Service) prepareNew(j *Job) error {
	if j == nil {
		return invalid("job is null")
	}
	if strings.TrimSpace(j.ID) == "" {
		id, err := common.NewULID()
		if err != nil {
			return err
		}
		j.ID = id
	}
	if j.Status == "" {
		j.Status = StatusQueued
	}
	if j.Status != StatusQueued {
		return invalid("new jobs must be queued, got %q", j.Status)
	}
	return validate(j)
}

// Add validates job, defaults its id and status, and appends it to the store.
func (s *Service) Add(ctx context.Context, job *Job) (*Job, error) {
	if err := s.prepareNew(job); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, err
	}
	s.publish(ctx, events.JobAdded, job)
	s.notify(ctx, job.ID)
	return job, nil
}

// AddBatch appends jobs in order. One invalid job rejects the whole batch.
func (s *Service) AddBatch(ctx context.Context, jobs []*Job) ([]*Job, error) {
	if len(jobs) == 0 {
		return nil, invalid("batch is empty")
	}
	seen := make(map[string]struct{}, len(jobs))
	for i, j := range jobs {
		if err := s.prepareNew(j); err != nil {
			return nil, fmt.Errorf("job %d: %w", i, err)
		}
		if _, dup := seen[j.ID]; dup {
			return nil, fmt.Errorf("job %d: %w", i, ErrDuplicateJob)
		}
		seen[j.ID] = struct{}{}
	}
	if err := s.repo.CreateBatch(ctx, jobs); err != nil {
		return nil, err
	}
	for _, j := range jobs {
		s.publish(ctx, events.JobAdded, j)
	}
	s.notify(ctx, jobs[0].ID)
	return jobs, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Job, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, status Status, limit int) ([]Job, error) {
	if status != "" && !status.Valid() {
		return nil, invalid("unknown status %q", status)
	}
	return s.repo.List(ctx, status, limit)
}

// Update replaces the job with the same id. A status change must be a legal
// transition that is not reserved to the processor. The write is conditional
// on the status read here, so a job the processor finished in between is left
// alone and ErrInvalidTransition is returned.
func (s *Service) Update(ctx context.Context, job *Job) (*Job, error) {
	if err := validate(job); err != nil {
		return nil, err
	}
	current, err := s.repo.Get(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	if job.Status != current.Status {
		if !CanTransition(current.Status, job.Status) || processorOwned(job.Status) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, job.Status)
		}
	}
	job.CreatedAt = current.CreatedAt

	var omit []string
	if current.Status == StatusGenerating && job.Status == StatusGenerating {
		// render progress belongs to the processor
		job.Progress = current.Progress
		job.StatusMessage = current.StatusMessage
		job.Error = current.Error
		job.VideoURL = current.VideoURL
		job.EnhancedPrompt = current.EnhancedPrompt
		omit = renderColumns
	}
	if err := s.repo.Save(ctx, job, current.Status, omit...); err != nil {
		return nil, err
	}
	s.publish(ctx, events.JobUpdated, job)
	return job, nil
}

var renderColumns = []string{"progress", "status_message", "error", "video_url", "enhanced_prompt"}

// Remove deletes exactly the job with id.
func (s *Service) Remove(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, events.JobRemoved, &Job{ID: id})
	return nil
}

// Schedule books a published (or already scheduled) job for a day and platform.
// Only the scheduling columns are written, so metadata attached meanwhile stays.
func (s *Service) Schedule(ctx context.Context, id, day, platform string) (*Job, error) {
	day = strings.TrimSpace(day)
	if day == "" {
		return nil, invalid("scheduledDay is required")
	}
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(job.Status, StatusScheduled) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, StatusScheduled)
	}
	platform = strings.TrimSpace(platform)
	err = s.repo.Transition(ctx, id, job.Status, map[string]any{
		"status":        StatusScheduled,
		"scheduled_day": day,
		"platform":      platform,
	})
	if err != nil {
		return nil, err
	}
	if job, err = s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	s.publish(ctx, events.JobUpdated, job)
	return job, nil
}

func (s *Service) AttachMetadata(ctx context.Context, id string, md *ai.Metadata) (*Job, error) {
	if md == nil {
		return nil, invalid("metadata is required")
	}
	if err := s.repo.SetMetadata(ctx, id, md); err != nil {
		return nil, err
	}
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.JobUpdated, job)
	return job, nil
}

func (s *Service) publish(ctx context.Context, kind events.Kind, j *Job) {
	if s.bus == nil {
		return
	}
	ev := events.Event{Kind: kind, JobID: j.ID, Status: string(j.Status), Progress: j.Progress}
	if err := s.bus.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("kind", string(kind)).Str("job_id", j.ID).Msg("publish event failed")
	}
}

func (s *Service) notify(ctx context.Context, jobID string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyQueued(ctx, jobID); err != nil {
		// the processor rescan still picks the job up
		s.log.Warn().Err(err).Str("job_id", jobID).Msg("notify queued failed")
	}
}

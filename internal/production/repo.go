package production

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/suPer8Hu/ai-prime/internal/ai"
	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) nextPosition(tx *gorm.DB) (int64, error) {
	var max int64
	if err := tx.Model(&Job{}).Select("COALESCE(MAX(position), 0)").Scan(&max).Error; err != nil {
		return 0, err
	}
	return max + 1, nil
}

// Create appends job at the end of the store.
func (r *Repo) Create(ctx context.Context, job *Job) error {
	return r.CreateBatch(ctx, []*Job{job})
}

// CreateBatch appends jobs in order; either all are stored or none.
func (r *Repo) CreateBatch(ctx context.Context, jobs []*Job) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pos, err := r.nextPosition(tx)
		if err != nil {
			return err
		}
		for _, j := range jobs {
			var n int64
			if err := tx.Model(&Job{}).Where("id = ?", j.ID).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return ErrDuplicateJob
			}
			j.Position = pos
			pos++
			if err := tx.Create(j).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repo) Get(ctx context.Context, id string) (*Job, error) {
	var j Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

// List returns jobs in store order. Empty status means all; limit <= 0 means no limit.
func (r *Repo) List(ctx context.Context, status Status, limit int) ([]Job, error) {
	q := r.db.WithContext(ctx).Order("position ASC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var jobs []Job
	if err := q.Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// Save replaces every column of an existing job except its id, position and
// creation time. The write only lands while the stored status is still
// expected; omit names further columns to leave untouched.
func (r *Repo) Save(ctx context.Context, job *Job, expected Status, omit ...string) error {
	res := r.db.WithContext(ctx).Model(job).
		Where("status = ?", expected).
		Select("*").
		Omit(append([]string{"id", "position", "created_at"}, omit...)...).
		Updates(job)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.staleOrMissing(ctx, job.ID, expected)
	}
	return nil
}

// Transition writes values to job id while its stored status is still expected.
func (r *Repo) Transition(ctx context.Context, id string, expected Status, values map[string]any) error {
	values["updated_at"] = time.Now()
	res := r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.staleOrMissing(ctx, id, expected)
	}
	return nil
}

func (r *Repo) staleOrMissing(ctx context.Context, id string, expected Status) error {
	var n int64
	if err := r.db.WithContext(ctx).Model(&Job{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return gorm.ErrRecordNotFound
	}
	return fmt.Errorf("%w: job %s is no longer %s", ErrInvalidTransition, id, expected)
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&Job{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repo) SetMetadata(ctx context.Context, id string, md *ai.Metadata) error {
	res := r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Select("metadata", "updated_at").
		Updates(&Job{Metadata: md, UpdatedAt: time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ClaimNextQueued moves the first queued job to generating, but only when no
// job is generating already. It returns nil when there is nothing to do.
func (r *Repo) ClaimNextQueued(ctx context.Context) (*Job, error) {
	var claimed *Job
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var busy int64
		if err := tx.Model(&Job{}).Where("status = ?", StatusGenerating).Count(&busy).Error; err != nil {
			return err
		}
		if busy > 0 {
			return nil
		}

		var j Job
		err := tx.Where("status = ?", StatusQueued).Order("position ASC").First(&j).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		res := tx.Model(&Job{}).
			Where("id = ? AND status = ?", j.ID, StatusQueued).
			Updates(map[string]any{
				"status":         StatusGenerating,
				"progress":       StageEnhancing.Progress(),
				"status_message": MsgEnhancing,
				"error":          "",
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		j.Status = StatusGenerating
		j.Progress = StageEnhancing.Progress()
		j.StatusMessage = MsgEnhancing
		j.Error = ""
		claimed = &j
		return nil
	})
	return claimed, err
}

// UpdateProgress records a render stage. ok is false when the job is no longer
// generating (removed, restored or already finished).
func (r *Repo) UpdateProgress(ctx context.Context, id string, progress int, msgKey string) (bool, error) {
	return r.updateGenerating(ctx, id, map[string]any{
		"progress":       progress,
		"status_message": msgKey,
	})
}

func (r *Repo) MarkPublished(ctx context.Context, id, videoURL, enhancedPrompt string) (bool, error) {
	return r.updateGenerating(ctx, id, map[string]any{
		"status":          StatusPublished,
		"progress":        100,
		"video_url":       videoURL,
		"enhanced_prompt": enhancedPrompt,
		"status_message":  "",
		"error":           "",
	})
}

func (r *Repo) MarkFailed(ctx context.Context, id, msgKey, errText string) (bool, error) {
	return r.updateGenerating(ctx, id, map[string]any{
		"status":         StatusFailed,
		"progress":       100,
		"status_message": msgKey,
		"error":          errText,
	})
}

func (r *Repo) updateGenerating(ctx context.Context, id string, values map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", id, StatusGenerating).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RequeueStale returns jobs left generating by a stopped processor to the queue.
func (r *Repo) RequeueStale(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Model(&Job{}).
		Where("status = ?", StatusGenerating).
		Updates(map[string]any{
			"status":         StatusQueued,
			"progress":       0,
			"status_message": "",
		})
	return res.RowsAffected, res.Error
}

// ReplaceAll swaps the whole store for jobs, keeping their order.
func (r *Repo) ReplaceAll(ctx context.Context, jobs []Job) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Job{}).Error; err != nil {
			return err
		}
		for i := range jobs {
			jobs[i].Position = int64(i + 1)
			if err := tx.Create(&jobs[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

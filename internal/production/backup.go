package production

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/suPer8Hu/ai-prime/internal/events"
)

const BackupVersion = 1

var ErrMalformedBackup = errors.New("malformed backup")

type Backup struct {
	Version    int       `json:"version"`
	ExportedAt time.Time `json:"exportedAt"`
	Jobs       []Job     `json:"jobs"`
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedBackup, fmt.Sprintf(format, args...))
}

// Export snapshots the whole store in order.
func (s *Service) Export(ctx context.Context) (*Backup, error) {
	jobs, err := s.repo.List(ctx, "", 0)
	if err != nil {
		return nil, err
	}
	if jobs == nil {
		jobs = []Job{}
	}
	return &Backup{Version: BackupVersion, ExportedAt: time.Now().UTC(), Jobs: jobs}, nil
}

// DecodeBackup parses and validates a backup document without touching the store.
func DecodeBackup(r io.Reader) (*Backup, error) {
	var raw struct {
		Version    *int      `json:"version"`
		ExportedAt time.Time `json:"exportedAt"`
		Jobs       *[]Job    `json:"jobs"`
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return nil, malformed("%v", err)
	}
	if dec.More() {
		return nil, malformed("trailing data after backup document")
	}
	if raw.Version == nil {
		return nil, malformed("version is missing")
	}
	if *raw.Version != BackupVersion {
		return nil, malformed("unsupported version %d", *raw.Version)
	}
	if raw.Jobs == nil {
		return nil, malformed("jobs is missing")
	}

	b := &Backup{Version: *raw.Version, ExportedAt: raw.ExportedAt, Jobs: *raw.Jobs}
	seen := make(map[string]struct{}, len(b.Jobs))
	for i := range b.Jobs {
		j := &b.Jobs[i]
		if err := validate(j); err != nil {
			return nil, malformed("job %d: %v", i, err)
		}
		if _, dup := seen[j.ID]; dup {
			return nil, malformed("job %d: duplicate id %q", i, j.ID)
		}
		seen[j.ID] = struct{}{}

		// nothing owns a render after a restore
		if j.Status == StatusGenerating {
			j.Status = StatusQueued
			j.Progress = 0
			j.StatusMessage = ""
		}
	}
	return b, nil
}

// Restore replaces the whole store with the backup read from r. A malformed
// backup returns ErrMalformedBackup and leaves the store as it was.
func (s *Service) Restore(ctx context.Context, r io.Reader) (*Backup, error) {
	b, err := DecodeBackup(r)
	if err != nil {
		return nil, err
	}
	if err := s.repo.ReplaceAll(ctx, b.Jobs); err != nil {
		return nil, err
	}
	s.publish(ctx, events.StoreRestored, &Job{})
	s.log.Info().Int("jobs", len(b.Jobs)).Msg("store restored")

	for _, j := range b.Jobs {
		if j.Status == StatusQueued {
			s.notify(ctx, j.ID)
			break
		}
	}
	return b, nil
}

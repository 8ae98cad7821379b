package events

import (
	"context"
	"sync"
	"time"
)

type Kind string

const (
	JobAdded      Kind = "job.added"
	JobUpdated    Kind = "job.updated"
	JobRemoved    Kind = "job.removed"
	StoreRestored Kind = "store.restored"
)

type Event struct {
	Kind     Kind      `json:"kind"`
	JobID    string    `json:"jobId,omitempty"`
	Status   string    `json:"status,omitempty"`
	Progress int       `json:"progress,omitempty"`
	At       time.Time `json:"at"`
}

// Bus fans job events out to subscribers. Delivery is best effort: a subscriber
// that falls behind misses events.
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(ctx context.Context) (<-chan Event, error)
}

// LocalBus is an in-process Bus. Subscriptions end when their context is done.
type LocalBus struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
	size int
}

func NewLocalBus(buffer int) *LocalBus {
	if buffer <= 0 {
		buffer = 64
	}
	return &LocalBus{subs: make(map[chan Event]struct{}), size: buffer}
}

func (b *LocalBus) Publish(_ context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

func (b *LocalBus) Subscribe(ctx context.Context) (<-chan Event, error) {
	ch := make(chan Event, b.size)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, ch)
		close(ch)
		b.mu.Unlock()
	}()
	return ch, nil
}

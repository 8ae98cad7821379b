package redisstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/suPer8Hu/ai-prime/internal/events"
)

// Publish broadcasts ev to every process subscribed to the jobs channel.
func (s *Store) Publish(ctx context.Context, ev events.Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.rdb.Publish(ctx, jobsChannel, b).Err()
}

func (s *Store) Subscribe(ctx context.Context) (<-chan events.Event, error) {
	ps := s.rdb.Subscribe(ctx, jobsChannel)
	// wait for the subscription to be confirmed so no publish is missed after return
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	out := make(chan events.Event, 64)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var ev events.Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					continue
				}
				select {
				case out <- ev:
				default:
				}
			}
		}
	}()
	return out, nil
}

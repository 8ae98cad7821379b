package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/suPer8Hu/ai-prime/internal/app"
	"github.com/suPer8Hu/ai-prime/internal/config"
	"github.com/suPer8Hu/ai-prime/internal/logging"
	"github.com/suPer8Hu/ai-prime/internal/store/rabbitmq"
)

// The worker runs the job processor outside the API. RabbitMQ deliveries only
// wake it; the job row decides what happens.
func main() {
	app.LoadDotEnv()
	cfg := config.Load()
	log := logging.New(cfg.AppEnv, cfg.LogLevel).With().Str("process", "worker").Logger()

	if cfg.RabbitURL == "" {
		log.Fatal().Msg("RABBIT_URL is required for the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer deps.Close()
	if deps.Redis == nil {
		log.Warn().Msg("REDIS_ADDR not set; run a single worker or removals will not cancel in-flight renders")
	}

	consumer, err := rabbitmq.NewConsumer(cfg.RabbitURL, cfg.RabbitQueue, 1)
	if err != nil {
		log.Fatal().Err(err).Msg("rabbit consumer init failed")
	}
	defer consumer.Close()

	msgs, err := consumer.Deliveries()
	if err != nil {
		log.Fatal().Err(err).Msg("consume failed")
	}

	proc := deps.NewProcessor(cfg, log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = proc.Run(ctx)
	}()

	log.Info().Str("queue", cfg.RabbitQueue).Msg("worker started")

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("worker shutting down")
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Error().Msg("delivery channel closed")
				stop()
				time.Sleep(100 * time.Millisecond)
				continue
			}
			m, err := rabbitmq.Decode(d.Body)
			if err != nil {
				log.Warn().Err(err).Msg("bad message")
				_ = d.Nack(false, false)
				continue
			}
			log.Debug().Str("job_id", m.JobID).Str("event", m.Event).Msg("wake-up received")
			proc.Notify()
			if err := d.Ack(false); err != nil {
				log.Warn().Err(err).Str("job_id", m.JobID).Msg("ack failed")
			}
		}
	}
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/ai-prime/internal/app"
	"github.com/suPer8Hu/ai-prime/internal/config"
	"github.com/suPer8Hu/ai-prime/internal/httpapi"
	"github.com/suPer8Hu/ai-prime/internal/httpapi/handlers"
	"github.com/suPer8Hu/ai-prime/internal/logging"
	"github.com/suPer8Hu/ai-prime/internal/production"
	"github.com/suPer8Hu/ai-prime/internal/store/rabbitmq"
)

func main() {
	app.LoadDotEnv()
	cfg := config.Load()
	log := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	if cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer deps.Close()

	var (
		notifier production.Notifier
		proc     *production.Processor
		wg       sync.WaitGroup
	)
	if cfg.EmbeddedProcessor() {
		proc = deps.NewProcessor(cfg, log)
		notifier = proc
	} else {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.Fatal().Err(err).Msg("rabbit publisher init failed")
		}
		defer pub.Close()
		notifier = pub
		log.Info().Str("queue", cfg.RabbitQueue).Msg("jobs are processed by the worker")
	}

	svc := production.NewService(deps.Repo, deps.Bus, notifier, log)
	h := &handlers.Handler{
		Cfg:      cfg,
		Jobs:     svc,
		Producer: deps.Pipeline,
		Enhancer: deps.Enhancer,
		Metadata: deps.Metadata,
		Blobs:    deps.Blobs,
		Bus:      deps.Bus,
		Log:      log,
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if proc != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = proc.Run(ctx)
		}()
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("base_url", cfg.PublicBaseURL).Bool("auth", cfg.AuthEnabled()).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	wg.Wait()
}

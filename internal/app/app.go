// Package app wires configuration into the long-lived components shared by
// the api and worker binaries.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/suPer8Hu/ai-prime/internal/ai"
	"github.com/suPer8Hu/ai-prime/internal/blob"
	"github.com/suPer8Hu/ai-prime/internal/config"
	"github.com/suPer8Hu/ai-prime/internal/db"
	"github.com/suPer8Hu/ai-prime/internal/events"
	"github.com/suPer8Hu/ai-prime/internal/production"
	"github.com/suPer8Hu/ai-prime/internal/prompts"
	"github.com/suPer8Hu/ai-prime/internal/store/redisstore"
	"gorm.io/gorm"
)

// LoadDotEnv loads the nearest .env walking up from the working directory.
func LoadDotEnv() {
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

// Deps are the components both binaries need.
type Deps struct {
	DB       *gorm.DB
	Repo     *production.Repo
	Blobs    blob.Store
	Redis    *redisstore.Store
	Bus      events.Bus
	Enhancer *ai.Enhancer
	Metadata *ai.MetadataGenerator
	Pipeline *production.Pipeline
}

func (d *Deps) Close() {
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
	if d.DB != nil {
		if sqlDB, err := d.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

func Build(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Deps, error) {
	d := &Deps{}

	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	if err := gdb.AutoMigrate(&production.Job{}); err != nil {
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	d.DB = gdb
	d.Repo = production.NewRepo(gdb)

	d.Blobs, err = newBlobStore(ctx, cfg)
	if err != nil {
		d.Close()
		return nil, err
	}

	if cfg.RedisAddr != "" {
		d.Redis, err = redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.Bus = d.Redis
	} else {
		d.Bus = events.NewLocalBus(64)
	}

	set, err := prompts.Load(cfg.PromptsFile)
	if err != nil {
		d.Close()
		return nil, err
	}

	genaiClient, err := ai.NewGeminiClient(ctx, cfg.GeminiAPIKey, nil)
	if err != nil {
		d.Close()
		return nil, err
	}
	if genaiClient == nil {
		log.Warn().Msg("GEMINI_API_KEY not set; AI calls will fail with errors.apiKeyMissing")
	}
	gemini := ai.NewGeminiProvider(genaiClient, cfg.GeminiTextModel, log)

	reg := newRegistry(cfg, gemini)
	textProvider, err := reg.Get(ctx, cfg.EnhancerProvider, "")
	if err != nil {
		d.Close()
		return nil, err
	}

	var researcher ai.Researcher
	if genaiClient != nil {
		researcher = gemini
	}
	d.Enhancer = ai.NewEnhancer(textProvider, researcher, set)
	d.Metadata = ai.NewMetadataGenerator(gemini, set)
	video := ai.NewGeminiVideo(genaiClient, cfg.GeminiAPIKey, cfg.GeminiVideoModel, cfg.GeminiVideoModelHQ)
	d.Pipeline = production.NewPipeline(d.Enhancer, video, d.Blobs, cfg.PublicBaseURL, cfg.VideoPollInterval, log)

	log.Info().
		Str("db", cfg.DBDriver).
		Str("blob", cfg.BlobDriver).
		Str("enhancer", cfg.EnhancerProvider).
		Bool("redis", d.Redis != nil).
		Msg("dependencies ready")
	return d, nil
}

// NewProcessor builds the job processor with the Redis lease when available.
func (d *Deps) NewProcessor(cfg config.Config, log zerolog.Logger) *production.Processor {
	opts := production.ProcessorOptions{
		Bus:            d.Bus,
		Metadata:       d.Metadata,
		RescanInterval: cfg.RescanInterval,
		RenderTimeout:  cfg.RenderTimeout,
		AutoMetadata:   cfg.AutoMetadata,
	}
	if d.Redis != nil {
		opts.Lease = d.Redis
	}
	return production.NewProcessor(d.Repo, d.Pipeline, opts, log)
}

func newBlobStore(ctx context.Context, cfg config.Config) (blob.Store, error) {
	switch cfg.BlobDriver {
	case "s3":
		return blob.NewS3(ctx, cfg.S3Bucket, cfg.S3Prefix)
	case "", "local":
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir data dir: %w", err)
		}
		return blob.LocalFS{Root: cfg.DataDir}, nil
	default:
		return nil, fmt.Errorf("unsupported BLOB_DRIVER=%q", cfg.BlobDriver)
	}
}

func newRegistry(cfg config.Config, gemini *ai.GeminiProvider) *ai.Registry {
	reg := ai.NewRegistry()
	reg.Register("gemini", func(ctx context.Context, model string) (ai.Provider, error) {
		return gemini, nil
	})
	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, m), nil
	})
	reg.Register("openrouter", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OpenRouterModel
		}
		return ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, m, cfg.OpenRouterSiteURL, cfg.OpenRouterAppName), nil
	})
	return reg
}

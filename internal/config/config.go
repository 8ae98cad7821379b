package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const devJWTSecret = "dev-secret-change-me"

type Config struct {
	HTTPAddr    string
	AppEnv      string
	LogLevel    string
	CORSOrigins []string

	DBDriver string
	DBDSN    string

	// operator auth; empty hash disables auth on /api
	JWTSecret         string
	AdminEmail        string
	AdminPasswordHash string

	// empty addr disables redis (local lease + in-process bus)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// empty url runs the processor inside the api process
	RabbitURL   string
	RabbitQueue string

	// AI provider
	GeminiAPIKey       string
	GeminiTextModel    string
	GeminiVideoModel   string
	GeminiVideoModelHQ string
	EnhancerProvider   string
	OllamaBaseURL      string
	OllamaModel        string
	OpenRouterBaseURL  string
	OpenRouterAPIKey   string
	OpenRouterModel    string
	OpenRouterSiteURL  string
	OpenRouterAppName  string
	PromptsFile        string

	// processor
	VideoPollInterval time.Duration
	RenderTimeout     time.Duration
	RescanInterval    time.Duration
	AutoMetadata      bool

	// blob storage
	BlobDriver    string
	DataDir       string
	S3Bucket      string
	S3Prefix      string
	PublicBaseURL string
}

// AuthEnabled reports whether /api requires a bearer token.
func (c Config) AuthEnabled() bool {
	return c.AdminPasswordHash != ""
}

// Validate rejects settings that are unsafe to serve with. Outside development,
// auth needs a real JWT_SECRET.
func (c Config) Validate() error {
	if c.AuthEnabled() && c.AppEnv != "development" && c.JWTSecret == devJWTSecret {
		return errors.New("JWT_SECRET must be set when ADMIN_PASSWORD_HASH enables auth")
	}
	return nil
}

// EmbeddedProcessor reports whether the api process runs the job processor itself.
func (c Config) EmbeddedProcessor() bool {
	return c.RabbitURL == ""
}

func Load() Config {
	httpAddr := os.Getenv("HTTP_ADDR")
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	appEnv := os.Getenv("APP_ENV")
	if appEnv == "" {
		appEnv = "development"
	}

	dbDriver := strings.ToLower(strings.TrimSpace(os.Getenv("DB_DRIVER")))
	if dbDriver == "" {
		dbDriver = "mysql"
	}

	// DSN demo：
	// app:apppass@tcp(127.0.0.1:3306)/ai_prime?charset=utf8mb4&parseTime=true&loc=Local
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		switch dbDriver {
		case "sqlite":
			dsn = "ai_prime.db"
		case "postgres":
			dsn = "host=127.0.0.1 user=app password=apppass dbname=ai_prime port=5432 sslmode=disable"
		default:
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=Local",
				"app", "apppass", "127.0.0.1", "3306", "ai_prime",
			)
		}
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = devJWTSecret
	}

	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			redisDB = n
		}
	}

	rabbitQueue := os.Getenv("RABBIT_QUEUE")
	if rabbitQueue == "" {
		rabbitQueue = "production_jobs"
	}

	// AI provider config
	textModel := os.Getenv("GEMINI_TEXT_MODEL")
	if textModel == "" {
		textModel = "gemini-2.5-flash"
	}
	videoModel := os.Getenv("GEMINI_VIDEO_MODEL")
	if videoModel == "" {
		videoModel = "veo-3.1-fast-generate-preview"
	}
	videoModelHQ := os.Getenv("GEMINI_VIDEO_MODEL_HQ")
	if videoModelHQ == "" {
		videoModelHQ = "veo-3.1-generate-preview"
	}

	enhancer := strings.ToLower(strings.TrimSpace(os.Getenv("ENHANCER_PROVIDER")))
	if enhancer == "" {
		enhancer = "gemini"
	}

	ollamaBaseURL := os.Getenv("OLLAMA_BASE_URL")
	if ollamaBaseURL == "" {
		ollamaBaseURL = "http://localhost:11434"
	}
	ollamaModel := os.Getenv("OLLAMA_MODEL")
	if ollamaModel == "" {
		ollamaModel = "llama3:latest"
	}

	openRouterBaseURL := os.Getenv("OPENROUTER_BASE_URL")
	if openRouterBaseURL == "" {
		openRouterBaseURL = "https://openrouter.ai/api/v1"
	}
	openRouterModel := os.Getenv("OPENROUTER_MODEL")
	if openRouterModel == "" {
		openRouterModel = "openrouter/auto"
	}

	blobDriver := strings.ToLower(strings.TrimSpace(os.Getenv("BLOB_DRIVER")))
	if blobDriver == "" {
		blobDriver = "local"
	}
	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "./data"
	}

	publicBaseURL := strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/")
	if publicBaseURL == "" {
		addr := httpAddr
		if strings.HasPrefix(addr, ":") {
			addr = "localhost" + addr
		}
		publicBaseURL = "http://" + addr
	}

	return Config{
		HTTPAddr:    httpAddr,
		AppEnv:      appEnv,
		LogLevel:    os.Getenv("LOG_LEVEL"),
		CORSOrigins: csvEnv("CORS_ORIGINS"),

		DBDriver: dbDriver,
		DBDSN:    dsn,

		JWTSecret:         secret,
		AdminEmail:        os.Getenv("ADMIN_EMAIL"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,

		RabbitURL:   os.Getenv("RABBIT_URL"),
		RabbitQueue: rabbitQueue,

		GeminiAPIKey:       firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY"),
		GeminiTextModel:    textModel,
		GeminiVideoModel:   videoModel,
		GeminiVideoModelHQ: videoModelHQ,
		EnhancerProvider:   enhancer,
		OllamaBaseURL:      ollamaBaseURL,
		OllamaModel:        ollamaModel,
		OpenRouterBaseURL:  openRouterBaseURL,
		OpenRouterAPIKey:   os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterModel:    openRouterModel,
		OpenRouterSiteURL:  os.Getenv("OPENROUTER_SITE_URL"),
		OpenRouterAppName:  os.Getenv("OPENROUTER_APP_NAME"),
		PromptsFile:        os.Getenv("PROMPTS_FILE"),

		VideoPollInterval: durationEnv("VIDEO_POLL_INTERVAL", 10*time.Second),
		RenderTimeout:     durationEnv("RENDER_TIMEOUT", 15*time.Minute),
		RescanInterval:    durationEnv("PROCESSOR_RESCAN_INTERVAL", 5*time.Second),
		AutoMetadata:      boolEnv("AUTO_METADATA", false),

		BlobDriver:    blobDriver,
		DataDir:       dataDir,
		S3Bucket:      os.Getenv("S3_BUCKET"),
		S3Prefix:      os.Getenv("S3_PREFIX"),
		PublicBaseURL: publicBaseURL,
	}
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func boolEnv(key string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if raw == "" {
		return fallback
	}
	return raw == "1" || raw == "true" || raw == "yes" || raw == "on"
}

func csvEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

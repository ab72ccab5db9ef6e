package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// defaultGeminiModels is the failover order used when GEMINI_MODELS is unset.
var defaultGeminiModels = []string{
	"gemini-2.0-flash-exp",
	"gemini-2.0-flash",
	"gemini-1.5-flash",
	"gemini-1.5-flash-8b",
	"gemini-1.5-pro",
	"gemini-pro",
}

type Config struct {
	Port              string
	FrontendURL       string
	LogLevel          string
	MaxUploadBytes    int64
	RateLimitRequests int
	RateLimitWindow   time.Duration

	StoreDriver string
	DatabaseURL string
	SQLitePath  string

	GeminiAPIKey    string
	GeminiModels    []string
	OpenAIAPIKey    string
	OpenAIModels    []string
	AnthropicAPIKey string
	AnthropicModels []string

	PdfParsers    []string
	TesseractPath string
	TessdataDir   string
	OcrTimeout    time.Duration

	AwsAccessKey   string
	AwsSecretKey   string
	AwsRegion      string
	BucketName     string
	ArchiveWorkers int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration
}

// LoadConfig reads .env (when present) and the process environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", "5000"),
		FrontendURL:       getEnv("FRONTEND_URL", "http://localhost:3000"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		MaxUploadBytes:    int64(getEnvInt("MAX_UPLOAD_BYTES", 10*1024*1024)),
		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", 15*time.Minute),

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StoreSQLite)),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		SQLitePath:  getEnv("SQLITE_PATH", "digesta.db"),

		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiModels:    getEnvList("GEMINI_MODELS", defaultGeminiModels),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIModels:    getEnvList("OPENAI_MODELS", []string{"gpt-4o-mini"}),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModels: getEnvList("ANTHROPIC_MODELS", []string{"claude-3-5-haiku-latest"}),

		PdfParsers:    getEnvList("PDF_PARSERS", []string{"ledongthuc", "pdfcpu"}),
		TesseractPath: getEnv("TESSERACT_PATH", "tesseract"),
		TessdataDir:   getEnv("TESSDATA_DIR", ""),
		OcrTimeout:    getEnvDuration("OCR_TIMEOUT", 2*time.Minute),

		AwsAccessKey:   getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey:   getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:      getEnv("AWS_REGION", "us-east-2"),
		BucketName:     getEnv("BUCKET_NAME", ""),
		ArchiveWorkers: getEnvInt("ARCHIVE_WORKERS", 2),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		CacheTTL:      getEnvDuration("CACHE_TTL", 24*time.Hour),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with. A missing AI key
// only warns: the service then answers with extractive summaries.
func (c *Config) Validate() error {
	var errs []error
	switch c.StoreDriver {
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL not set"))
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH not set"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER %q: use postgres or sqlite", c.StoreDriver))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive"))
	}
	if !c.HasAIBackend() {
		slog.Warn("no AI API key configured, summaries will use basic extraction only")
	}
	return errors.Join(errs...)
}

func (c *Config) HasAIBackend() bool {
	return c.GeminiAPIKey != "" || c.OpenAIAPIKey != "" || c.AnthropicAPIKey != ""
}

func (c *Config) ArchiveEnabled() bool {
	return c.AwsAccessKey != "" && c.AwsSecretKey != "" && c.BucketName != ""
}

// SlogLevel maps LogLevel onto slog, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("not an int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("not a duration, using default", "key", key, "value", v, "default", def.String())
		return def
	}
	return d
}

// getEnvList splits a comma separated value, dropping empty items.
func getEnvList(key string, def []string) []string {
	v := getEnv(key, "")
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), def...)
	}
	return out
}

package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port              string
	CORSAllowOrigin   []string
	ObjectStoreType   string
	LocalStoreDir     string
	AWSRegion         string
	S3Bucket          string
	S3Prefix          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	SSEKMSKeyID       string
	PresignTTL        time.Duration
	LLMProvider       string
	LLMModel          string
	DatabaseURL       string
	Env               string
	LogLevel          string
	Worker            WorkerConfig
}

// WorkerConfig controls the job worker loop and the stale sweep.
type WorkerConfig struct {
	PollInterval     time.Duration
	ErrorBackoff     time.Duration
	StaleAfter       time.Duration
	SweepInterval    time.Duration
	MaxAnalysisChars int
	MetricsAddr      string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:              getEnv("PORT", "8080"),
		CORSAllowOrigin:   splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		ObjectStoreType:   normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:     getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:         getEnv("AWS_REGION", "auto"),
		S3Bucket:          getEnv("S3_BUCKET", ""),
		S3Prefix:          getEnv("S3_PREFIX", ""),
		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		SSEKMSKeyID:       getEnv("SSE_KMS_KEY_ID", ""),
		PresignTTL:        getDuration("PRESIGN_TTL", 10*time.Minute),
		LLMProvider:       getEnv("LLM_PROVIDER", "openai"),
		LLMModel:          getEnv("LLM_MODEL", ""),
		DatabaseURL:       dbURL,
		Env:               env,
		LogLevel:          getEnv("LOG_LEVEL", ""),
		Worker: WorkerConfig{
			PollInterval:     getDuration("WORKER_POLL_INTERVAL", time.Second),
			ErrorBackoff:     getDuration("WORKER_ERROR_BACKOFF", 2*time.Second),
			StaleAfter:       getDuration("JOB_STALE_AFTER", 10*time.Minute),
			SweepInterval:    getDuration("JOB_SWEEP_INTERVAL", 2*time.Minute),
			MaxAnalysisChars: getInt("ANALYSIS_MAX_CHARS", 30000),
			MetricsAddr:      getEnv("WORKER_METRICS_ADDR", ""),
		},
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		log.Printf("config %s invalid int %q, using %d", key, raw, def)
		return def
	}
	return val
}

// DurationEnv reads a positive Go duration from key, falling back to def.
func DurationEnv(key string, def time.Duration) time.Duration {
	return getDuration(key, def)
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil || val <= 0 {
		log.Printf("config %s invalid duration %q, using %s", key, raw, def)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3", "r2":
		return "s3"
	default:
		return "local"
	}
}

package common

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig
	OCR       OCRConfig
	Extract   ExtractConfig
	Reconcile ReconcileConfig
	Queue     QueueConfig
	Ingest    IngestConfig
	LogLevel  string
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string // "postgres" or "sqlite"
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// OCRConfig holds OCR provider configuration
type OCRConfig struct {
	Provider string
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// ExtractConfig holds field-extraction behavior settings
type ExtractConfig struct {
	ExcerptLimit int
}

// ReconcileConfig holds candidate-matching settings
type ReconcileConfig struct {
	CandidateLimit  int
	AmountTolerance float64
	DateWindowDays  int
}

// QueueConfig holds processing worker pool settings
type QueueConfig struct {
	Workers        int
	Size           int
	ProcessTimeout time.Duration
}

// IngestConfig holds filesystem ingestion settings
type IngestConfig struct {
	ProfileID string
	WatchDirs []string
	Debounce  time.Duration
}

// LoadConfig loads configuration from environment variables, with an
// optional .env file picked up from the working directory or project root.
func LoadConfig() *Config {
	for _, envFile := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	var watchDirs []string
	for _, dir := range strings.Split(getEnv("INGEST_WATCH_DIRS", ""), ":") {
		if dir = strings.TrimSpace(dir); dir != "" {
			watchDirs = append(watchDirs, dir)
		}
	}

	return &Config{
		Database: DatabaseConfig{
			Driver:           getEnv("DB_DRIVER", "sqlite"),
			DSN:              getEnv("DB_URL", "receipt-recon.db"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		OCR: OCRConfig{
			Provider: getEnv("OCR_PROVIDER", "ocrweb"),
			Endpoint: getEnv("OCR_ENDPOINT", ""),
			APIKey:   getEnv("OCR_API_KEY", ""),
			Timeout:  getEnvAsDuration("OCR_TIMEOUT", 45*time.Second),
		},
		Extract: ExtractConfig{
			ExcerptLimit: getEnvAsInt("EXCERPT_LIMIT", 500),
		},
		Reconcile: ReconcileConfig{
			CandidateLimit:  getEnvAsInt("RECON_CANDIDATE_LIMIT", 5),
			AmountTolerance: getEnvAsFloat64("RECON_AMOUNT_TOLERANCE", 0.5),
			DateWindowDays:  getEnvAsInt("RECON_DATE_WINDOW_DAYS", 7),
		},
		Queue: QueueConfig{
			Workers:        getEnvAsInt("QUEUE_WORKERS", 4),
			Size:           getEnvAsInt("QUEUE_SIZE", 256),
			ProcessTimeout: getEnvAsDuration("QUEUE_PROCESS_TIMEOUT", 3*time.Minute),
		},
		Ingest: IngestConfig{
			ProfileID: getEnv("INGEST_PROFILE_ID", ""),
			WatchDirs: watchDirs,
			Debounce:  getEnvAsDuration("INGEST_DEBOUNCE", 500*time.Millisecond),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		return NewAppError("CONFIG_ERROR", "DB_DRIVER must be postgres or sqlite", ErrInvalidInput)
	}
	if c.OCR.Provider != "" && c.OCR.Endpoint == "" {
		return NewAppError("CONFIG_ERROR", "OCR_ENDPOINT is required", ErrInvalidInput)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

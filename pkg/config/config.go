package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Ingest        IngestConfig
	Observability ObservabilityConfig
	Profiling     ProfilingConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	BaseURL            string
	RateLimitPerSecond int
	RateLimitBurst     int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// IngestConfig tunes the statement pipeline and the categorization worker.
type IngestConfig struct {
	MaxUploadBytes        int64
	ArchiveUploads        bool
	ArchivePath           string
	WorkerEnabled         bool
	WorkerJobsPerSecond   int
	JobStaleAfter         time.Duration
	ConfigRefreshInterval time.Duration
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	MetricsPort    int
}

type ProfilingConfig struct {
	Enabled bool
	Port    int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "localhost"),
			Port:               getEnvAsInt("SERVER_PORT", 8080),
			BaseURL:            getEnv("BASE_URL", "http://localhost:8080"),
			RateLimitPerSecond: getEnvAsInt("SERVER_RATE_LIMIT_PER_SECOND", 100),
			RateLimitBurst:     getEnvAsInt("SERVER_RATE_LIMIT_BURST", 200),
			ReadTimeout:        getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:       getEnvAsDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "statement-ingest-dev"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Ingest: IngestConfig{
			MaxUploadBytes:        int64(getEnvAsInt("INGEST_MAX_UPLOAD_BYTES", 25<<20)),
			ArchiveUploads:        getEnvAsBool("INGEST_ARCHIVE_UPLOADS", false),
			ArchivePath:           getEnv("INGEST_ARCHIVE_PATH", "./uploads"),
			WorkerEnabled:         getEnvAsBool("INGEST_WORKER_ENABLED", true),
			WorkerJobsPerSecond:   getEnvAsInt("INGEST_WORKER_JOBS_PER_SECOND", 2),
			JobStaleAfter:         getEnvAsDuration("INGEST_JOB_STALE_AFTER", 10*time.Minute),
			ConfigRefreshInterval: getEnvAsDuration("INGEST_CONFIG_REFRESH_INTERVAL", 5*time.Minute),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
		},
		Profiling: ProfilingConfig{
			Enabled: getEnvAsBool("PPROF_ENABLED", false),
			Port:    getEnvAsInt("PPROF_PORT", 6060),
		},
	}

	if cfg.Ingest.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("INGEST_MAX_UPLOAD_BYTES must be positive, got %d", cfg.Ingest.MaxUploadBytes)
	}

	return cfg, nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

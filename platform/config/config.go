// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// InboundAuthConfig provides credentials expected on inbound API calls.
type InboundAuthConfig interface {
	GetAPIUsername() string
	GetAPIPassword() string
}

// ReconcilerConfig provides settings for the insight reconciliation service.
type ReconcilerConfig interface {
	GetWorkerPoolSize() int
	GetWaitCeiling() time.Duration
	GetCancellationThreshold() float64
}

// DriftGateConfig provides settings for the pre-execution consistency check.
type DriftGateConfig interface {
	GetDriftPollInterval() time.Duration
	GetDriftPollBudget() time.Duration
}

// RetryConfig bounds retries against eventually consistent stores.
type RetryConfig interface {
	GetTicketRetryAttempts() int
	GetTicketRetryDelay() time.Duration
}

// TicketConfig provides settings for the change ticket system client.
type TicketConfig interface {
	GetTicketBaseURL() string
	GetTicketUsername() string
	GetTicketPassword() string
	GetTicketRetryAttempts() int
	GetTicketRetryDelay() time.Duration
	IsTicketEnabled() bool
}

// OptimizerConfig provides settings for the analysis engine client.
type OptimizerConfig interface {
	GetOptimizerBaseURL() string
	GetOptimizerUsername() string
	GetOptimizerPassword() string
	IsOptimizerEnabled() bool
}

// SchedulerConfig provides settings for the task queue and window
// dispatcher.
type SchedulerConfig interface {
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetWindowScanInterval() time.Duration
}

// ReportStoreConfig provides settings for MinIO report archival.
type ReportStoreConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketReports() string
	IsMinIOEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                   string
	HTTPAddr              string
	DatabaseURL           string
	CORSAllowAll          bool
	CORSOrigins           []string
	CORSAllowCreds        bool
	APIUsername           string
	APIPassword           string
	WorkerPoolSize        int
	WaitCeiling           time.Duration
	CancellationThreshold float64
	DriftPollInterval     time.Duration
	DriftPollBudget       time.Duration
	TicketBaseURL         string
	TicketUsername        string
	TicketPassword        string
	TicketRetryAttempts   int
	TicketRetryDelay      time.Duration
	OptimizerBaseURL      string
	OptimizerUsername     string
	OptimizerPassword     string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	AsynqQueueName        string
	AsynqConcurrency      int
	WindowScanInterval    time.Duration
	MinIOEndpoint         string
	MinIOAccessKey        string
	MinIOSecretKey        string
	MinIOUseSSL           bool
	MinioBucketReports    string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// InboundAuthConfig implementation
func (c *Config) GetAPIUsername() string { return c.APIUsername }
func (c *Config) GetAPIPassword() string { return c.APIPassword }

// ReconcilerConfig implementation
func (c *Config) GetWorkerPoolSize() int               { return c.WorkerPoolSize }
func (c *Config) GetWaitCeiling() time.Duration        { return c.WaitCeiling }
func (c *Config) GetCancellationThreshold() float64    { return c.CancellationThreshold }

// DriftGateConfig implementation
func (c *Config) GetDriftPollInterval() time.Duration { return c.DriftPollInterval }
func (c *Config) GetDriftPollBudget() time.Duration   { return c.DriftPollBudget }

// TicketConfig implementation
func (c *Config) GetTicketBaseURL() string            { return c.TicketBaseURL }
func (c *Config) GetTicketUsername() string           { return c.TicketUsername }
func (c *Config) GetTicketPassword() string           { return c.TicketPassword }
func (c *Config) GetTicketRetryAttempts() int         { return c.TicketRetryAttempts }
func (c *Config) GetTicketRetryDelay() time.Duration  { return c.TicketRetryDelay }
func (c *Config) IsTicketEnabled() bool               { return c.TicketBaseURL != "" }

// OptimizerConfig implementation
func (c *Config) GetOptimizerBaseURL() string  { return c.OptimizerBaseURL }
func (c *Config) GetOptimizerUsername() string { return c.OptimizerUsername }
func (c *Config) GetOptimizerPassword() string { return c.OptimizerPassword }
func (c *Config) IsOptimizerEnabled() bool     { return c.OptimizerBaseURL != "" }

// SchedulerConfig implementation
func (c *Config) GetRedisAddr() string                  { return c.RedisAddr }
func (c *Config) GetRedisPassword() string              { return c.RedisPassword }
func (c *Config) GetRedisDB() int                       { return c.RedisDB }
func (c *Config) GetAsynqQueueName() string             { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int              { return c.AsynqConcurrency }
func (c *Config) GetWindowScanInterval() time.Duration  { return c.WindowScanInterval }

// ReportStoreConfig implementation
func (c *Config) GetMinIOEndpoint() string      { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string     { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string     { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool          { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketReports() string { return c.MinioBucketReports }
func (c *Config) IsMinIOEnabled() bool          { return c.MinIOEndpoint != "" }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                   getEnv("APP_ENV", "development"),
		HTTPAddr:              getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		CORSAllowAll:          corsAllowAll,
		CORSOrigins:           corsOrigins,
		CORSAllowCreds:        strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		APIUsername:           getEnv("API_USERNAME", ""),
		APIPassword:           getEnv("API_PASSWORD", ""),
		WorkerPoolSize:        mustInt(getEnv("WORKER_POOL_SIZE", "4")),
		WaitCeiling:           mustDuration(getEnv("RECONCILE_WAIT_CEILING", "12m")),
		CancellationThreshold: mustFloat(getEnv("CANCELLATION_THRESHOLD", "0")),
		DriftPollInterval:     mustDuration(getEnv("DRIFT_POLL_INTERVAL", "10s")),
		DriftPollBudget:       mustDuration(getEnv("DRIFT_POLL_BUDGET", "300s")),
		TicketBaseURL:         getEnv("TICKET_BASE_URL", ""),
		TicketUsername:        getEnv("TICKET_USERNAME", ""),
		TicketPassword:        getEnv("TICKET_PASSWORD", ""),
		TicketRetryAttempts:   mustInt(getEnv("TICKET_RETRY_ATTEMPTS", "3")),
		TicketRetryDelay:      mustDuration(getEnv("TICKET_RETRY_DELAY", "2s")),
		OptimizerBaseURL:      getEnv("OPTIMIZER_BASE_URL", ""),
		OptimizerUsername:     getEnv("OPTIMIZER_USERNAME", ""),
		OptimizerPassword:     getEnv("OPTIMIZER_PASSWORD", ""),
		RedisAddr:             getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:         getEnv("REDIS_PASSWORD", ""),
		RedisDB:               mustInt(getEnv("REDIS_DB", "0")),
		AsynqQueueName:        getEnv("ASYNQ_QUEUE_NAME", "default"),
		AsynqConcurrency:      mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		WindowScanInterval:    mustDuration(getEnv("WINDOW_SCAN_INTERVAL", "30s")),
		MinIOEndpoint:         getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:        getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:        getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:           strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketReports:    getEnv("MINIO_BUCKET_REPORTS", "change-reports"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.APIUsername == "" || cfg.APIPassword == "" {
		return nil, fmt.Errorf("API_USERNAME and API_PASSWORD are required")
	}
	if cfg.WorkerPoolSize < 1 {
		return nil, fmt.Errorf("WORKER_POOL_SIZE must be at least 1")
	}
	if cfg.TicketBaseURL != "" && (cfg.TicketUsername == "" || cfg.TicketPassword == "") {
		return nil, fmt.Errorf("TICKET_USERNAME and TICKET_PASSWORD are required when TICKET_BASE_URL is set")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}

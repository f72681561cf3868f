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

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// RateLimitConfig provides settings for the public capture rate limiter.
type RateLimitConfig interface {
	GetRateLimitRequests() int
	GetRateLimitWindow() time.Duration
	GetRateLimitSweepInterval() time.Duration
	GetRateLimitBackend() string
}

// SchedulerConfig provides settings for the Redis-backed task queue.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// DispatchConfig provides settings for the in-process fan-out worker pool.
type DispatchConfig interface {
	GetDispatchWorkers() int
	GetDispatchQueueSize() int
}

// EmailConfig provides settings for SMTP email sending.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketLeadMagnets() string
	IsMinIOEnabled() bool
}

// MetricsConfig provides settings for the OTLP metrics exporter.
type MetricsConfig interface {
	GetOTelEndpoint() string
	GetOTelInsecure() bool
	IsMetricsEnabled() bool
}

// DeliveryConfig provides settings shared by outbound delivery clients.
type DeliveryConfig interface {
	GetDeliveryTimeout() time.Duration
	GetHeyReachBaseURL() string
	GetHeyReachMaxAttempts() int
	GetHeyReachRatePerSecond() float64
	GetMetaGraphBaseURL() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                    string
	HTTPAddr               string
	DatabaseURL            string
	JWTAccessSecret        string
	CORSAllowAll           bool
	CORSOrigins            []string
	CORSAllowCreds         bool
	RateLimitRequests      int
	RateLimitWindow        time.Duration
	RateLimitSweepInterval time.Duration
	RateLimitBackend       string
	RedisURL               string
	RedisTLSInsecure       bool
	AsynqQueueName         string
	AsynqConcurrency       int
	DispatchWorkers        int
	DispatchQueueSize      int
	EmailEnabled           bool
	SMTPHost               string
	SMTPPort               int
	SMTPUsername           string
	SMTPPassword           string
	EmailFromName          string
	EmailFromAddress       string
	MinIOEndpoint          string
	MinIOAccessKey         string
	MinIOSecretKey         string
	MinIOUseSSL            bool
	MinioBucketLeadMagnets string
	OTelEndpoint           string
	OTelInsecure           bool
	DeliveryTimeout        time.Duration
	HeyReachBaseURL        string
	HeyReachMaxAttempts    int
	HeyReachRatePerSecond  float64
	MetaGraphBaseURL       string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// RateLimitConfig implementation
func (c *Config) GetRateLimitRequests() int                { return c.RateLimitRequests }
func (c *Config) GetRateLimitWindow() time.Duration        { return c.RateLimitWindow }
func (c *Config) GetRateLimitSweepInterval() time.Duration { return c.RateLimitSweepInterval }
func (c *Config) GetRateLimitBackend() string              { return c.RateLimitBackend }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// DispatchConfig implementation
func (c *Config) GetDispatchWorkers() int   { return c.DispatchWorkers }
func (c *Config) GetDispatchQueueSize() int { return c.DispatchQueueSize }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string          { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string         { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string         { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool              { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketLeadMagnets() string { return c.MinioBucketLeadMagnets }
func (c *Config) IsMinIOEnabled() bool              { return c.MinIOEndpoint != "" }

// MetricsConfig implementation
func (c *Config) GetOTelEndpoint() string { return c.OTelEndpoint }
func (c *Config) GetOTelInsecure() bool   { return c.OTelInsecure }
func (c *Config) IsMetricsEnabled() bool  { return c.OTelEndpoint != "" }

// DeliveryConfig implementation
func (c *Config) GetDeliveryTimeout() time.Duration { return c.DeliveryTimeout }
func (c *Config) GetHeyReachBaseURL() string        { return c.HeyReachBaseURL }
func (c *Config) GetHeyReachMaxAttempts() int       { return c.HeyReachMaxAttempts }
func (c *Config) GetHeyReachRatePerSecond() float64 { return c.HeyReachRatePerSecond }
func (c *Config) GetMetaGraphBaseURL() string       { return c.MetaGraphBaseURL }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	smtpHost := getEnv("SMTP_HOST", "")
	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")

	cfg := &Config{
		Env:                    getEnv("APP_ENV", "development"),
		HTTPAddr:               getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		JWTAccessSecret:        getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:           corsAllowAll,
		CORSOrigins:            corsOrigins,
		CORSAllowCreds:         strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "false"), "true"),
		RateLimitRequests:      mustInt(getEnv("RATE_LIMIT_REQUESTS", "5")),
		RateLimitWindow:        mustDuration(getEnv("RATE_LIMIT_WINDOW", "60s")),
		RateLimitSweepInterval: mustDuration(getEnv("RATE_LIMIT_SWEEP_INTERVAL", "5m")),
		RateLimitBackend:       strings.ToLower(getEnv("RATE_LIMIT_BACKEND", "memory")),
		RedisURL:               getEnv("REDIS_URL", ""),
		RedisTLSInsecure:       strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:         getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:       mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		DispatchWorkers:        mustInt(getEnv("DISPATCH_WORKERS", "8")),
		DispatchQueueSize:      mustInt(getEnv("DISPATCH_QUEUE_SIZE", "256")),
		EmailEnabled:           emailEnabled && smtpHost != "",
		SMTPHost:               smtpHost,
		SMTPPort:               mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:           getEnv("SMTP_USERNAME", ""),
		SMTPPassword:           getEnv("SMTP_PASSWORD", ""),
		EmailFromName:          getEnv("EMAIL_FROM_NAME", "Funnels"),
		EmailFromAddress:       getEnv("EMAIL_FROM_ADDRESS", ""),
		MinIOEndpoint:          getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:         getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:         getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:            strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketLeadMagnets: getEnv("MINIO_BUCKET_LEAD_MAGNETS", "lead-magnets"),
		OTelEndpoint:           getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTelInsecure:           strings.EqualFold(getEnv("OTEL_EXPORTER_OTLP_INSECURE", "false"), "true"),
		DeliveryTimeout:        mustDuration(getEnv("DELIVERY_TIMEOUT", "10s")),
		HeyReachBaseURL:        getEnv("HEYREACH_BASE_URL", "https://api.heyreach.io/api/public"),
		HeyReachMaxAttempts:    mustInt(getEnv("HEYREACH_MAX_ATTEMPTS", "3")),
		HeyReachRatePerSecond:  mustFloat(getEnv("HEYREACH_RATE_PER_SECOND", "5")),
		MetaGraphBaseURL:       getEnv("META_GRAPH_BASE_URL", "https://graph.facebook.com/v19.0"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.RateLimitRequests < 1 || cfg.RateLimitWindow <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive")
	}
	if cfg.RateLimitBackend != "memory" && cfg.RateLimitBackend != "redis" {
		return nil, fmt.Errorf("RATE_LIMIT_BACKEND must be memory or redis")
	}
	if cfg.RateLimitBackend == "redis" && cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required when RATE_LIMIT_BACKEND is redis")
	}
	if cfg.EmailEnabled && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
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
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
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

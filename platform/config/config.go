// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"net/http"
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

// AuthServiceConfig provides settings needed by the auth service.
type AuthServiceConfig interface {
	JWTConfig
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	// GetAutoCreateDomains lists email domains whose first sign-in creates a
	// commercial account.
	GetAutoCreateDomains() []string
}

// CookieConfig provides settings for refresh token cookies.
type CookieConfig interface {
	GetRefreshCookieName() string
	GetRefreshCookieDomain() string
	GetRefreshCookiePath() string
	GetRefreshCookieSecure() bool
	GetRefreshCookieSameSite() http.SameSite
	GetRefreshTokenTTL() time.Duration
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// EmailConfig provides SMTP settings for outgoing mail.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	GetAppBaseURL() string
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOMaxFileSize() int64
	GetMinioBucketUploads() string
	IsMinIOEnabled() bool
}

// SchedulerConfig provides settings for the asynq task queue.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// CacheConfig provides settings for the report cache.
type CacheConfig interface {
	GetRedisURL() string
	GetReportCacheTTL() time.Duration
}

// SearchConfig provides settings for the Elasticsearch prospect index.
type SearchConfig interface {
	GetElasticsearchURL() string
	GetElasticsearchIndex() string
	IsSearchEnabled() bool
}

// StreamConfig provides settings for the Kafka domain event stream.
type StreamConfig interface {
	GetKafkaBrokers() []string
	GetKafkaTopic() string
	IsStreamEnabled() bool
}

// ErrorTrackingConfig provides settings for Sentry.
type ErrorTrackingConfig interface {
	GetSentryDSN() string
	GetSentryTracesSampleRate() float64
	GetEnv() string
	GetRelease() string
}

// ComparatorConfig provides settings for the embedded insurance comparator widget.
type ComparatorConfig interface {
	GetComparatorScriptURL() string
	GetComparatorPartnerKey() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                    string
	Release                string
	HTTPAddr               string
	DatabaseURL            string
	JWTAccessSecret        string
	AccessTokenTTL         time.Duration
	RefreshTokenTTL        time.Duration
	AutoCreateDomains      []string
	CORSAllowAll           bool
	CORSOrigins            []string
	CORSAllowCreds         bool
	AppBaseURL             string
	EmailEnabled           bool
	SMTPHost               string
	SMTPPort               int
	SMTPUsername           string
	SMTPPassword           string
	EmailFromName          string
	EmailFromAddress       string
	RefreshCookieName      string
	RefreshCookieDomain    string
	RefreshCookiePath      string
	RefreshCookieSecure    bool
	RefreshCookieSameSite  http.SameSite
	MinIOEndpoint          string
	MinIOAccessKey         string
	MinIOSecretKey         string
	MinIOUseSSL            bool
	MinIOMaxFileSize       int64
	MinioBucketUploads     string
	RedisURL               string
	RedisTLSInsecure       bool
	AsynqQueueName         string
	AsynqConcurrency       int
	ReportCacheTTL         time.Duration
	ElasticsearchURL       string
	ElasticsearchIndex     string
	KafkaBrokers           []string
	KafkaTopic             string
	SentryDSN              string
	SentryTracesSampleRate float64
	ComparatorScriptURL    string
	ComparatorPartnerKey   string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// AuthServiceConfig implementation
func (c *Config) GetAccessTokenTTL() time.Duration  { return c.AccessTokenTTL }
func (c *Config) GetRefreshTokenTTL() time.Duration { return c.RefreshTokenTTL }
func (c *Config) GetAutoCreateDomains() []string    { return c.AutoCreateDomains }

// CookieConfig implementation
func (c *Config) GetRefreshCookieName() string            { return c.RefreshCookieName }
func (c *Config) GetRefreshCookieDomain() string          { return c.RefreshCookieDomain }
func (c *Config) GetRefreshCookiePath() string            { return c.RefreshCookiePath }
func (c *Config) GetRefreshCookieSecure() bool            { return c.RefreshCookieSecure }
func (c *Config) GetRefreshCookieSameSite() http.SameSite { return c.RefreshCookieSameSite }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) GetAppBaseURL() string       { return c.AppBaseURL }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string      { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string     { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string     { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool          { return c.MinIOUseSSL }
func (c *Config) GetMinIOMaxFileSize() int64    { return c.MinIOMaxFileSize }
func (c *Config) GetMinioBucketUploads() string { return c.MinioBucketUploads }
func (c *Config) IsMinIOEnabled() bool          { return c.MinIOEndpoint != "" }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// CacheConfig implementation
func (c *Config) GetReportCacheTTL() time.Duration { return c.ReportCacheTTL }

// SearchConfig implementation
func (c *Config) GetElasticsearchURL() string   { return c.ElasticsearchURL }
func (c *Config) GetElasticsearchIndex() string { return c.ElasticsearchIndex }
func (c *Config) IsSearchEnabled() bool         { return c.ElasticsearchURL != "" }

// StreamConfig implementation
func (c *Config) GetKafkaBrokers() []string { return c.KafkaBrokers }
func (c *Config) GetKafkaTopic() string     { return c.KafkaTopic }
func (c *Config) IsStreamEnabled() bool     { return len(c.KafkaBrokers) > 0 }

// ErrorTrackingConfig implementation
func (c *Config) GetSentryDSN() string               { return c.SentryDSN }
func (c *Config) GetSentryTracesSampleRate() float64 { return c.SentryTracesSampleRate }
func (c *Config) GetEnv() string                     { return c.Env }
func (c *Config) GetRelease() string                 { return c.Release }

// ComparatorConfig implementation
func (c *Config) GetComparatorScriptURL() string  { return c.ComparatorScriptURL }
func (c *Config) GetComparatorPartnerKey() string { return c.ComparatorPartnerKey }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	refreshCookieSecure := strings.EqualFold(getEnv("REFRESH_COOKIE_SECURE", ""), "true")
	if getEnv("REFRESH_COOKIE_SECURE", "") == "" {
		refreshCookieSecure = strings.EqualFold(getEnv("APP_ENV", "development"), "production")
	}

	cfg := &Config{
		Env:                    getEnv("APP_ENV", "development"),
		Release:                getEnv("APP_VERSION", "dev"),
		HTTPAddr:               getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		JWTAccessSecret:        getEnv("JWT_ACCESS_SECRET", ""),
		AccessTokenTTL:         mustDuration(getEnv("JWT_ACCESS_TTL", "15m")),
		RefreshTokenTTL:        mustDuration(getEnv("JWT_REFRESH_TTL", "720h")),
		AutoCreateDomains:      splitCSV(strings.ToLower(getEnv("AUTH_AUTO_CREATE_DOMAINS", ""))),
		CORSAllowAll:           corsAllowAll,
		CORSOrigins:            corsOrigins,
		CORSAllowCreds:         strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		AppBaseURL:             getEnv("APP_BASE_URL", "http://localhost:3000"),
		EmailEnabled:           strings.EqualFold(getEnv("EMAIL_ENABLED", "false"), "true"),
		SMTPHost:               getEnv("SMTP_HOST", ""),
		SMTPPort:               int(mustInt64(getEnv("SMTP_PORT", "587"))),
		SMTPUsername:           getEnv("SMTP_USERNAME", ""),
		SMTPPassword:           getEnv("SMTP_PASSWORD", ""),
		EmailFromName:          getEnv("EMAIL_FROM_NAME", "Premunia"),
		EmailFromAddress:       getEnv("EMAIL_FROM_ADDRESS", ""),
		RefreshCookieName:      getEnv("REFRESH_COOKIE_NAME", "premunia_refresh"),
		RefreshCookieDomain:    getEnv("REFRESH_COOKIE_DOMAIN", ""),
		RefreshCookiePath:      getEnv("REFRESH_COOKIE_PATH", "/api/v1/auth"),
		RefreshCookieSecure:    refreshCookieSecure,
		RefreshCookieSameSite:  parseSameSite(getEnv("REFRESH_COOKIE_SAMESITE", "Lax")),
		MinIOEndpoint:          getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:         getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:         getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:            strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinIOMaxFileSize:       mustInt64(getEnv("MINIO_MAX_FILE_SIZE", "20971520")),
		MinioBucketUploads:     getEnv("MINIO_BUCKET_UPLOADS", "crm-uploads"),
		RedisURL:               getEnv("REDIS_URL", ""),
		RedisTLSInsecure:       strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:         getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:       int(mustInt64(getEnv("ASYNQ_CONCURRENCY", "10"))),
		ReportCacheTTL:         mustDuration(getEnv("REPORT_CACHE_TTL", "60s")),
		ElasticsearchURL:       getEnv("ELASTICSEARCH_URL", ""),
		ElasticsearchIndex:     getEnv("ELASTICSEARCH_INDEX", "prospects"),
		KafkaBrokers:           splitCSV(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:             getEnv("KAFKA_TOPIC", "crm.events"),
		SentryDSN:              getEnv("SENTRY_DSN", ""),
		SentryTracesSampleRate: mustFloat(getEnv("SENTRY_TRACES_SAMPLE_RATE", "0.2")),
		ComparatorScriptURL:    getEnv("COMPARATOR_SCRIPT_URL", "https://cdn.oggo-data.net/widget/comparateur.js"),
		ComparatorPartnerKey:   getEnv("COMPARATOR_PARTNER_KEY", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.EmailEnabled && (cfg.SMTPHost == "" || cfg.EmailFromAddress == "") {
		return nil, fmt.Errorf("SMTP_HOST and EMAIL_FROM_ADDRESS are required when EMAIL_ENABLED is true")
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

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
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

func parseSameSite(value string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "none":
		return http.SameSiteNoneMode
	case "strict":
		return http.SameSiteStrictMode
	default:
		return http.SameSiteLaxMode
	}
}

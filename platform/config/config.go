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
	GetDatabaseMaxConns() int
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
	GetChatRateLimitPerMinute() int
}

// SessionConfig provides settings for the conversation session store.
type SessionConfig interface {
	GetRedisURL() string
	IsSessionCacheEnabled() bool
	GetSessionTTL() time.Duration
}

// QualificationConfig provides settings for the external reasoning service.
type QualificationConfig interface {
	GetLLMAPIKey() string
	GetLLMBaseURL() string
	GetLLMModel() string
	GetLLMTemperature() *float64
	GetLLMMaxTokens() int
	GetFollowUpModel() string
	GetQualificationTimeout() time.Duration
	GetQualificationPolicyFile() string
}

// SchedulerConfig provides settings for background task processing.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// EmailConfig provides settings for the sales follow-up mailer.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	GetSalesTeamEmail() string
}

// StorageConfig provides settings for MinIO S3-compatible storage.
type StorageConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketTrainingExports() string
	IsMinIOEnabled() bool
}

// LeadsConfig provides settings for lead contact normalization.
type LeadsConfig interface {
	GetPhoneDefaultRegion() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                        string
	HTTPAddr                   string
	DatabaseURL                string
	DatabaseMaxConns           int
	CORSAllowAll               bool
	CORSOrigins                []string
	CORSAllowCreds             bool
	ChatRateLimitPerMinute     int
	RedisURL                   string
	RedisTLSInsecure           bool
	SessionCacheEnabled        bool
	SessionTTL                 time.Duration
	LLMAPIKey                  string
	LLMBaseURL                 string
	LLMModel                   string
	LLMTemperature             *float64
	LLMMaxTokens               int
	FollowUpModel              string
	QualificationTimeout       time.Duration
	QualificationPolicyFile    string
	AsynqQueueName             string
	AsynqConcurrency           int
	EmailEnabled               bool
	SMTPHost                   string
	SMTPPort                   int
	SMTPUsername               string
	SMTPPassword               string
	EmailFromName              string
	EmailFromAddress           string
	SalesTeamEmail             string
	MinIOEndpoint              string
	MinIOAccessKey             string
	MinIOSecretKey             string
	MinIOUseSSL                bool
	MinioBucketTrainingExports string
	PhoneDefaultRegion         string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string   { return c.DatabaseURL }
func (c *Config) GetDatabaseMaxConns() int { return c.DatabaseMaxConns }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string             { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool           { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string        { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool         { return c.CORSAllowCreds }
func (c *Config) GetChatRateLimitPerMinute() int { return c.ChatRateLimitPerMinute }

// SessionConfig implementation
func (c *Config) GetRedisURL() string           { return c.RedisURL }
func (c *Config) IsSessionCacheEnabled() bool   { return c.SessionCacheEnabled && c.RedisURL != "" }
func (c *Config) GetSessionTTL() time.Duration  { return c.SessionTTL }
func (c *Config) GetRedisTLSInsecure() bool     { return c.RedisTLSInsecure }

// QualificationConfig implementation
func (c *Config) GetLLMAPIKey() string                   { return c.LLMAPIKey }
func (c *Config) GetLLMBaseURL() string                  { return c.LLMBaseURL }
func (c *Config) GetLLMModel() string                    { return c.LLMModel }
func (c *Config) GetLLMTemperature() *float64            { return c.LLMTemperature }
func (c *Config) GetLLMMaxTokens() int                   { return c.LLMMaxTokens }
func (c *Config) GetFollowUpModel() string               { return c.FollowUpModel }
func (c *Config) GetQualificationTimeout() time.Duration { return c.QualificationTimeout }
func (c *Config) GetQualificationPolicyFile() string     { return c.QualificationPolicyFile }

// SchedulerConfig implementation
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) GetSalesTeamEmail() string   { return c.SalesTeamEmail }

// StorageConfig implementation
func (c *Config) GetMinIOEndpoint() string  { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool      { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketTrainingExports() string {
	return c.MinioBucketTrainingExports
}
func (c *Config) IsMinIOEnabled() bool { return c.MinIOEndpoint != "" }

// LeadsConfig implementation
func (c *Config) GetPhoneDefaultRegion() string { return c.PhoneDefaultRegion }

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
		Env:                        getEnv("APP_ENV", "development"),
		HTTPAddr:                   getEnv("HTTP_ADDR", ":3001"),
		DatabaseURL:                getEnv("DATABASE_URL", ""),
		DatabaseMaxConns:           mustInt(getEnv("DATABASE_MAX_CONNS", "10")),
		CORSAllowAll:               corsAllowAll,
		CORSOrigins:                corsOrigins,
		CORSAllowCreds:             strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		ChatRateLimitPerMinute:     mustInt(getEnv("CHAT_RATE_LIMIT_PER_MINUTE", "30")),
		RedisURL:                   getEnv("REDIS_URL", ""),
		RedisTLSInsecure:           strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		SessionCacheEnabled:        strings.EqualFold(getEnv("SESSION_CACHE_ENABLED", "true"), "true"),
		SessionTTL:                 mustDuration(getEnv("SESSION_TTL", "24h")),
		LLMAPIKey:                  getEnv("LLM_API_KEY", ""),
		LLMBaseURL:                 getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMModel:                   getEnv("LLM_MODEL", "gpt-4o"),
		LLMTemperature:             optionalFloat(getEnv("LLM_TEMPERATURE", "")),
		LLMMaxTokens:               mustInt(getEnv("LLM_MAX_TOKENS", "0")),
		FollowUpModel:              getEnv("FOLLOWUP_MODEL", "gpt-4o-mini"),
		QualificationTimeout:       mustDuration(getEnv("QUALIFICATION_TIMEOUT", "30s")),
		QualificationPolicyFile:    getEnv("QUALIFICATION_POLICY_FILE", ""),
		AsynqQueueName:             getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:           mustInt(getEnv("ASYNQ_CONCURRENCY", "5")),
		EmailEnabled:               emailEnabled && smtpHost != "",
		SMTPHost:                   smtpHost,
		SMTPPort:                   mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:               getEnv("SMTP_USERNAME", ""),
		SMTPPassword:               getEnv("SMTP_PASSWORD", ""),
		EmailFromName:              getEnv("EMAIL_FROM_NAME", "Lead Intake"),
		EmailFromAddress:           getEnv("EMAIL_FROM_ADDRESS", ""),
		SalesTeamEmail:             getEnv("SALES_TEAM_EMAIL", ""),
		MinIOEndpoint:              getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:             getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:             getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:                strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketTrainingExports: getEnv("MINIO_BUCKET_TRAINING_EXPORTS", "training-exports"),
		PhoneDefaultRegion:         strings.ToUpper(getEnv("PHONE_DEFAULT_REGION", "RO")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("SESSION_TTL must be a positive duration")
	}
	if cfg.QualificationTimeout <= 0 {
		return nil, fmt.Errorf("QUALIFICATION_TIMEOUT must be a positive duration")
	}
	if cfg.EmailEnabled && (cfg.EmailFromAddress == "" || cfg.SalesTeamEmail == "") {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS and SALES_TEAM_EMAIL are required when email is enabled")
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

// optionalFloat returns nil for empty or unparsable values so the
// qualification policy default applies.
func optionalFloat(value string) *float64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return nil
	}
	return &f
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

package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Webhook    WebhookConfig
	RateLimits RateLimitConfig
	Catalog    CatalogConfig
	Exports    ExportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// WebhookConfig configures best-effort outbound webhook delivery.
type WebhookConfig struct {
	RequestURL    string
	EnrollmentURL string
	Secret        string
	Timeout       time.Duration
	Workers       int
}

// RateLimitConfig holds fixed-window limits for abuse-prone actions.
type RateLimitConfig struct {
	GuidanceMax      int
	GuidanceWindow   time.Duration
	BayatMax         int
	BayatWindow      time.Duration
	EnrollmentMax    int
	EnrollmentWindow time.Duration
}

// CatalogConfig tunes cached catalog views.
type CatalogConfig struct {
	CacheTTL time.Duration
}

// ExportsConfig governs roster/attendance export generation.
type ExportsConfig struct {
	Enabled bool
	MaxRows int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Webhook = WebhookConfig{
		RequestURL:    v.GetString("WEBHOOK_REQUEST_URL"),
		EnrollmentURL: v.GetString("WEBHOOK_ENROLLMENT_URL"),
		Secret:        v.GetString("WEBHOOK_SECRET"),
		Timeout:       parseDuration(v.GetString("WEBHOOK_TIMEOUT"), 5*time.Second),
		Workers:       v.GetInt("WEBHOOK_WORKERS"),
	}

	cfg.RateLimits = RateLimitConfig{
		GuidanceMax:      v.GetInt("RATE_LIMIT_GUIDANCE_MAX"),
		GuidanceWindow:   parseDuration(v.GetString("RATE_LIMIT_GUIDANCE_WINDOW"), time.Hour),
		BayatMax:         v.GetInt("RATE_LIMIT_BAYAT_MAX"),
		BayatWindow:      parseDuration(v.GetString("RATE_LIMIT_BAYAT_WINDOW"), time.Hour),
		EnrollmentMax:    v.GetInt("RATE_LIMIT_ENROLLMENT_MAX"),
		EnrollmentWindow: parseDuration(v.GetString("RATE_LIMIT_ENROLLMENT_WINDOW"), time.Minute),
	}

	cfg.Catalog = CatalogConfig{
		CacheTTL: parseDuration(v.GetString("CATALOG_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Exports = ExportsConfig{
		Enabled: v.GetBool("ENABLE_EXPORTS"),
		MaxRows: v.GetInt("EXPORTS_MAX_ROWS"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "irshad_lms")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("WEBHOOK_REQUEST_URL", "")
	v.SetDefault("WEBHOOK_ENROLLMENT_URL", "")
	v.SetDefault("WEBHOOK_SECRET", "")
	v.SetDefault("WEBHOOK_TIMEOUT", "5s")
	v.SetDefault("WEBHOOK_WORKERS", 2)

	v.SetDefault("RATE_LIMIT_GUIDANCE_MAX", 5)
	v.SetDefault("RATE_LIMIT_GUIDANCE_WINDOW", "1h")
	v.SetDefault("RATE_LIMIT_BAYAT_MAX", 3)
	v.SetDefault("RATE_LIMIT_BAYAT_WINDOW", "1h")
	v.SetDefault("RATE_LIMIT_ENROLLMENT_MAX", 10)
	v.SetDefault("RATE_LIMIT_ENROLLMENT_WINDOW", "1m")

	v.SetDefault("CATALOG_CACHE_TTL", "10m")

	v.SetDefault("ENABLE_EXPORTS", false)
	v.SetDefault("EXPORTS_MAX_ROWS", 5000)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

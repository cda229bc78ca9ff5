package config

import (
	"errors"
	"io/fs"
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
	Env           string
	Port          int
	APIPrefix     string
	PublicBaseURL string

	Database      DatabaseConfig
	Redis         RedisConfig
	CORS          CORSConfig
	Log           LogConfig
	Scheduler     SchedulerConfig
	Tokens        TokenConfig
	Notifications NotificationConfig
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
	AutoMigrate  bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SchedulerConfig tunes suggestion generation and ranking.
type SchedulerConfig struct {
	DefaultTimezone    string
	SuggestionLimit    int
	MinAvailabilityPct float64
	RegenerateAttempts int
	RetryBackoff       time.Duration
	CacheEnabled       bool
	CacheTTL           time.Duration
}

// TokenConfig signs participant respond links.
type TokenConfig struct {
	Secret string
	TTL    time.Duration
	Issuer string
}

// NotificationConfig controls invitation and lock notices.
type NotificationConfig struct {
	Enabled      bool
	QueueBackend string
	Workers      int
	MaxRetries   int
	RetryDelay   time.Duration
	Sender       string
	HTTPEndpoint string
	APIKey       string
	FromAddress  string
	SiteName     string
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.PublicBaseURL = strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Scheduler = SchedulerConfig{
		DefaultTimezone:    v.GetString("SCHEDULER_DEFAULT_TIMEZONE"),
		SuggestionLimit:    v.GetInt("SCHEDULER_SUGGESTION_LIMIT"),
		MinAvailabilityPct: v.GetFloat64("SCHEDULER_MIN_AVAILABILITY_PCT"),
		RegenerateAttempts: v.GetInt("SCHEDULER_REGENERATE_ATTEMPTS"),
		RetryBackoff:       parseDuration(v.GetString("SCHEDULER_RETRY_BACKOFF"), 100*time.Millisecond),
		CacheEnabled:       v.GetBool("ENABLE_SUGGESTION_CACHE"),
		CacheTTL:           parseDuration(v.GetString("SUGGESTION_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Tokens = TokenConfig{
		Secret: v.GetString("RESPOND_TOKEN_SECRET"),
		TTL:    parseDuration(v.GetString("RESPOND_TOKEN_TTL"), 30*24*time.Hour),
		Issuer: v.GetString("RESPOND_TOKEN_ISSUER"),
	}

	cfg.Notifications = NotificationConfig{
		Enabled:      v.GetBool("ENABLE_NOTIFICATIONS"),
		QueueBackend: strings.ToLower(v.GetString("NOTIFY_QUEUE_BACKEND")),
		Workers:      v.GetInt("NOTIFY_WORKERS"),
		MaxRetries:   v.GetInt("NOTIFY_MAX_RETRIES"),
		RetryDelay:   parseDuration(v.GetString("NOTIFY_RETRY_DELAY"), 5*time.Second),
		Sender:       strings.ToLower(v.GetString("NOTIFY_SENDER")),
		HTTPEndpoint: v.GetString("NOTIFY_HTTP_ENDPOINT"),
		APIKey:       v.GetString("NOTIFY_API_KEY"),
		FromAddress:  v.GetString("NOTIFY_FROM_ADDRESS"),
		SiteName:     v.GetString("NOTIFY_SITE_NAME"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "timeweave")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", false)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SCHEDULER_DEFAULT_TIMEZONE", "Asia/Ho_Chi_Minh")
	v.SetDefault("SCHEDULER_SUGGESTION_LIMIT", 10)
	v.SetDefault("SCHEDULER_MIN_AVAILABILITY_PCT", 50)
	v.SetDefault("SCHEDULER_REGENERATE_ATTEMPTS", 3)
	v.SetDefault("SCHEDULER_RETRY_BACKOFF", "100ms")
	v.SetDefault("ENABLE_SUGGESTION_CACHE", false)
	v.SetDefault("SUGGESTION_CACHE_TTL", "5m")

	v.SetDefault("RESPOND_TOKEN_SECRET", "dev_respond_secret")
	v.SetDefault("RESPOND_TOKEN_TTL", "720h")
	v.SetDefault("RESPOND_TOKEN_ISSUER", "timeweave")

	v.SetDefault("ENABLE_NOTIFICATIONS", false)
	v.SetDefault("NOTIFY_QUEUE_BACKEND", "memory")
	v.SetDefault("NOTIFY_WORKERS", 2)
	v.SetDefault("NOTIFY_MAX_RETRIES", 3)
	v.SetDefault("NOTIFY_RETRY_DELAY", "5s")
	v.SetDefault("NOTIFY_SENDER", "log")
	v.SetDefault("NOTIFY_HTTP_ENDPOINT", "https://api.resend.com/emails")
	v.SetDefault("NOTIFY_API_KEY", "")
	v.SetDefault("NOTIFY_FROM_ADDRESS", "TimeWeave <noreply@timeweave.local>")
	v.SetDefault("NOTIFY_SITE_NAME", "TimeWeave")
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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Policy       PolicyConfig
	AI           AIConfig
	Calendar     CalendarConfig
	Notification NotificationConfig
	Internal     InternalConfig
	Report       ReportConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values. An empty DSN switches the
// service to the in-memory store.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// PolicyConfig holds lifecycle rules that vary per deployment.
type PolicyConfig struct {
	AllowReopen             bool
	StudentPriorityPostEdit bool
}

// AIConfig points at the optional classifier backend. Empty BaseURL means
// the deterministic heuristic is used exclusively.
type AIConfig struct {
	BaseURL             string
	APIKey              string
	TimeoutSeconds      int
	ConfidenceThreshold float64
}

// CalendarConfig points at the optional availability backend.
type CalendarConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

// NotificationConfig holds the resolution webhook endpoint.
type NotificationConfig struct {
	WebhookURL     string
	TimeoutSeconds int
}

// InternalConfig carries shared secrets for service-to-service calls.
type InternalConfig struct {
	InternalSecret string
	AgentSecret    string
}

// ReportConfig controls weekly report caching.
type ReportConfig struct {
	CacheTTLMinutes int
	RefreshCron     string
}

// Load reads configuration from environment variables, applying defaults
// where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	threshold, err := strconv.ParseFloat(getEnv("AI_CONFIDENCE_THRESHOLD", "0.8"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid AI_CONFIDENCE_THRESHOLD: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "campus-support"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Policy: PolicyConfig{
			AllowReopen:             getEnvAsBool("POLICY_ALLOW_REOPEN", true),
			StudentPriorityPostEdit: getEnvAsBool("POLICY_STUDENT_PRIORITY_EDIT", false),
		},
		AI: AIConfig{
			BaseURL:             os.Getenv("AI_API_BASE"),
			APIKey:              os.Getenv("AI_API_KEY"),
			TimeoutSeconds:      getEnvAsInt("AI_TIMEOUT_SECONDS", 10),
			ConfidenceThreshold: threshold,
		},
		Calendar: CalendarConfig{
			BaseURL:        os.Getenv("CALENDAR_API_BASE"),
			TimeoutSeconds: getEnvAsInt("CALENDAR_TIMEOUT_SECONDS", 10),
		},
		Notification: NotificationConfig{
			WebhookURL:     os.Getenv("NOTIFY_WEBHOOK_URL"),
			TimeoutSeconds: getEnvAsInt("NOTIFY_TIMEOUT_SECONDS", 8),
		},
		Internal: InternalConfig{
			InternalSecret: getEnv("INTERNAL_SECRET", "dev-internal-secret"),
			AgentSecret:    getEnv("AGENT_SHARED_SECRET", "agent-secret"),
		},
		Report: ReportConfig{
			CacheTTLMinutes: getEnvAsInt("REPORT_CACHE_TTL_MINUTES", 10),
			RefreshCron:     getEnv("REPORT_REFRESH_CRON", "*/15 * * * *"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

package config

import (
	"errors"
	"fmt"
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
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	CORS       CORSConfig
	Log        LogConfig
	Assessment AssessmentConfig
	Sweeper    SweeperConfig
	Notify     NotifyConfig
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

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// KafkaConfig locates the broker used for notification events.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// AssessmentConfig carries the window offsets and the legal time-of-day
// ranges for schedule slots. Read once at startup; invalid values are fatal.
type AssessmentConfig struct {
	PreWindowMinutes     int
	GraceOffsetHours     int
	LateToleranceMinutes int
	WeekdayStart         string
	WeekdayEnd           string
	SaturdayStart        string
	SaturdayEnd          string
}

// SweeperConfig governs the recurring accessibility sweeps.
type SweeperConfig struct {
	Enabled        bool
	OpenerInterval time.Duration
	ExpiryInterval time.Duration
	LockTTL        time.Duration
}

// NotifyConfig tunes the async notification dispatcher.
type NotifyConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
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
		// A missing .env is fine; env vars and defaults still apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
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

	cfg.Kafka = KafkaConfig{
		Brokers: splitAndTrim(v.GetString("KAFKA_BROKERS")),
		Topic:   v.GetString("KAFKA_NOTIFICATIONS_TOPIC"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Assessment = AssessmentConfig{
		PreWindowMinutes:     v.GetInt("ASSESSMENT_PRE_WINDOW_MINUTES"),
		GraceOffsetHours:     v.GetInt("ASSESSMENT_GRACE_PERIOD_HOURS"),
		LateToleranceMinutes: v.GetInt("ASSESSMENT_LATE_TOLERANCE_MINUTES"),
		WeekdayStart:         v.GetString("SCHEDULE_WEEKDAY_START"),
		WeekdayEnd:           v.GetString("SCHEDULE_WEEKDAY_END"),
		SaturdayStart:        v.GetString("SCHEDULE_SATURDAY_START"),
		SaturdayEnd:          v.GetString("SCHEDULE_SATURDAY_END"),
	}
	if err := validateAssessment(cfg.Assessment); err != nil {
		return nil, err
	}

	cfg.Sweeper = SweeperConfig{
		Enabled:        v.GetBool("ENABLE_SWEEPER"),
		OpenerInterval: parseDuration(v.GetString("SWEEPER_OPENER_INTERVAL"), 10*time.Minute),
		ExpiryInterval: parseDuration(v.GetString("SWEEPER_EXPIRY_INTERVAL"), 15*time.Minute),
		LockTTL:        parseDuration(v.GetString("SWEEPER_LOCK_TTL"), 5*time.Minute),
	}
	if err := validateSweeper(cfg.Sweeper); err != nil {
		return nil, err
	}

	cfg.Notify = NotifyConfig{
		Workers:    v.GetInt("NOTIFY_WORKERS"),
		MaxRetries: v.GetInt("NOTIFY_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("NOTIFY_RETRY_DELAY"), 2*time.Second),
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
	v.SetDefault("DB_NAME", "individual_progress")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_NOTIFICATIONS_TOPIC", "student-notifications")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ASSESSMENT_PRE_WINDOW_MINUTES", 30)
	v.SetDefault("ASSESSMENT_GRACE_PERIOD_HOURS", 2)
	v.SetDefault("ASSESSMENT_LATE_TOLERANCE_MINUTES", 5)
	v.SetDefault("SCHEDULE_WEEKDAY_START", "16:00")
	v.SetDefault("SCHEDULE_WEEKDAY_END", "18:00")
	v.SetDefault("SCHEDULE_SATURDAY_START", "12:00")
	v.SetDefault("SCHEDULE_SATURDAY_END", "15:00")

	v.SetDefault("ENABLE_SWEEPER", true)
	v.SetDefault("SWEEPER_OPENER_INTERVAL", "10m")
	v.SetDefault("SWEEPER_EXPIRY_INTERVAL", "15m")
	v.SetDefault("SWEEPER_LOCK_TTL", "5m")

	v.SetDefault("NOTIFY_WORKERS", 2)
	v.SetDefault("NOTIFY_MAX_RETRIES", 3)
	v.SetDefault("NOTIFY_RETRY_DELAY", "2s")
}

func validateAssessment(cfg AssessmentConfig) error {
	if cfg.PreWindowMinutes <= 0 {
		return fmt.Errorf("invalid ASSESSMENT_PRE_WINDOW_MINUTES: %d", cfg.PreWindowMinutes)
	}
	if cfg.GraceOffsetHours <= 0 {
		return fmt.Errorf("invalid ASSESSMENT_GRACE_PERIOD_HOURS: %d", cfg.GraceOffsetHours)
	}
	if cfg.LateToleranceMinutes <= 0 {
		return fmt.Errorf("invalid ASSESSMENT_LATE_TOLERANCE_MINUTES: %d", cfg.LateToleranceMinutes)
	}
	for key, raw := range map[string]string{
		"SCHEDULE_WEEKDAY_START":  cfg.WeekdayStart,
		"SCHEDULE_WEEKDAY_END":    cfg.WeekdayEnd,
		"SCHEDULE_SATURDAY_START": cfg.SaturdayStart,
		"SCHEDULE_SATURDAY_END":   cfg.SaturdayEnd,
	} {
		if _, err := time.Parse("15:04", raw); err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, raw, err)
		}
	}
	return nil
}

func validateSweeper(cfg SweeperConfig) error {
	// The candidate query only scans today through tomorrow; an interval
	// longer than that bound would silently miss instances.
	if cfg.OpenerInterval <= 0 || cfg.OpenerInterval > 12*time.Hour {
		return fmt.Errorf("invalid SWEEPER_OPENER_INTERVAL: %s", cfg.OpenerInterval)
	}
	if cfg.ExpiryInterval <= 0 || cfg.ExpiryInterval > 12*time.Hour {
		return fmt.Errorf("invalid SWEEPER_EXPIRY_INTERVAL: %s", cfg.ExpiryInterval)
	}
	return nil
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

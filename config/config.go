package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	AWS       AWSConfig
	Email     EmailConfig
	Community CommunityConfig
	Calendar  CalendarConfig
	Cache     CacheConfig
	Reminders ReminderConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all (e.g. http://localhost:3000,http://localhost:3001)
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL             string // if set, used as-is (e.g. postgres://localhost:5432/hearth?sslmode=disable)
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxConns        int
	MaxConnLifetime time.Duration
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AWSConfig holds AWS credentials and the media bucket.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	MediaBucket          string
	PublicBaseURL        string // CDN in front of the bucket; empty uses the S3 URL
	PresignExpireMinutes int
}

// Enabled reports whether uploads can be served.
func (c AWSConfig) Enabled() bool {
	return c.Region != "" && c.MediaBucket != ""
}

// EmailConfig for SMTP delivery.
type EmailConfig struct {
	FromAddress string
	FromName    string
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
}

// CommunityConfig holds defaults shown before settings are edited.
type CommunityConfig struct {
	Name             string
	TimeZone         string
	DefaultLocale    string
	SupportedLocales []string
}

// Location loads TimeZone, falling back to UTC.
func (c CommunityConfig) Location() *time.Location {
	if loc, err := time.LoadLocation(c.TimeZone); err == nil {
		return loc
	}
	return time.UTC
}

// CalendarConfig bounds recurring event expansion.
type CalendarConfig struct {
	HorizonMonths int
	MaxSteps      int
}

// CacheConfig holds view cache TTLs.
type CacheConfig struct {
	CalendarTTL    time.Duration
	LeaderboardTTL time.Duration
	MembersTTL     time.Duration
	SettingsTTL    time.Duration
}

// ReminderConfig controls event reminder emails.
type ReminderConfig struct {
	Enabled  bool
	Lead     time.Duration
	Interval time.Duration
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001"),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			DBName:          getEnv("DB_NAME", "hearth"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxConns:        getEnvInt("DB_MAX_CONNS", 0),
			MaxConnLifetime: getEnvDuration("DB_MAX_CONN_LIFETIME", 0),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			MediaBucket:          getEnv("AWS_S3_MEDIA_BUCKET", ""),
			PublicBaseURL:        getEnv("AWS_S3_PUBLIC_BASE_URL", ""),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Email: EmailConfig{
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "noreply@example.com"),
			FromName:    getEnv("EMAIL_FROM_NAME", "Hearth"),
			SMTPHost:    getEnv("SMTP_HOST", ""),
			SMTPPort:    getEnvInt("SMTP_PORT", 587),
			SMTPUser:    getEnv("SMTP_USER", ""),
			SMTPPass:    getEnv("SMTP_PASS", ""),
		},
		Community: CommunityConfig{
			Name:             getEnv("COMMUNITY_NAME", "Hearth"),
			TimeZone:         getEnv("COMMUNITY_TIMEZONE", "UTC"),
			DefaultLocale:    getEnv("DEFAULT_LOCALE", "en"),
			SupportedLocales: splitTrim(getEnv("SUPPORTED_LOCALES", "en,de,fr,es"), ","),
		},
		Calendar: CalendarConfig{
			HorizonMonths: getEnvInt("CALENDAR_HORIZON_MONTHS", 12),
			MaxSteps:      getEnvInt("CALENDAR_MAX_STEPS", 10000),
		},
		Cache: CacheConfig{
			CalendarTTL:    getEnvDuration("CACHE_CALENDAR_TTL", 5*time.Minute),
			LeaderboardTTL: getEnvDuration("CACHE_LEADERBOARD_TTL", time.Minute),
			MembersTTL:     getEnvDuration("CACHE_MEMBERS_TTL", time.Minute),
			SettingsTTL:    getEnvDuration("CACHE_SETTINGS_TTL", 10*time.Minute),
		},
		Reminders: ReminderConfig{
			Enabled:  getEnvBool("EVENT_REMINDERS_ENABLED", true),
			Lead:     getEnvDuration("EVENT_REMINDER_LEAD", time.Hour),
			Interval: getEnvDuration("EVENT_REMINDER_INTERVAL", 5*time.Minute),
		},
	}
	if cfg.Calendar.HorizonMonths <= 0 || cfg.Calendar.MaxSteps <= 0 {
		return nil, fmt.Errorf("calendar horizon and max steps must be positive")
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("90s", "5m").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration
type Config struct {
	ServerPort string `envconfig:"PORT" default:"8080"`

	// DatabaseType selects the dialect: sqlite, postgres or mysql.
	// MySQL URLs must carry parseTime=true.
	DatabaseType string `envconfig:"DB_TYPE" default:"sqlite"`
	DatabasePath string `envconfig:"DB_PATH" default:"./talkquest.db"`
	DatabaseURL  string `envconfig:"DATABASE_URL"`

	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`

	JWTSecret        string `envconfig:"JWT_SECRET" required:"true"`
	JWTIssuer        string `envconfig:"JWT_ISSUER"`
	InternalAPIToken string `envconfig:"INTERNAL_API_TOKEN"`

	// StreakTimezone is the reference zone used to turn "now" into a calendar day.
	StreakTimezone string `envconfig:"STREAK_TIMEZONE" default:"UTC"`
	StreakLapseAt  string `envconfig:"STREAK_LAPSE_AT" default:"00:10"`
	MaxGameXP      int    `envconfig:"MAX_GAME_XP" default:"500"`

	RedisURL      string        `envconfig:"REDIS_URL"`
	StatsCacheTTL time.Duration `envconfig:"STATS_CACHE_TTL" default:"5m"`

	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"120"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	SESRegion    string `envconfig:"AWS_REGION" default:"us-east-1"`
	SESFromEmail string `envconfig:"SES_FROM_EMAIL"`
	SESFromName  string `envconfig:"SES_FROM_NAME" default:"TalkQuest"`
	AppBaseURL   string `envconfig:"APP_BASE_URL" default:"http://localhost:8080"`

	location *time.Location
}

// Load reads configuration from a .env file (if present) and environment variables
func Load() (*Config, error) {
	// A missing .env file is fine; real deployments use the environment.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	switch strings.ToLower(c.DatabaseType) {
	case "sqlite", "sqlite3", "":
	case "postgres", "postgresql", "mysql":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for DB_TYPE=%s", c.DatabaseType)
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}

	if c.MaxGameXP <= 0 {
		return errors.New("MAX_GAME_XP must be positive")
	}

	loc, err := time.LoadLocation(c.StreakTimezone)
	if err != nil {
		return fmt.Errorf("invalid STREAK_TIMEZONE %q: %w", c.StreakTimezone, err)
	}
	c.location = loc

	if _, err := time.Parse("15:04", c.StreakLapseAt); err != nil {
		return fmt.Errorf("invalid STREAK_LAPSE_AT %q: %w", c.StreakLapseAt, err)
	}
	return nil
}

// Location returns the reference zone for calendar-day calculations
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

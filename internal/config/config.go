// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Filename string `yaml:"filename"`
	// Milliseconds a writer waits for the database lock before failing.
	BusyTimeoutMS int `yaml:"busy_timeout_ms"`
}

type BookingConfig struct {
	SlotStepMinutes     int           `yaml:"slot_step_minutes"`
	SeatingMinutes      int           `yaml:"seating_minutes"`
	RefreshInterval     time.Duration `yaml:"refresh_interval"`
	PhoneRegion         string        `yaml:"phone_region"`
	ReminderCron        string        `yaml:"reminder_cron"`
	ReminderHoursBefore int           `yaml:"reminder_hours_before"`
}

func (b BookingConfig) SlotStep() time.Duration {
	return time.Duration(b.SlotStepMinutes) * time.Minute
}

func (b BookingConfig) Seating() time.Duration {
	return time.Duration(b.SeatingMinutes) * time.Minute
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	DB       int           `yaml:"db"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
	Password string        `yaml:"-"` // Loaded from environment
}

type RabbitMQConfig struct {
	Queue string `yaml:"queue"`
	URL   string `yaml:"-"` // Loaded from environment
}

type EmailConfig struct {
	Region string `yaml:"region"`
	Sender string `yaml:"sender"`
}

type RateLimitConfig struct {
	BookMaxPerHour   int  `yaml:"book_max_per_hour"`
	BookMaxIPPerHour int  `yaml:"book_max_ip_per_hour"`
	TrustProxy       bool `yaml:"trust_proxy"`
}

type Config struct {
	App struct {
		Name        string `yaml:"name"`
		Environment string `yaml:"environment"`
		Port        int    `yaml:"port"`
		BaseURL     string `yaml:"base_url"`
		Timezone    string `yaml:"timezone"`
	} `yaml:"app"`

	Database  DatabaseConfig  `yaml:"database"`
	Booking   BookingConfig   `yaml:"booking"`
	Redis     RedisConfig     `yaml:"redis"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	Email     EmailConfig     `yaml:"email"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
}

// Load loads both .env and yaml configuration
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	// Load sensitive values from environment
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	cfg.RabbitMQ.URL = os.Getenv("RABBITMQ_URL")
	if region := os.Getenv("AWS_REGION"); region != "" && cfg.Email.Region == "" {
		cfg.Email.Region = region
	}
	if sender := os.Getenv("EMAIL_SENDER"); sender != "" {
		cfg.Email.Sender = sender
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML configuration and fills in defaults. It does not read
// the environment or validate.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Environment == "" {
		c.App.Environment = "development"
	}
	if c.App.Timezone == "" {
		c.App.Timezone = "Europe/Bucharest"
	}
	if c.Database.BusyTimeoutMS == 0 {
		c.Database.BusyTimeoutMS = 5000
	}
	if c.Booking.SlotStepMinutes == 0 {
		c.Booking.SlotStepMinutes = 10
	}
	if c.Booking.SeatingMinutes == 0 {
		c.Booking.SeatingMinutes = 89
	}
	if c.Booking.RefreshInterval == 0 {
		c.Booking.RefreshInterval = 60 * time.Second
	}
	if c.Booking.PhoneRegion == "" {
		c.Booking.PhoneRegion = "RO"
	}
	if c.Booking.ReminderCron == "" {
		c.Booking.ReminderCron = "*/15 * * * *"
	}
	if c.Booking.ReminderHoursBefore == 0 {
		c.Booking.ReminderHoursBefore = 3
	}
	if c.Redis.CacheTTL == 0 {
		c.Redis.CacheTTL = 30 * time.Second
	}
	if c.RabbitMQ.Queue == "" {
		c.RabbitMQ.Queue = "reservation_events"
	}
	if c.RateLimit.BookMaxPerHour == 0 {
		c.RateLimit.BookMaxPerHour = 10
	}
	if c.RateLimit.BookMaxIPPerHour == 0 {
		c.RateLimit.BookMaxIPPerHour = 30
	}
}

// Location loads the configured venue time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.App.Timezone, err)
	}
	return loc, nil
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.App.Port == 0 {
		return fmt.Errorf("app port is required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Database.Driver == "" {
		return fmt.Errorf("database driver is required")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Filename == "" {
			return fmt.Errorf("database filename is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Booking.SlotStepMinutes < 1 {
		return fmt.Errorf("booking slot_step_minutes must be positive")
	}
	if c.Booking.SeatingMinutes < 1 {
		return fmt.Errorf("booking seating_minutes must be positive")
	}
	if c.Booking.RefreshInterval < time.Second {
		return fmt.Errorf("booking refresh_interval must be at least 1s")
	}
	if _, err := cron.ParseStandard(c.Booking.ReminderCron); err != nil {
		return fmt.Errorf("invalid booking reminder_cron %q: %w", c.Booking.ReminderCron, err)
	}
	if c.Booking.ReminderHoursBefore < 0 {
		return fmt.Errorf("booking reminder_hours_before must not be negative")
	}
	if c.RateLimit.BookMaxPerHour < 0 || c.RateLimit.BookMaxIPPerHour < 0 {
		return fmt.Errorf("ratelimit values must not be negative")
	}

	return nil
}

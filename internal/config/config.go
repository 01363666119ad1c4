package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/username/ago/internal/elapsed"
	"github.com/username/ago/pkg/dateutil"
)

// DefaultStartDate is used when no start date is configured
const DefaultStartDate = "2025-02-19"

// Config represents application configuration
type Config struct {
	Dates  DatesConfig  `mapstructure:"dates"`
	Daemon DaemonConfig `mapstructure:"daemon"`
	Log    LogConfig    `mapstructure:"log"`
	Server ServerConfig `mapstructure:"server"`
}

// DatesConfig represents the tracked date range
type DatesConfig struct {
	Start         string `mapstructure:"start"`
	End           string `mapstructure:"end"`      // Optional end of the range, enables progress
	Timezone      string `mapstructure:"timezone"` // IANA name, empty for local time
	DisplayFormat string `mapstructure:"display_format"`
}

// DaemonConfig represents daemon mode configuration
type DaemonConfig struct {
	Schedule     string `mapstructure:"schedule"`    // Cron spec for the digest
	SystemTray   bool   `mapstructure:"system_tray"` // Show system tray icon (Windows only)
	LiveInterval string `mapstructure:"live_interval"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// ServerConfig represents HTTP API configuration
type ServerConfig struct {
	Listen             string   `mapstructure:"listen"`
	RateLimit          float64  `mapstructure:"rate_limit"` // Requests per second per client
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
	MetricsEnabled     bool     `mapstructure:"metrics_enabled"`
	ReadTimeout        string   `mapstructure:"read_timeout"`
	WriteTimeout       string   `mapstructure:"write_timeout"`
}

// Load loads configuration from file, .env and AGO_* environment variables
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.ago")
		v.AddConfigPath("/etc/ago")
	}

	// Read environment variables
	v.SetEnvPrefix("AGO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		// Without an explicit path a missing file leaves defaults and env in effect
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.ExpandEnvVars()

	// Validate config
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Every key gets a default so AutomaticEnv overrides reach Unmarshal
func setDefaults(v *viper.Viper) {
	v.SetDefault("dates.start", DefaultStartDate)
	v.SetDefault("dates.end", "")
	v.SetDefault("dates.timezone", "")
	v.SetDefault("dates.display_format", string(elapsed.FormatYears))

	v.SetDefault("daemon.schedule", "0 9 * * *")
	v.SetDefault("daemon.system_tray", false)
	v.SetDefault("daemon.live_interval", "1s")

	v.SetDefault("log.file", "")
	v.SetDefault("log.level", "info")

	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.rate_limit", 20)
	v.SetDefault("server.cors_allowed_origins", []string{"*"})
	v.SetDefault("server.metrics_enabled", true)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	loc, err := c.Dates.GetLocation()
	if err != nil {
		return err
	}

	start, err := c.Dates.StartDate(loc)
	if err != nil {
		return err
	}
	end, ok, err := c.Dates.EndDate(loc)
	if err != nil {
		return err
	}
	if ok && !start.Before(end) {
		return fmt.Errorf("dates.end must be after dates.start")
	}

	if _, err := elapsed.ParseDisplayFormat(c.Dates.DisplayFormat); err != nil {
		return fmt.Errorf("dates.display_format: %w", err)
	}

	if _, err := cron.ParseStandard(c.Daemon.Schedule); err != nil {
		return fmt.Errorf("daemon.schedule is not a valid cron spec: %w", err)
	}

	if c.Server.RateLimit <= 0 {
		return fmt.Errorf("server.rate_limit must be positive")
	}

	return nil
}

// GetLocation returns the configured location, time.Local when unset
func (c *DatesConfig) GetLocation() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("dates.timezone: %w", err)
	}
	return loc, nil
}

// StartDate parses the configured start date in loc
func (c *DatesConfig) StartDate(loc *time.Location) (time.Time, error) {
	value := c.Start
	if value == "" {
		value = DefaultStartDate
	}
	t, err := dateutil.ParseDate(value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("dates.start: %w", err)
	}
	return t, nil
}

// EndDate parses the configured end date in loc. ok is false when none is set.
func (c *DatesConfig) EndDate(loc *time.Location) (end time.Time, ok bool, err error) {
	if c.End == "" {
		return time.Time{}, false, nil
	}
	t, err := dateutil.ParseDate(c.End, loc)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("dates.end: %w", err)
	}
	return t, true, nil
}

// GetDisplayFormat returns the display format, years when invalid
func (c *DatesConfig) GetDisplayFormat() elapsed.DisplayFormat {
	format, err := elapsed.ParseDisplayFormat(c.DisplayFormat)
	if err != nil {
		return elapsed.FormatYears
	}
	return format
}

// GetLiveInterval returns the live session interval
func (c *DaemonConfig) GetLiveInterval() time.Duration {
	if c.LiveInterval == "" {
		return elapsed.DefaultInterval
	}
	duration, err := time.ParseDuration(c.LiveInterval)
	if err != nil || duration <= 0 {
		return elapsed.DefaultInterval
	}
	return duration
}

// GetReadTimeout returns the HTTP read timeout
func (c *ServerConfig) GetReadTimeout() time.Duration {
	return parseDurationOr(c.ReadTimeout, 30*time.Second)
}

// GetWriteTimeout returns the HTTP write timeout
func (c *ServerConfig) GetWriteTimeout() time.Duration {
	return parseDurationOr(c.WriteTimeout, 30*time.Second)
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return duration
}

// ExpandEnvVars expands environment variables in config strings
func (c *Config) ExpandEnvVars() {
	c.Log.File = os.ExpandEnv(c.Log.File)
	c.Server.Listen = os.ExpandEnv(c.Server.Listen)
}

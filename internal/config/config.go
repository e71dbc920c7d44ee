// Package config provides configuration management for connectr using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Login modes govern how an expired session is re-authenticated.
const (
	// LoginMultiIP re-authenticates the stored device. Suits a single device
	// whose network address changes.
	LoginMultiIP = "multi_ip"
	// LoginMultiDevice re-authenticates through the device-available call.
	// Suits several devices behind a static address.
	LoginMultiDevice = "multi_device"
	// LoginPassword re-authenticates with the stored username and password.
	LoginPassword = "password"
)

// Default configuration values.
const (
	defaultRegion          = "mena"
	defaultPlayerName      = "bein_android"
	defaultDeviceType      = "Android"
	defaultLanguage        = "eng"
	defaultLocale          = "en"
	defaultConfigTTL       = time.Hour
	defaultAppVersionTTL   = time.Hour
	defaultChannelsTTL     = 10 * time.Minute
	defaultHTTPTimeout     = 30 * time.Second
	defaultCircuitThresh   = 5
	defaultCircuitTimeout  = 30 * time.Second
	defaultMaxResponseSize = 32 * 1024 * 1024
	defaultRateLimit       = 5.0
	defaultRateBurst       = 5
	defaultServerPort      = 8089
	defaultServerTimeout   = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultEPGHours        = 24
	defaultKeepaliveCron   = "0 */30 * * * *"
)

// Config holds all configuration for the application.
type Config struct {
	Service   ServiceConfig   `mapstructure:"service"`
	Cache     CacheConfig     `mapstructure:"cache"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Server    ServerConfig    `mapstructure:"server"`
	Keepalive KeepaliveConfig `mapstructure:"keepalive"`
}

// ServiceConfig describes the streaming platform and how to talk to it.
type ServiceConfig struct {
	Region         string `mapstructure:"region"`          // key under alpha_networks_dash
	LoginType      string `mapstructure:"login_type"`      // multi_ip, multi_device, password
	SettingsURL    string `mapstructure:"settings_url"`    // absolute URL of the app settings document
	VersionURL     string `mapstructure:"version_url"`     // absolute URL of the app version text
	ChecksumSecret string `mapstructure:"checksum_secret"` // pre-shared HMAC key
	PlayerName     string `mapstructure:"player_name"`
	DeviceType     string `mapstructure:"device_type"`
	Language       string `mapstructure:"language"` // languageId sent to the platform
	Locale         string `mapstructure:"locale"`   // BCP 47 tag for user-facing messages
	UserAgent      string `mapstructure:"user_agent"`
}

// CacheConfig holds the time windows for cached remote documents.
type CacheConfig struct {
	ConfigTTL     time.Duration `mapstructure:"config_ttl"`
	AppVersionTTL time.Duration `mapstructure:"app_version_ttl"`
	ChannelsTTL   time.Duration `mapstructure:"channels_ttl"`
}

// HTTPConfig holds transport configuration for platform requests.
type HTTPConfig struct {
	Timeout          time.Duration `mapstructure:"timeout"`
	CircuitThreshold int           `mapstructure:"circuit_threshold"`
	CircuitTimeout   time.Duration `mapstructure:"circuit_timeout"`
	MaxResponseSize  int64         `mapstructure:"max_response_size"`
	RateLimit        float64       `mapstructure:"rate_limit"` // requests per second, 0 disables
	RateBurst        int           `mapstructure:"rate_burst"`
}

// DatabaseConfig holds the credential store connection configuration.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN      string `mapstructure:"dsn"`
	LogLevel string `mapstructure:"log_level"` // silent, error, warn, info
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// ServerConfig holds configuration for the serve command.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	PublicURL       string        `mapstructure:"public_url"` // base for playlist links; empty = derived from request
	EPGHours        int           `mapstructure:"epg_hours"`
	CORSOrigins     []string      `mapstructure:"cors_origins"` // empty = no cross-origin reads
}

// KeepaliveConfig holds the token keepalive schedule.
type KeepaliveConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"` // 6-field cron expression
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with CONNECTR_ and use underscores for nesting.
// Example: CONNECTR_SERVICE_LOGIN_TYPE=password.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/connectr")
		v.AddConfigPath("$HOME/.connectr")
	}

	v.SetEnvPrefix("CONNECTR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	return FromViper(v)
}

// FromViper unmarshals and validates configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("service.region", defaultRegion)
	v.SetDefault("service.login_type", LoginMultiIP)
	v.SetDefault("service.settings_url", "")
	v.SetDefault("service.version_url", "")
	v.SetDefault("service.checksum_secret", "")
	v.SetDefault("service.player_name", defaultPlayerName)
	v.SetDefault("service.device_type", defaultDeviceType)
	v.SetDefault("service.language", defaultLanguage)
	v.SetDefault("service.locale", defaultLocale)
	v.SetDefault("service.user_agent", "")

	v.SetDefault("cache.config_ttl", defaultConfigTTL)
	v.SetDefault("cache.app_version_ttl", defaultAppVersionTTL)
	v.SetDefault("cache.channels_ttl", defaultChannelsTTL)

	v.SetDefault("http.timeout", defaultHTTPTimeout)
	v.SetDefault("http.circuit_threshold", defaultCircuitThresh)
	v.SetDefault("http.circuit_timeout", defaultCircuitTimeout)
	v.SetDefault("http.max_response_size", defaultMaxResponseSize)
	v.SetDefault("http.rate_limit", defaultRateLimit)
	v.SetDefault("http.rate_burst", defaultRateBurst)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "connectr.db")
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.public_url", "")
	v.SetDefault("server.epg_hours", defaultEPGHours)
	v.SetDefault("server.cors_origins", []string{})

	v.SetDefault("keepalive.enabled", true)
	v.SetDefault("keepalive.schedule", defaultKeepaliveCron)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if !ValidLoginType(c.Service.LoginType) {
		return fmt.Errorf("service.login_type must be one of: %s, %s, %s",
			LoginMultiIP, LoginMultiDevice, LoginPassword)
	}
	if c.Service.Region == "" {
		return fmt.Errorf("service.region is required")
	}

	if c.Cache.ConfigTTL <= 0 || c.Cache.AppVersionTTL <= 0 || c.Cache.ChannelsTTL <= 0 {
		return fmt.Errorf("cache ttl values must be positive")
	}

	if c.HTTP.RateLimit < 0 {
		return fmt.Errorf("http.rate_limit must not be negative")
	}
	if c.HTTP.RateLimit > 0 && c.HTTP.RateBurst < 1 {
		return fmt.Errorf("http.rate_burst must be at least 1 when rate limiting")
	}

	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	return nil
}

// ValidateRemote checks the settings needed to talk to the platform. They have
// no usable defaults, so commands that only inspect config skip this check.
func (c *ServiceConfig) ValidateRemote() error {
	switch {
	case c.SettingsURL == "":
		return fmt.Errorf("service.settings_url is required")
	case c.VersionURL == "":
		return fmt.Errorf("service.version_url is required")
	case c.ChecksumSecret == "":
		return fmt.Errorf("service.checksum_secret is required")
	}
	return nil
}

// ValidLoginType reports whether s names a supported login mode.
func ValidLoginType(s string) bool {
	switch s {
	case LoginMultiIP, LoginMultiDevice, LoginPassword:
		return true
	default:
		return false
	}
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

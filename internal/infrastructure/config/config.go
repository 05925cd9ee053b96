package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// Auth modes.
const (
	AuthRemote = "remote"
	AuthJWT    = "jwt"
	AuthDev    = "dev"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Storage   StorageConfig   `yaml:"storage" toml:"storage"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	Logging   LogConfig       `yaml:"logging" toml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string   `envconfig:"PORT" yaml:"port" toml:"port"`
	Host            string   `envconfig:"HOST" yaml:"host" toml:"host"`
	MaxConns        int      `envconfig:"SERVER_MAX_CONNS" yaml:"max_conns" toml:"max_conns"`
	ShutdownTimeout Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" yaml:"shutdown_timeout" toml:"shutdown_timeout"`
	Gzip            bool     `envconfig:"SERVER_GZIP" yaml:"gzip" toml:"gzip"`
}

// StorageConfig locates the per-user tree and bounds uploads.
type StorageConfig struct {
	Root            string `envconfig:"STORAGE_ROOT" yaml:"root" toml:"root"`
	MarkerName      string `envconfig:"STORAGE_MARKER_NAME" yaml:"marker_name" toml:"marker_name"`
	WalkConcurrency int    `envconfig:"STORAGE_WALK_CONCURRENCY" yaml:"walk_concurrency" toml:"walk_concurrency"`
	MaxUploads      int    `envconfig:"STORAGE_MAX_UPLOADS" yaml:"max_uploads" toml:"max_uploads"`
	MaxUploadBytes  int64  `envconfig:"STORAGE_MAX_UPLOAD_BYTES" yaml:"max_upload_bytes" toml:"max_upload_bytes"`
}

// AuthConfig selects and configures the credential check.
type AuthConfig struct {
	Mode             string   `envconfig:"AUTH_MODE" yaml:"mode" toml:"mode"`
	URL              string   `envconfig:"AUTH_URL" yaml:"url" toml:"url"`
	Timeout          Duration `envconfig:"AUTH_TIMEOUT" yaml:"timeout" toml:"timeout"`
	CacheTTL         Duration `envconfig:"AUTH_CACHE_TTL" yaml:"cache_ttl" toml:"cache_ttl"`
	CacheSize        int      `envconfig:"AUTH_CACHE_SIZE" yaml:"cache_size" toml:"cache_size"`
	IdentityProvider string   `envconfig:"AUTH_IDENTITY_PROVIDER" yaml:"identity_provider" toml:"identity_provider"`
	JWTSecret        string   `envconfig:"AUTH_JWT_SECRET" yaml:"jwt_secret" toml:"jwt_secret"`
	JWTIssuer        string   `envconfig:"AUTH_JWT_ISSUER" yaml:"jwt_issuer" toml:"jwt_issuer"`
	DevTokenFile     string   `envconfig:"AUTH_DEV_TOKEN_FILE" yaml:"dev_token_file" toml:"dev_token_file"`
	DevUser          string   `envconfig:"AUTH_DEV_USER" yaml:"dev_user" toml:"dev_user"`
	RequestsPerSec   float64  `envconfig:"AUTH_RPS" yaml:"requests_per_second" toml:"requests_per_second"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" yaml:"level" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" yaml:"development" toml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" yaml:"requests_per_second" toml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" yaml:"burst" toml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" yaml:"enabled" toml:"enabled"`
	// GlobalRPS caps the whole process on top of the per-client limit.
	// Zero disables it; GlobalBurst defaults to GlobalRPS.
	GlobalRPS   int `envconfig:"RATE_LIMIT_GLOBAL_RPS" yaml:"global_requests_per_second" toml:"global_requests_per_second"`
	GlobalBurst int `envconfig:"RATE_LIMIT_GLOBAL_BURST" yaml:"global_burst" toml:"global_burst"`
}

// Duration is a time.Duration that decodes from "30s" style text in the
// environment, YAML and TOML alike.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Load builds the configuration: defaults, then the file named by
// CONFIG_FILE if any, then environment variables.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile is Load with an explicit config file. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read layers the file and the environment over the defaults without
// validating, so command line flags can still fill in required settings.
func Read(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads configuration or falls back to defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8000",
			Host:            "0.0.0.0",
			MaxConns:        1024,
			ShutdownTimeout: Duration{10 * time.Second},
			Gzip:            true,
		},
		Storage: StorageConfig{
			Root:            "./data",
			MarkerName:      ".globus_id",
			WalkConcurrency: 16,
			MaxUploads:      12,
			MaxUploadBytes:  0,
		},
		Auth: AuthConfig{
			Mode:             AuthRemote,
			Timeout:          Duration{10 * time.Second},
			CacheTTL:         Duration{time.Minute},
			CacheSize:        1024,
			IdentityProvider: "Globus",
			DevTokenFile:     "dev-user-token",
		},
		Logging: LogConfig{
			Level: "info",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

// Validate reports every inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server port is required"))
	}
	if c.Storage.Root == "" {
		errs = append(errs, errors.New("storage root is required"))
	}
	if c.Storage.WalkConcurrency < 1 {
		errs = append(errs, fmt.Errorf("walk concurrency must be positive, got %d", c.Storage.WalkConcurrency))
	}
	if c.Storage.MaxUploads < 1 {
		errs = append(errs, fmt.Errorf("max uploads must be positive, got %d", c.Storage.MaxUploads))
	}
	if c.Storage.MaxUploadBytes < 0 {
		errs = append(errs, errors.New("max upload bytes cannot be negative"))
	}
	if c.Storage.MarkerName == "" || strings.ContainsAny(c.Storage.MarkerName, `/\`) {
		errs = append(errs, fmt.Errorf("invalid marker name %q", c.Storage.MarkerName))
	}

	switch c.Auth.Mode {
	case AuthRemote:
		if c.Auth.URL == "" {
			errs = append(errs, errors.New("AUTH_URL is required in remote mode"))
		}
	case AuthJWT:
		if c.Auth.JWTSecret == "" {
			errs = append(errs, errors.New("AUTH_JWT_SECRET is required in jwt mode"))
		}
	case AuthDev:
		if c.Auth.DevTokenFile == "" || c.Auth.DevUser == "" {
			errs = append(errs, errors.New("AUTH_DEV_TOKEN_FILE and AUTH_DEV_USER are required in dev mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown auth mode %q", c.Auth.Mode))
	}

	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond < 1 || c.RateLimit.Burst < 1) {
		errs = append(errs, errors.New("rate limit rps and burst must be positive when enabled"))
	}
	if c.RateLimit.GlobalRPS < 0 || c.RateLimit.GlobalBurst < 0 {
		errs = append(errs, errors.New("global rate limit rps and burst must not be negative"))
	}
	return errors.Join(errs...)
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("unsupported config file type %q", ext)
	}
	if err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

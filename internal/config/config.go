// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/listenupapp/catalog-server/internal/auth"
)

// Config holds the application configuration.
type Config struct {
	App      AppConfig
	Logger   LoggerConfig
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	GraphQL  GraphQLConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string `env:"ENV" envDefault:"development"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
	// Format is "pretty" or "json". Empty picks by environment.
	Format string `env:"LOG_FORMAT"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host              string        `env:"HOST"`
	Port              int           `env:"PORT" envDefault:"4000"`
	ReadHeaderTimeout time.Duration `env:"SERVER_READ_HEADER_TIMEOUT" envDefault:"10s"`
	IdleTimeout       time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout   time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	CORSOrigins       []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig selects and configures the document store.
type DatabaseConfig struct {
	// URL is a Badger directory or a mongodb:// / mongodb+srv:// URI.
	URL string `env:"DATABASE_URL"`
	// Name is the MongoDB database; ignored by Badger.
	Name string `env:"DATABASE_NAME" envDefault:"library"`
}

// IsMongo reports whether URL points at a MongoDB deployment.
func (d DatabaseConfig) IsMongo() bool {
	return strings.HasPrefix(d.URL, "mongodb://") || strings.HasPrefix(d.URL, "mongodb+srv://")
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	TokenSecret string        `env:"TOKEN_SECRET"`
	TokenFormat string        `env:"TOKEN_FORMAT" envDefault:"jwt"`
	TokenTTL    time.Duration `env:"TOKEN_TTL" envDefault:"1h"`
	Issuer      string        `env:"TOKEN_ISSUER" envDefault:"catalog-server"`
	Audience    string        `env:"TOKEN_AUDIENCE"`
	// Login attempts per username: sustained rate per second and burst.
	LoginRate  float64 `env:"LOGIN_RATE" envDefault:"0.2"`
	LoginBurst int     `env:"LOGIN_BURST" envDefault:"5"`
}

// GraphQLConfig holds query execution limits.
type GraphQLConfig struct {
	MaxDepth int `env:"GRAPHQL_MAX_DEPTH" envDefault:"10"`
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load is LoadConfig with explicit arguments.
func Load(args []string) (*Config, error) {
	// First pass only to learn where the .env file lives.
	var scratch Config
	envFile := ".env"
	if err := newFlagSet(&scratch, &envFile).Parse(args); err != nil {
		return nil, err
	}

	// godotenv never overrides variables already present in the environment.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	// Second pass binds flags onto the environment-derived values, so only
	// flags given explicitly win.
	if err := newFlagSet(&cfg, &envFile).Parse(args); err != nil {
		return nil, err
	}

	if !cfg.Database.IsMongo() && cfg.Database.URL != "" {
		expanded, err := expandPath(cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid database path: %w", err)
		}
		cfg.Database.URL = expanded
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func newFlagSet(cfg *Config, envFile *string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("catalog-server", pflag.ContinueOnError)

	fs.StringVar(envFile, "env-file", *envFile, "Path to .env file")
	fs.StringVar(&cfg.App.Environment, "env", cfg.App.Environment, "Environment (development, staging, production)")
	fs.StringVar(&cfg.Logger.Level, "log-level", cfg.Logger.Level, "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.Logger.Format, "log-format", cfg.Logger.Format, "Log format (pretty, json)")

	fs.StringVar(&cfg.Server.Host, "host", cfg.Server.Host, "Listen host")
	fs.IntVarP(&cfg.Server.Port, "port", "p", cfg.Server.Port, "Listen port (default: 4000)")
	fs.DurationVar(&cfg.Server.ShutdownTimeout, "shutdown-timeout", cfg.Server.ShutdownTimeout, "Graceful shutdown timeout")
	fs.StringSliceVar(&cfg.Server.CORSOrigins, "cors-origins", cfg.Server.CORSOrigins, "Allowed CORS origins")

	fs.StringVar(&cfg.Database.URL, "database-url", cfg.Database.URL, "Badger directory or MongoDB URI")
	fs.StringVar(&cfg.Database.Name, "database-name", cfg.Database.Name, "MongoDB database name")

	fs.StringVar(&cfg.Auth.TokenFormat, "token-format", cfg.Auth.TokenFormat, "Token format (jwt, paseto)")
	fs.DurationVar(&cfg.Auth.TokenTTL, "token-ttl", cfg.Auth.TokenTTL, "Access token lifetime")
	fs.Float64Var(&cfg.Auth.LoginRate, "login-rate", cfg.Auth.LoginRate, "Login attempts per second per username")
	fs.IntVar(&cfg.Auth.LoginBurst, "login-burst", cfg.Auth.LoginBurst, "Login attempt burst per username")

	fs.IntVar(&cfg.GraphQL.MaxDepth, "graphql-max-depth", cfg.GraphQL.MaxDepth, "Maximum GraphQL query depth")

	return fs
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := []string{"development", "staging", "production"}
	if !slices.Contains(validEnvs, c.App.Environment) {
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, strings.ToLower(c.Logger.Level)) {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Logger.Format != "" && c.Logger.Format != "pretty" && c.Logger.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be pretty or json)", c.Logger.Format)
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	if c.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}

	if c.Auth.TokenSecret == "" {
		return errors.New("TOKEN_SECRET is required")
	}
	if len(c.Auth.TokenSecret) < auth.MinSecretLength {
		return fmt.Errorf("TOKEN_SECRET must be at least %d characters", auth.MinSecretLength)
	}

	switch strings.ToLower(c.Auth.TokenFormat) {
	case auth.FormatJWT, auth.FormatPASETO:
	default:
		return fmt.Errorf("invalid token format: %s (must be jwt or paseto)", c.Auth.TokenFormat)
	}

	if c.Auth.TokenTTL <= 0 {
		return errors.New("token TTL must be positive")
	}

	if c.Auth.LoginRate <= 0 || c.Auth.LoginBurst <= 0 {
		return errors.New("login rate and burst must be positive")
	}

	if c.GraphQL.MaxDepth < 0 {
		return errors.New("graphql max depth cannot be negative")
	}

	return nil
}

// IsDevelopment reports whether the app runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// expandPath expands ~ and makes the path absolute.
func expandPath(path string) (string, error) {
	// Expand tilde.
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	// Make absolute if needed.
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// Package config loads server configuration from the environment, an
// optional .env file, and an optional local YAML override file that is
// applied last (the local-settings convention: debug mode, CORS policy and
// allowed hosts can be overridden per deployment without touching the
// environment).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the full server configuration.
type Config struct {
	Host string
	Port string

	// ServerName is sent as the Server response header.
	ServerName string

	DB DBConfig

	JWTSecret  string
	SessionTTL time.Duration

	// Empty RedisAddr keeps notification fan-out in-process.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Debug             bool
	AllowedHosts      []string
	CORSOrigins       []string
	TrustProxyHeaders bool

	EnableObservability bool
	ServiceName         string
}

// DBConfig holds database connection settings. Driver is "postgres" or
// "sqlite".
type DBConfig struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string

	// Path is the sqlite database file.
	Path string
}

// DSN builds the postgres connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// localOverride mirrors the original deployment's config_override module: a
// locally supplied file applied after everything else.
type localOverride struct {
	Debug        *bool    `yaml:"debug"`
	AllowedHosts []string `yaml:"allowedHosts"`
	CORSOrigins  []string `yaml:"corsOrigins"`
}

// Load reads configuration from the environment. A .env file in the working
// directory is honored if present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	cfg := &Config{
		Host:       GetEnvOrDefault("HOST", "0.0.0.0"),
		Port:       GetEnvOrDefault("PORT", "80"),
		ServerName: GetEnvOrDefault("SERVER_NAME", "nova210se"),
		DB: DBConfig{
			Driver:   GetEnvOrDefault("DB_DRIVER", "sqlite"),
			Host:     GetEnvOrDefault("DB_HOST", "localhost"),
			Port:     GetEnvOrDefault("DB_PORT", "5432"),
			User:     GetEnvOrDefault("DB_USER", "nova"),
			Password: GetEnvOrDefault("DB_PASSWORD", ""),
			Name:     GetEnvOrDefault("DB_NAME", "nova210se"),
			SSLMode:  GetEnvOrDefault("DB_SSLMODE", "disable"),
			Path:     GetEnvOrDefault("DB_PATH", "nova210se.db"),
		},
		JWTSecret:           os.Getenv("JWT_SECRET"),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		RedisDB:             getEnvIntOrDefault("REDIS_DB", 0),
		Debug:               getEnvBoolOrDefault("DEBUG", false),
		TrustProxyHeaders:   getEnvBoolOrDefault("TRUST_PROXY_HEADERS", false),
		EnableObservability: getEnvBoolOrDefault("ENABLE_OBSERVABILITY", true),
		ServiceName:         GetEnvOrDefault("SERVICE_NAME", "nova-backend"),
	}

	ttlHours := getEnvIntOrDefault("SESSION_TTL_HOURS", 168)
	cfg.SessionTTL = time.Duration(ttlHours) * time.Hour

	cfg.AllowedHosts = splitList(os.Getenv("ALLOWED_HOSTS"))
	cfg.CORSOrigins = splitList(GetEnvOrDefault("CORS_ALLOWED_ORIGINS", "*"))

	if err := cfg.applyLocalOverride(GetEnvOrDefault("LOCAL_SETTINGS", "config/local.yaml")); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyLocalOverride merges the local settings file over the loaded
// configuration. A missing file is not an error.
func (c *Config) applyLocalOverride(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read local settings %s: %w", path, err)
	}

	var override localOverride
	if err := yaml.Unmarshal(data, &override); err != nil {
		return fmt.Errorf("failed to parse local settings %s: %w", path, err)
	}

	if override.Debug != nil {
		c.Debug = *override.Debug
	}
	if override.AllowedHosts != nil {
		c.AllowedHosts = override.AllowedHosts
	}
	if override.CORSOrigins != nil {
		c.CORSOrigins = override.CORSOrigins
	}

	slog.Info("Applied local settings override", "path", path)
	return nil
}

func (c *Config) validate() error {
	if c.DB.Driver != "postgres" && c.DB.Driver != "sqlite" {
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver)
	}
	if c.JWTSecret == "" {
		if !c.Debug {
			return fmt.Errorf("JWT_SECRET must be set outside debug mode")
		}
		// Deterministic development secret, never used in production
		c.JWTSecret = "nova210se-debug-secret"
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

// GetEnvOrDefault returns the environment variable value or a default.
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		slog.Warn("Invalid integer environment variable, using default", "key", key, "default", defaultValue)
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
		slog.Warn("Invalid boolean environment variable, using default", "key", key, "default", defaultValue)
	}
	return defaultValue
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"go-leaf-relay/pkg/validation"

	"gopkg.in/yaml.v3"
)

const (
	DefaultAnthropicBaseURL = "https://api.anthropic.com"
	configFileEnv           = "RELAY_CONFIG_FILE"
)

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	UpstreamTimeout    time.Duration
	MaxRequestBodySize int64

	AnthropicAPIKey  string
	AnthropicBaseURL string

	// VerboseErrors exposes internal diagnostics in the "details" field of error responses.
	VerboseErrors  bool
	RequireAPIKey  bool
	AllowedOrigins []string
}

// fileConfig mirrors the optional YAML file. The API key is read from the environment only.
type fileConfig struct {
	Host               string   `yaml:"host"`
	Port               string   `yaml:"port"`
	RequestTimeout     string   `yaml:"request_timeout"`
	UpstreamTimeout    string   `yaml:"upstream_timeout"`
	MaxRequestBodySize int64    `yaml:"max_request_body_size"`
	AnthropicBaseURL   string   `yaml:"anthropic_base_url"`
	VerboseErrors      bool     `yaml:"verbose_errors"`
	RequireAPIKey      bool     `yaml:"require_api_key"`
	AllowedOrigins     []string `yaml:"allowed_origins"`
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// HasAPIKey reports whether an upstream credential is configured.
func (c *Config) HasAPIKey() bool {
	return strings.TrimSpace(c.AnthropicAPIKey) != ""
}

func LoadFromEnv() (*Config, error) {
	file, err := loadFile(os.Getenv(configFileEnv))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Host:               getEnvOrDefault("HOST", orDefault(file.Host, "0.0.0.0")),
		Port:               getEnvOrDefault("PORT", orDefault(file.Port, "5000")),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", fileDuration(file.RequestTimeout, 90*time.Second)),
		UpstreamTimeout:    parseDurationOrDefault("UPSTREAM_TIMEOUT", fileDuration(file.UpstreamTimeout, 60*time.Second)),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", orDefaultInt(file.MaxRequestBodySize, 20*1024*1024)), // 20MB
		AnthropicAPIKey:    strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")),
		AnthropicBaseURL:   getEnvOrDefault("ANTHROPIC_BASE_URL", orDefault(file.AnthropicBaseURL, DefaultAnthropicBaseURL)),
		VerboseErrors:      parseBoolOrDefault("VERBOSE_ERRORS", file.VerboseErrors),
		RequireAPIKey:      parseBoolOrDefault("REQUIRE_API_KEY", file.RequireAPIKey),
		AllowedOrigins:     parseListOrDefault("ALLOWED_ORIGINS", file.AllowedOrigins, []string{"*"}),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the server cannot start with.
func (c *Config) Validate() error {
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.RequestTimeout <= 0 || c.UpstreamTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, upstream=%s)", c.RequestTimeout, c.UpstreamTimeout)
	}
	if err := validation.NewURLValidator().ValidateURL(c.AnthropicBaseURL); err != nil {
		return fmt.Errorf("invalid ANTHROPIC_BASE_URL: %w", err)
	}
	if err := validation.NewOriginValidator().ValidateOrigins(c.AllowedOrigins); err != nil {
		return fmt.Errorf("invalid ALLOWED_ORIGINS: %w", err)
	}
	if c.RequireAPIKey && !c.HasAPIKey() {
		return fmt.Errorf("ANTHROPIC_API_KEY is required but not set")
	}
	return nil
}

func loadFile(path string) (fileConfig, error) {
	var fc fileConfig
	if strings.TrimSpace(path) == "" {
		return fc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return fc, nil
}

func orDefault(value, defaultValue string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return defaultValue
}

func orDefaultInt(value, defaultValue int64) int64 {
	if value > 0 {
		return value
	}
	return defaultValue
}

func fileDuration(value string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && d > 0 {
		return d
	}
	return defaultValue
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseListOrDefault(key string, fileValue, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	if len(fileValue) > 0 {
		return fileValue
	}
	return defaultValue
}

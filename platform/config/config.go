// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
	GetDatabaseMaxConns() int32
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
	GetRateLimitPerMinute() int
}

// SearchConfig provides tuning for the dealer search engine.
type SearchConfig interface {
	GetSearchFuzzyThreshold() float64
	GetSearchCandidateCap() int
	GetSearchExactFirst() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                  string
	HTTPAddr             string
	DatabaseURL          string
	DatabaseMaxConns     int32
	JWTAccessSecret      string
	CORSAllowAll         bool
	CORSOrigins          []string
	CORSAllowCreds       bool
	RateLimitPerMinute   int
	SearchFuzzyThreshold float64
	SearchCandidateCap   int
	SearchExactFirst     bool
}

// searchFile is the optional YAML override for search tuning.
type searchFile struct {
	Search struct {
		FuzzyThreshold *float64 `yaml:"fuzzy_threshold"`
		CandidateCap   *int     `yaml:"candidate_cap"`
		ExactFirst     *bool    `yaml:"exact_first"`
	} `yaml:"search"`
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string     { return c.DatabaseURL }
func (c *Config) GetDatabaseMaxConns() int32 { return c.DatabaseMaxConns }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string        { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool      { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string   { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool    { return c.CORSAllowCreds }
func (c *Config) GetRateLimitPerMinute() int { return c.RateLimitPerMinute }

// SearchConfig implementation
func (c *Config) GetSearchFuzzyThreshold() float64 { return c.SearchFuzzyThreshold }
func (c *Config) GetSearchCandidateCap() int       { return c.SearchCandidateCap }
func (c *Config) GetSearchExactFirst() bool        { return c.SearchExactFirst }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                  getEnv("APP_ENV", "development"),
		HTTPAddr:             getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		DatabaseMaxConns:     int32(mustInt(getEnv("DATABASE_MAX_CONNS", "25"))),
		JWTAccessSecret:      getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:         corsAllowAll,
		CORSOrigins:          corsOrigins,
		CORSAllowCreds:       strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		RateLimitPerMinute:   mustInt(getEnv("RATE_LIMIT_PER_MINUTE", "120")),
		SearchFuzzyThreshold: mustFloat(getEnv("SEARCH_FUZZY_THRESHOLD", "0.4")),
		SearchCandidateCap:   mustInt(getEnv("SEARCH_CANDIDATE_CAP", "1000")),
		SearchExactFirst:     !strings.EqualFold(getEnv("SEARCH_EXACT_FIRST", "true"), "false"),
	}

	if path := getEnv("SEARCH_CONFIG_FILE", ""); path != "" {
		if err := cfg.applySearchFile(path); err != nil {
			return nil, err
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if !cfg.CORSAllowAll && len(cfg.CORSOrigins) == 0 {
		return nil, fmt.Errorf("CORS_ORIGINS must list at least one origin")
	}
	if cfg.DatabaseMaxConns < 1 {
		return nil, fmt.Errorf("DATABASE_MAX_CONNS must be at least 1")
	}
	if cfg.SearchFuzzyThreshold <= 0 || cfg.SearchFuzzyThreshold > 1 {
		return nil, fmt.Errorf("SEARCH_FUZZY_THRESHOLD must be in (0, 1]")
	}
	if cfg.SearchCandidateCap < 1 {
		return nil, fmt.Errorf("SEARCH_CANDIDATE_CAP must be at least 1")
	}

	return cfg, nil
}

func (c *Config) applySearchFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read SEARCH_CONFIG_FILE: %w", err)
	}

	var file searchFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse SEARCH_CONFIG_FILE: %w", err)
	}

	if file.Search.FuzzyThreshold != nil {
		c.SearchFuzzyThreshold = *file.Search.FuzzyThreshold
	}
	if file.Search.CandidateCap != nil {
		c.SearchCandidateCap = *file.Search.CandidateCap
	}
	if file.Search.ExactFirst != nil {
		c.SearchExactFirst = *file.Search.ExactFirst
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}

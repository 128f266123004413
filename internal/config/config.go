package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// requiredKeys are the environment variables the app cannot serve without.
// Missing keys do not abort startup; affected endpoints report the failure
// in their response body and /api/env-test lists what is absent.
var requiredKeys = []string{
	"DATABASE_URL",
	"SESSION_SECRET",
	"BASE_URL",
	"GOOGLE_CLIENT_ID",
	"GOOGLE_CLIENT_SECRET",
}

type Config struct {
	// Server
	Port    int
	Host    string
	BaseURL string

	// Application database
	DatabaseURL string
	// Elevated connection for catalog introspection and policy management.
	// Falls back to DatabaseURL when empty.
	AdminDatabaseURL string

	// Session
	SessionSecret string
	SessionMaxAge int // seconds

	// OAuth
	GoogleClientID     string
	GoogleClientSecret string

	// Behaviour switches
	AutoMigrate    bool
	TrustProxy     bool
	AllowedOrigins []string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnvInt("PORT", 3000),
		Host:               getEnv("HOST", "0.0.0.0"),
		BaseURL:            os.Getenv("BASE_URL"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		AdminDatabaseURL:   getEnv("ADMIN_DATABASE_URL", ""),
		SessionSecret:      os.Getenv("SESSION_SECRET"),
		SessionMaxAge:      getEnvInt("SESSION_MAX_AGE_SECONDS", 30*24*3600),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		AutoMigrate:        getEnvBool("AUTO_MIGRATE", true),
		TrustProxy:         getEnvBool("TRUST_PROXY", false),
		AllowedOrigins:     splitList(os.Getenv("ALLOWED_ORIGINS")),
	}

	if cfg.SessionSecret != "" && len(cfg.SessionSecret) < 32 {
		return nil, fmt.Errorf("SESSION_SECRET must be at least 32 characters")
	}

	return cfg, nil
}

// MissingRequired reports which required settings are absent, in declaration
// order. An empty slice means the app is fully configured.
func (c *Config) MissingRequired() []string {
	values := map[string]string{
		"DATABASE_URL":         c.DatabaseURL,
		"SESSION_SECRET":       c.SessionSecret,
		"BASE_URL":             c.BaseURL,
		"GOOGLE_CLIENT_ID":     c.GoogleClientID,
		"GOOGLE_CLIENT_SECRET": c.GoogleClientSecret,
	}

	var missing []string
	for _, key := range requiredKeys {
		if values[key] == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

// CatalogURL returns the connection string to use for catalog access.
func (c *Config) CatalogURL() string {
	if c.AdminDatabaseURL != "" {
		return c.AdminDatabaseURL
	}
	return c.DatabaseURL
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v == "true" || v == "1"
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

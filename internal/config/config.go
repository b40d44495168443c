package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates runtime configuration for the Authgate service.
type Config struct {
	Environment    string
	HTTPPort       int
	DatabaseURL    string
	DataStore      string
	LogLevel       string
	AllowedOrigins []string
	AppName        string

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	GoogleClientID       string
	GoogleClientSecret   string
	GoogleRedirectURL    string
	GoogleAllowedDomains []string
	GoogleAllowedEmails  []string

	SMTPAddr     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	CodeTTL         time.Duration
	CleanupInterval time.Duration
}

// Load reads configuration from environment variables with sensible defaults
// for local development.
func Load() (Config, error) {
	databaseURL, err := getEnvOrFile("DATABASE_URL", "/run/secrets/authgate_database_url")
	if err != nil {
		return Config{}, err
	}

	jwtSecret, err := getEnvOrFile("JWT_SECRET", "/run/secrets/authgate_jwt_secret")
	if err != nil {
		return Config{}, err
	}

	googleSecret, err := getEnvOrFile("AUTH_GOOGLE_CLIENT_SECRET", "/run/secrets/authgate_google_client_secret")
	if err != nil {
		return Config{}, err
	}

	smtpPassword, err := getEnvOrFile("SMTP_PASSWORD", "/run/secrets/authgate_smtp_password")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Environment:    getEnv("APP_ENV", "development"),
		DatabaseURL:    databaseURL,
		DataStore:      strings.ToLower(getEnv("DATA_STORE", "memory")),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "info")),
		AllowedOrigins: parseCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:4200,http://localhost:8080")),
		AppName:        getEnv("APP_NAME", "Authgate"),

		JWTSecret: strings.TrimSpace(jwtSecret),

		GoogleClientID:       strings.TrimSpace(getEnv("AUTH_GOOGLE_CLIENT_ID", "")),
		GoogleClientSecret:   strings.TrimSpace(googleSecret),
		GoogleRedirectURL:    getEnv("AUTH_GOOGLE_REDIRECT_URL", "http://localhost:8080/api/auth/google/callback"),
		GoogleAllowedDomains: parseCSV(getEnv("AUTH_GOOGLE_ALLOWED_DOMAINS", "")),
		GoogleAllowedEmails:  parseCSV(getEnv("AUTH_GOOGLE_ALLOWED_EMAILS", "")),

		SMTPAddr:     getEnv("SMTP_ADDR", ""),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: strings.TrimSpace(smtpPassword),
		SMTPFrom:     getEnv("SMTP_FROM", "no-reply@localhost"),
	}

	portValue := getEnv("PORT", getEnv("HTTP_PORT", "8080"))
	port, err := strconv.Atoi(portValue)
	if err != nil {
		return Config{}, fmt.Errorf("invalid port %q: %w", portValue, err)
	}
	cfg.HTTPPort = port

	if cfg.AccessTokenTTL, err = getDuration("ACCESS_TOKEN_TTL", 15*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTokenTTL, err = getDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.CodeTTL, err = getDuration("VERIFICATION_CODE_TTL", 15*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.CleanupInterval, err = getDuration("CLEANUP_INTERVAL", time.Hour); err != nil {
		return Config{}, err
	}

	if cfg.DataStore == "postgres" && cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATA_STORE is postgres but DATABASE_URL is not set")
	}

	if !cfg.IsDevelopment() {
		if cfg.JWTSecret == "" {
			return Config{}, fmt.Errorf("JWT_SECRET is required outside development")
		}
		if cfg.GoogleClientID == "" {
			return Config{}, fmt.Errorf("AUTH_GOOGLE_CLIENT_ID is required outside development")
		}
		if cfg.GoogleClientSecret == "" {
			return Config{}, fmt.Errorf("AUTH_GOOGLE_CLIENT_SECRET is required outside development")
		}
	}

	return cfg, nil
}

// HTTPAddress returns the address the HTTP server should bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// UseInMemoryStore returns true if the in-memory repository should be used.
func (c Config) UseInMemoryStore() bool {
	return c.DataStore == "memory"
}

// IsDevelopment reports whether the process runs in the development environment.
func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

// UseSMTP reports whether a real SMTP endpoint is configured.
func (c Config) UseSMTP() bool {
	return c.SMTPAddr != ""
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %s=%q: %w", key, value, err)
	}
	return d, nil
}

func parseCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvOrFile(key, defaultPath string) (string, error) {
	if value := os.Getenv(key); value != "" {
		return value, nil
	}

	fileKey := key + "_FILE"
	if path := os.Getenv(fileKey); path != "" {
		return readSecret(path, fileKey)
	}

	if defaultPath != "" {
		return readSecret(defaultPath, key)
	}

	return "", nil
}

func readSecret(path, name string) (string, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("config: reading %s (%s): %w", name, path, err)
	}

	value := strings.TrimSpace(string(contents))
	if value == "" {
		return "", fmt.Errorf("config: %s (%s) is empty", name, path)
	}
	return value, nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port       string
	DBAdapter  string
	SQLiteFile string
	LogLevel   string
	// Token signing settings
	JwtSecret       string
	JwtExpirationMs int64
	// Auth endpoint rate limiting
	AuthRateLimitPerMinute int
	// PostgreSQL connection settings
	PostgresDSN      string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

// defaultJwtSecret is the 512-bit development default for HS512; production
// requires an explicit secret.
const defaultJwtSecret = "myVerySecretKeyThatShouldBeAtLeast512BitsLongForHS512AlgorithmSoItNeedsToBeReallyReallyLongToMeetTheRequirements"

// BuildPostgresDSN constructs a PostgreSQL DSN from individual components or returns the provided DSN
func (c *Config) BuildPostgresDSN() (string, error) {
	// If DSN is provided directly, use it
	if c.PostgresDSN != "" {
		return c.PostgresDSN, nil
	}

	// Build DSN from individual components
	if c.PostgresHost == "" {
		return "", errors.New("POSTGRES_HOST or POSTGRES_DSN must be set")
	}
	if c.PostgresUser == "" {
		return "", errors.New("POSTGRES_USER must be set")
	}
	if c.PostgresDB == "" {
		return "", errors.New("POSTGRES_DB must be set")
	}

	port := c.PostgresPort
	if port == "" {
		port = "5432"
	}

	sslMode := c.PostgresSSLMode
	if sslMode == "" {
		sslMode = "disable" // Default to disable for local development
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s",
		c.PostgresHost, port, c.PostgresUser, c.PostgresDB, sslMode)

	if c.PostgresPassword != "" {
		dsn += " password=" + c.PostgresPassword
	}

	return dsn, nil
}

func New() (*Config, error) {
	c := &Config{
		Port:       getenv("PORT", "8080"),
		DBAdapter:  getenv("DB_ADAPTER", "sqlite"),
		SQLiteFile: getenv("SQLITE_FILE", "./data/chirp.db"),
		JwtSecret:  getenv("JWT_SECRET", defaultJwtSecret),
		LogLevel:   getenv("LOG_LEVEL", "info"),
		// PostgreSQL settings
		PostgresDSN:      getenv("POSTGRES_DSN", ""),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getenv("POSTGRES_PORT", "5432"),
		PostgresUser:     getenv("POSTGRES_USER", "chirp"),
		PostgresPassword: getenv("POSTGRES_PASSWORD", ""),
		PostgresDB:       getenv("POSTGRES_DB", "chirp"),
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),
	}

	ttl, err := strconv.ParseInt(getenv("JWT_EXPIRATION_MS", "86400000"), 10, 64)
	if err != nil || ttl <= 0 {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_MS: %s", os.Getenv("JWT_EXPIRATION_MS"))
	}
	c.JwtExpirationMs = ttl

	// 0 disables rate limiting
	limit, err := strconv.Atoi(getenv("AUTH_RATE_LIMIT_PER_MINUTE", "60"))
	if err != nil || limit < 0 {
		return nil, fmt.Errorf("invalid AUTH_RATE_LIMIT_PER_MINUTE: %s", os.Getenv("AUTH_RATE_LIMIT_PER_MINUTE"))
	}
	c.AuthRateLimitPerMinute = limit

	// Validate PostgreSQL configuration if using postgres
	if c.DBAdapter == "postgres" {
		dsn, err := c.BuildPostgresDSN()
		if err != nil {
			return nil, fmt.Errorf("postgres configuration error: %w", err)
		}
		c.PostgresDSN = dsn
	}

	if c.DBAdapter == "sqlite" {
		// ensure sqlite file path is not empty
		if c.SQLiteFile == "" {
			return nil, errors.New("SQLITE_FILE must be set when DB_ADAPTER=sqlite")
		}
	}

	// Validate JWT secret in production
	env := strings.ToLower(getenv("ENV", ""))
	if env == "production" || env == "prod" {
		if c.JwtSecret == "" || c.JwtSecret == defaultJwtSecret {
			return nil, errors.New("JWT_SECRET must be set in production")
		}
	}
	// HS512 wants at least a 512-bit key
	if len(c.JwtSecret) < 64 {
		return nil, errors.New("JWT_SECRET must be at least 64 bytes")
	}

	// normalize port
	if _, err := strconv.Atoi(c.Port); err != nil {
		return nil, fmt.Errorf("invalid PORT: %s", c.Port)
	}

	return c, nil
}

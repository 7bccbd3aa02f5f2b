package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Port        string
	CORSOrigins string
	UploadDir   string

	// Database configuration
	DBType            string // mysql, mariadb, postgres, sqlite, sqlite3, sqlserver
	DBHost            string
	DBPort            string
	DBDatabase        string
	DBUser            string
	DBPassword        string
	DBConnectionLimit int
	DBLogLevel        string

	// Auth configuration
	JWTSecret string
	JWTIssuer string

	// Idempotency store; empty RedisURL keeps reservations in process memory
	RedisURL       string
	IdempotencyTTL time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// Notifications
	NotifyDriver string // log, ses
	SESRegion    string
	SESSender    string
}

var defaults = map[string]interface{}{
	"PORT":                "3000",
	"CORS_ORIGINS":        "*",
	"UPLOAD_DIR":          "./uploads",
	"DB_TYPE":             "mysql",
	"DB_HOST":             "localhost",
	"DB_PORT":             "3306",
	"DB_CONNECTION_LIMIT": 5,
	"DB_LOG_LEVEL":        "warn",
	"JWT_ISSUER":          "jam-build-intakedb",
	"IDEMPOTENCY_TTL":     "24h",
	"LOG_LEVEL":           "info",
	"LOG_FORMAT":          "json",
	"NOTIFY_DRIVER":       "log",
	"SES_REGION":          "us-east-1",
}

// Load reads configuration from the environment, after an optional .env file.
func Load() (*Config, error) {
	loadEnvFile()
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v
}

// FromViper builds and validates a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:              v.GetString("PORT"),
		CORSOrigins:       v.GetString("CORS_ORIGINS"),
		UploadDir:         v.GetString("UPLOAD_DIR"),
		DBType:            strings.ToLower(v.GetString("DB_TYPE")),
		DBHost:            v.GetString("DB_HOST"),
		DBPort:            v.GetString("DB_PORT"),
		DBDatabase:        v.GetString("DB_DATABASE"),
		DBUser:            v.GetString("DB_USER"),
		DBPassword:        v.GetString("DB_PASSWORD"),
		DBConnectionLimit: v.GetInt("DB_CONNECTION_LIMIT"),
		DBLogLevel:        v.GetString("DB_LOG_LEVEL"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		JWTIssuer:         v.GetString("JWT_ISSUER"),
		RedisURL:          v.GetString("REDIS_URL"),
		IdempotencyTTL:    v.GetDuration("IDEMPOTENCY_TTL"),
		LogLevel:          v.GetString("LOG_LEVEL"),
		LogFormat:         v.GetString("LOG_FORMAT"),
		NotifyDriver:      strings.ToLower(v.GetString("NOTIFY_DRIVER")),
		SESRegion:         v.GetString("SES_REGION"),
		SESSender:         v.GetString("SES_SENDER"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DBDatabase == "" {
		return fmt.Errorf("DB_DATABASE is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.DBConnectionLimit <= 0 {
		c.DBConnectionLimit = 5
	}
	if c.IdempotencyTTL <= 0 {
		c.IdempotencyTTL = 24 * time.Hour
	}
	switch c.NotifyDriver {
	case "log", "":
		c.NotifyDriver = "log"
	case "ses":
		if c.SESSender == "" {
			return fmt.Errorf("SES_SENDER is required when NOTIFY_DRIVER=ses")
		}
	default:
		return fmt.Errorf("unsupported NOTIFY_DRIVER: %s", c.NotifyDriver)
	}
	return nil
}

// loadEnvFile loads ENV_FILE when set, otherwise the nearest .env, ignoring absence.
func loadEnvFile() {
	if path := os.Getenv("ENV_FILE"); path != "" {
		_ = godotenv.Load(path)
		return
	}
	for _, path := range []string{".env", "../.env", "../../.env"} {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

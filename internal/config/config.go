package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env  string // application environment (e.g. "dev", "production")
	Port string // HTTP port to listen on

	DBUser            string // database username
	DBPass            string // database password (optional)
	DBHost            string // database host address
	DBPort            string // database port number
	DBName            string // database name
	DBMaxOpenConns    int    // upper bound on live connections in the pool
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBMigrate         bool // run embedded migrations on startup

	Mail MailConfig

	JWTSecret    string // secret used to sign access tokens; empty disables token issuing
	AccessTTLMin int    // access token time-to-live in minutes
	AuthRequired bool   // require a bearer token on user-scoped routes

	CORSAllowOrigins []string

	RabbitMQURL  string // empty disables reservation events
	EventsLogDir string
}

// MailConfig describes the SMTP relay used for transactional mail.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Production reports whether the service runs with production settings.
func (c Config) Production() bool { return strings.EqualFold(c.Env, "production") }

// Load reads configuration values from the environment, after merging an
// optional .env file in the working directory.  Every missing required
// variable is reported in the returned error.
func Load() (Config, error) {
	_ = godotenv.Load()

	var missing []string
	must := func(key string) string {
		v, ok := os.LookupEnv(key)
		if !ok || strings.TrimSpace(v) == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg := Config{
		Env:               envStr("APP_ENV", "dev"),
		Port:              envStr("APP_PORT", "8080"),
		DBUser:            must("DB_USER"),
		DBPass:            os.Getenv("DB_PASS"),
		DBHost:            must("DB_HOST"),
		DBPort:            envStr("DB_PORT", "3306"),
		DBName:            must("DB_NAME"),
		DBMaxOpenConns:    envInt("DB_MAX_OPEN_CONNS", 20),
		DBMaxIdleConns:    envInt("DB_MAX_IDLE_CONNS", 20),
		DBConnMaxLifetime: envDur("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		DBMigrate:         envBool("DB_MIGRATE", true),
		Mail: MailConfig{
			Host:     os.Getenv("EMAIL_SMTP"),
			Port:     envInt("EMAIL_PORT", 587),
			Username: os.Getenv("EMAIL_USERNAME"),
			Password: os.Getenv("EMAIL_PASSWORD"),
			From:     envStr("EMAIL_FROM", "Avanzo app <ritrove@ritrove.com>"),
		},
		JWTSecret:        os.Getenv("JWT_SECRET"),
		AccessTTLMin:     envInt("ACCESS_TOKEN_TTL_MIN", 60),
		AuthRequired:     envBool("AUTH_REQUIRED", false),
		CORSAllowOrigins: splitList(envStr("CORS_ALLOW_ORIGINS", "*")),
		RabbitMQURL:      os.Getenv("RABBITMQ_URL"),
		EventsLogDir:     envStr("EVENTS_LOG_DIR", "logs"),
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	if cfg.AuthRequired && cfg.JWTSecret == "" {
		return Config{}, errors.New("AUTH_REQUIRED is set but JWT_SECRET is empty")
	}
	if cfg.DBMaxOpenConns < 1 {
		cfg.DBMaxOpenConns = 1
	}
	if cfg.AccessTTLMin < 1 {
		cfg.AccessTTLMin = 60
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}

package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName string
	ServerPort  int
	LogLevel    string

	DBDriver    string
	DatabaseURL string

	JWTAccessSecret  []byte
	JWTRefreshSecret []byte
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	CookieSecure     bool
	CORSOrigins      []string

	KafkaBrokers []string

	ESURL          string
	ESUser         string
	ESPassword     string
	ESIndex        string
	ESReindexBatch int

	AdminUsername string
	AdminEmail    string
	AdminPassword string

	AuthRateLimit float64
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("notice: .env not loaded: %v", err)
	}

	cfg := &Config{
		ServiceName: EnvDefault("SERVICE_NAME", "bookstore"),
		ServerPort:  EnvIntDefault("SERVER_PORT", 8080),
		LogLevel:    EnvDefault("LOG_LEVEL", "info"),

		DBDriver:    strings.ToLower(EnvDefault("DB_DRIVER", "postgres")),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		JWTAccessSecret:  []byte(os.Getenv("JWT_SECRET")),
		JWTRefreshSecret: []byte(os.Getenv("JWT_REFRESH_SECRET")),
		AccessTTL:        EnvDurationDefault("ACCESS_TTL", 15*time.Minute),
		RefreshTTL:       EnvDurationDefault("REFRESH_TTL", 7*24*time.Hour),
		CookieSecure:     EnvBoolDefault("COOKIE_SECURE", false),
		CORSOrigins:      CSV(EnvDefault("CORS_ORIGINS", "*")),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),

		ESURL:          os.Getenv("ES_URL"),
		ESUser:         os.Getenv("ES_USER"),
		ESPassword:     os.Getenv("ES_PASSWORD"),
		ESIndex:        EnvDefault("ES_INDEX", "books"),
		ESReindexBatch: EnvIntDefault("ES_REINDEX_BATCH", 500),

		AdminUsername: os.Getenv("ADMIN_USERNAME"),
		AdminEmail:    EnvDefault("ADMIN_EMAIL", "admin@localhost"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),

		AuthRateLimit: EnvFloatDefault("AUTH_RATE_LIMIT", 5),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	errs = append(errs,
		NonEmpty(c.DatabaseURL, "DATABASE_URL"),
		NonEmptyBytes(c.JWTAccessSecret, "JWT_SECRET"),
		NonEmptyBytes(c.JWTRefreshSecret, "JWT_REFRESH_SECRET"),
	)
	if c.DBDriver != "postgres" && c.DBDriver != "sqlite" {
		errs = append(errs, fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver))
	}
	if c.AdminUsername != "" && c.AdminPassword == "" {
		errs = append(errs, errors.New("ADMIN_PASSWORD is required when ADMIN_USERNAME is set"))
	}
	return errors.Join(errs...)
}

func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.ServerPort)
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvFloatDefault(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func EnvBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func EnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// Chat history
	DefaultHistoryLimit = 100
	HistoryKey          = "chat:history"

	// Presence
	OnlineUsersKey = "online_users"

	// WebSocket transport
	WriteWait      = 10 * time.Second
	PongWait       = 60 * time.Second
	PingPeriod     = (PongWait * 9) / 10
	MaxMessageSize = 4096
	SendBufferSize = 256

	// Cache
	PostListTTL = 5 * time.Minute
	PostTTL     = 10 * time.Minute

	// Auth
	BcryptCost = 12
)

// Config holds the runtime settings of the server process.
type Config struct {
	Port        string
	Environment string
	FrontendURL string

	JWTSecret    string
	JWTExpiresIn time.Duration
	JWTIssuer    string

	PostgresDSN string
	MySQLDSN    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	HistoryLimit    int64
	ShutdownTimeout time.Duration
}

// Load reads the configuration from environment variables, falling back to
// values that match the docker-compose setup.
func Load() Config {
	return Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("APP_ENV", "development"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),

		JWTSecret:    getEnv("JWT_SECRET", "change-me-in-production"),
		JWTExpiresIn: getDuration("JWT_EXPIRES_IN", 7*24*time.Hour),
		JWTIssuer:    getEnv("JWT_ISSUER", "pulse-backend"),

		PostgresDSN: getEnv("POSTGRES_DSN", "host=localhost user=postgres password=postgres dbname=pulse port=5432 sslmode=disable"),
		MySQLDSN:    getEnv("MYSQL_DSN", "root:password@tcp(localhost:3306)/pulse_analytics?parseTime=true"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getInt("REDIS_DB", 0),

		HistoryLimit:    int64(getInt("HISTORY_LIMIT", DefaultHistoryLimit)),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
	}
}

// IsDevelopment reports whether internal error details may be exposed to clients.
func (c Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using %d", key, val, fallback)
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	d, err := ParseDuration(val)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using %s: %v", key, val, fallback, err)
		return fallback
	}
	return d
}

// ParseDuration accepts everything time.ParseDuration does plus a whole
// number of days such as "7d".
func ParseDuration(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid day count in %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

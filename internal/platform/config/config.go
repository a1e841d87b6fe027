package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures everything cmd/server needs from the environment so main
// stays lean.
type Config struct {
	Server   Server
	Postgres Postgres
	Redis    Redis
	Kafka    Kafka
}

type Server struct {
	Addr            string
	JWTSigningKey   string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type Postgres struct {
	// DSN is a lib/pq connection string. Empty means run on the in-memory
	// stores, which is the development default.
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

type Redis struct {
	// URL is a redis:// URL. Empty disables the active-regulation cache.
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CacheTTL     time.Duration
}

type Kafka struct {
	// Brokers is a comma-separated seed list. Empty disables lifecycle
	// event publishing.
	Brokers string
	Topic   string
}

// FromEnv builds the configuration from environment variables with
// development defaults.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:            envOr("DOMUS_ADDR", ":8080"),
			JWTSigningKey:   envOr("DOMUS_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			RequestTimeout:  envDuration("DOMUS_REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout: envDuration("DOMUS_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Postgres: Postgres{
			DSN:          os.Getenv("DOMUS_POSTGRES_DSN"),
			MaxOpenConns: envInt("DOMUS_POSTGRES_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DOMUS_POSTGRES_MAX_IDLE_CONNS", 5),
		},
		Redis: Redis{
			URL:          os.Getenv("DOMUS_REDIS_URL"),
			PoolSize:     envInt("DOMUS_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("DOMUS_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("DOMUS_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("DOMUS_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("DOMUS_REDIS_WRITE_TIMEOUT", 3*time.Second),
			CacheTTL:     envDuration("DOMUS_REDIS_CACHE_TTL", 10*time.Minute),
		},
		Kafka: Kafka{
			Brokers: os.Getenv("DOMUS_KAFKA_BROKERS"),
			Topic:   envOr("DOMUS_KAFKA_TOPIC", "domus.regulation.lifecycle"),
		},
	}
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

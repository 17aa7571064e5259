// Package config loads service settings from the environment, after reading
// an optional .env file.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

type RateLimit struct {
	RPS   float64
	Burst int
}

type Config struct {
	GatewayAddr      string
	APIAddr          string
	JWTSecret        string
	StoreDriver      string
	DatabaseURL      string
	RedisAddr        string
	KafkaBrokers     []string
	KafkaTopic       string
	NodeID           int64
	AllowedOrigins   []string
	MaxMessageSize   int64
	MaxContentLength int
	RateLimit        RateLimit
	ScyllaHosts      []string
	ScyllaKeyspace   string
	LogLevel         string
}

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

func defaultConfig() Config {
	return Config{
		GatewayAddr:      ":8080",
		APIAddr:          ":8081",
		KafkaTopic:       "chat-events",
		NodeID:           1,
		AllowedOrigins:   []string{"*"},
		MaxMessageSize:   8192,
		MaxContentLength: 2000,
		RateLimit:        RateLimit{RPS: 10, Burst: 20},
		ScyllaHosts:      []string{"localhost:9042"},
		ScyllaKeyspace:   "chat",
		LogLevel:         "info",
	}
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from environment variables only.
func FromEnv() (*Config, error) {
	cfg := defaultConfig()

	if v := os.Getenv("GATEWAY_ADDR"); v != "" {
		cfg.GatewayAddr = v
	}
	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.APIAddr = v
	}
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(os.Getenv("STORE_DRIVER")))
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = splitList(v)
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		cfg.KafkaTopic = v
	}
	if v := os.Getenv("NODE_ID"); v != "" {
		cfg.NodeID = int64(parseInt(v, int(cfg.NodeID)))
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("MAX_MESSAGE_SIZE"); v != "" {
		cfg.MaxMessageSize = int64(parseInt(v, int(cfg.MaxMessageSize)))
	}
	if v := os.Getenv("MAX_CONTENT_LENGTH"); v != "" {
		cfg.MaxContentLength = parseInt(v, cfg.MaxContentLength)
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if rps, err := strconv.ParseFloat(v, 64); err == nil && rps > 0 {
			cfg.RateLimit.RPS = rps
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		cfg.RateLimit.Burst = parseInt(v, cfg.RateLimit.Burst)
	}
	if v := os.Getenv("SCYLLA_HOSTS"); v != "" {
		cfg.ScyllaHosts = splitList(v)
	}
	if v := os.Getenv("SCYLLA_KEYSPACE"); v != "" {
		cfg.ScyllaKeyspace = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if err := cfg.sanitize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) sanitize() error {
	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET is required")
	}
	switch c.StoreDriver {
	case "":
		c.StoreDriver = DriverMemory
		if c.DatabaseURL != "" {
			c.StoreDriver = DriverPostgres
		}
	case DriverMemory:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL is required for the postgres store")
		}
	default:
		return errors.Errorf("config: unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.NodeID < 0 || c.NodeID > 1023 {
		return errors.Errorf("config: NODE_ID %d out of range 0-1023", c.NodeID)
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	return nil
}

// AllowsAnyOrigin reports whether the origin list contains "*".
func (c *Config) AllowsAnyOrigin() bool {
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseInt(v string, def int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
		return n
	}
	return def
}

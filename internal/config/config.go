// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends.
const (
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config holds settings shared by the agent and ingest executables.
type Config struct {
	StoreBackend   string
	StoreHost      string
	StorePort      int
	StorePassword  string
	StoreNamespace string
	StoreDSN       string
	StoreTimeout   time.Duration

	OllamaBaseURL string
	OllamaModel   string
	OllamaTimeout time.Duration

	FetchTimeout  time.Duration
	FetchMaxChars int

	StartupDelay  time.Duration
	TasksFile     string
	AgentInterval time.Duration
	AgentSchedule string

	LogLevel     slog.Level
	OTLPEndpoint string
}

// Load reads the environment, applying defaults for unset variables.
func Load() (Config, error) {
	var errs []error
	c := Config{
		StoreBackend:   strings.ToLower(getenv("STORE_BACKEND", BackendRedis)),
		StoreHost:      getenv("STORE_HOST", "localhost"),
		StorePort:      intEnv("STORE_PORT", 6379, &errs),
		StorePassword:  os.Getenv("STORE_PASSWORD"),
		StoreNamespace: getenv("STORE_NAMESPACE", "agent_tasks"),
		StoreDSN:       os.Getenv("STORE_DSN"),
		StoreTimeout:   durationEnv("STORE_TIMEOUT", 5*time.Second, &errs),

		OllamaBaseURL: getenv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:   getenv("OLLAMA_MODEL", "qwen2:7b"),
		OllamaTimeout: durationEnv("OLLAMA_TIMEOUT", 120*time.Second, &errs),

		FetchTimeout:  durationEnv("FETCH_TIMEOUT", 10*time.Second, &errs),
		FetchMaxChars: intEnv("FETCH_MAX_CHARS", 500, &errs),

		StartupDelay:  durationEnv("STARTUP_DELAY", 10*time.Second, &errs),
		TasksFile:     getenv("TASKS_FILE", "tasks.json"),
		AgentInterval: durationEnv("AGENT_INTERVAL", 0, &errs),
		AgentSchedule: os.Getenv("AGENT_SCHEDULE"),

		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		if err := c.LogLevel.UnmarshalText([]byte(lvl)); err != nil {
			errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return c, c.Validate()
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendRedis:
	case BackendSQLite, BackendPostgres:
		if c.StoreDSN == "" {
			return fmt.Errorf("config: STORE_DSN is required for the %s backend", c.StoreBackend)
		}
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.FetchMaxChars <= 0 {
		return fmt.Errorf("config: FETCH_MAX_CHARS must be positive, got %d", c.FetchMaxChars)
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("config: STORE_TIMEOUT must be positive")
	}
	if c.StartupDelay < 0 {
		return fmt.Errorf("config: STARTUP_DELAY must not be negative")
	}
	return nil
}

// RedisAddr returns host:port for the Redis backend.
func (c Config) RedisAddr() string {
	return net.JoinHostPort(c.StoreHost, strconv.Itoa(c.StorePort))
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

// durationEnv accepts Go durations ("1m30s") or a plain number of seconds.
func durationEnv(key string, def time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

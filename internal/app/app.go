// Package app wires configuration into stores, loggers and agents for the executables.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	agent "github.com/UniQw/uniqw-agent"
	"github.com/UniQw/uniqw-agent/internal/config"
	"github.com/UniQw/uniqw-agent/internal/ollama"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

// NewLogger returns a text slog logger writing to w at level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// OpenStore connects to the configured backend. The returned func releases it.
// Every store call is bounded by cfg.StoreTimeout.
func OpenStore(ctx context.Context, cfg config.Config, log agent.Logger) (agent.Store, func() error, error) {
	opts := []agent.StoreOption{
		agent.Namespace(cfg.StoreNamespace),
		agent.QueryTimeout(cfg.StoreTimeout),
		agent.WithStoreLogger(log),
	}
	switch cfg.StoreBackend {
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr(),
			Password:     cfg.StorePassword,
			DialTimeout:  cfg.StoreTimeout,
			ReadTimeout:  cfg.StoreTimeout,
			WriteTimeout: cfg.StoreTimeout,
		})
		s := agent.NewRedisStore(rdb, opts...)
		if err := s.Ping(ctx); err != nil {
			_ = rdb.Close()
			return nil, nil, err
		}
		return s, rdb.Close, nil
	case config.BackendSQLite:
		s, err := agent.OpenSQLite(ctx, cfg.StoreDSN, opts...)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.BackendPostgres:
		s, err := agent.OpenPostgres(ctx, cfg.StoreDSN, opts...)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// NewAgent builds an agent with the Scrape action and an Ollama summarizer.
func NewAgent(cfg config.Config, source agent.TaskSource, log agent.Logger, tracer trace.Tracer) *agent.Agent {
	mux := agent.NewMux()
	mux.Use(agent.LoggingMiddleware(log))
	agent.NewScraper(agent.ScraperConfig{
		Timeout:  cfg.FetchTimeout,
		MaxChars: cfg.FetchMaxChars,
	}).Register(mux)

	llm := ollama.New(ollama.Config{
		BaseURL: cfg.OllamaBaseURL,
		Model:   cfg.OllamaModel,
		Timeout: cfg.OllamaTimeout,
	})
	return agent.NewAgent(source, mux, agent.NewLLMSummarizer(llm),
		agent.WithLogger(log),
		agent.WithTracer(tracer),
	)
}

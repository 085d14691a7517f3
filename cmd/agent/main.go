// Command agent runs task passes against the configured store.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	agent "github.com/UniQw/uniqw-agent"
	"github.com/UniQw/uniqw-agent/internal/app"
	"github.com/UniQw/uniqw-agent/internal/config"
	"github.com/UniQw/uniqw-agent/internal/tracing"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		delay    time.Duration
		interval time.Duration
		schedule string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:           "agent",
		Short:         "Process one pending task, or keep processing on a schedule",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				return err
			}
			if !cmd.Flags().Changed("delay") {
				delay = cfg.StartupDelay
			}
			if !cmd.Flags().Changed("interval") {
				interval = cfg.AgentInterval
			}
			if !cmd.Flags().Changed("schedule") {
				schedule = cfg.AgentSchedule
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			out := report
			if asJSON {
				out = reportJSON
			}
			if err := run(ctx, cfg, delay, interval, schedule, out); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				return err
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&delay, "delay", 10*time.Second, "wait before the first pass (env STARTUP_DELAY)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "repeat passes at this interval (env AGENT_INTERVAL)")
	cmd.Flags().StringVar(&schedule, "schedule", "", "repeat passes on this cron expression (env AGENT_SCHEDULE)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print each pass result as a JSON line")
	return cmd
}

func run(ctx context.Context, cfg config.Config, delay, interval time.Duration, schedule string, out func(agent.PassResult, error)) error {
	logger := app.NewLogger(os.Stderr, cfg.LogLevel)
	log := agent.NewSlogLogger(logger)

	tracer, shutdown, err := tracing.Setup(ctx, tracing.Config{Endpoint: cfg.OTLPEndpoint, ServiceName: "uniqw-agent"})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			logger.Warn("tracing shutdown", "error", err)
		}
	}()

	logger.Info("agent started, looking for tasks")
	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}

	store, closeStore, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	a := app.NewAgent(cfg, store, log, tracer)

	if interval == 0 && schedule == "" {
		res, err := a.RunPass(ctx)
		out(res, err)
		return err
	}

	r, err := agent.NewRunner(a, agent.RunnerConfig{
		Interval: interval,
		Schedule: schedule,
		Logger:   log,
		OnResult: out,
	})
	if err != nil {
		return err
	}
	return r.Run(ctx)
}

func report(res agent.PassResult, err error) {
	switch {
	case err != nil && res.TaskID != "":
		fmt.Printf("Task %s not completed: %s\n", res.TaskID, err)
	case err != nil:
		if errors.Is(err, agent.ErrStoreUnavailable) {
			fmt.Println("Task store unavailable.")
		}
	case res.State == agent.PassEmpty:
		fmt.Println("No tasks found in queue.")
	default:
		fmt.Printf("Found Task: %s\n", res.Goal)
		fmt.Printf("Agent Result: %s\n", res.Summary)
	}
}

func reportJSON(res agent.PassResult, err error) {
	line, encErr := agent.EncodeResult(&agent.JSONEncoder{}, res)
	if encErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", encErr)
		return
	}
	fmt.Println(string(line))
}

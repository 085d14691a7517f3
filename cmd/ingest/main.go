// Command ingest loads a task file into the configured store.
package main

import (
	"context"
	"fmt"
	"os"

	agent "github.com/UniQw/uniqw-agent"
	"github.com/UniQw/uniqw-agent/internal/app"
	"github.com/UniQw/uniqw-agent/internal/config"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:           "ingest [file]",
		Short:         "Load tasks from a JSON, JSON5 or YAML file into the task store",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				return err
			}
			path := cfg.TasksFile
			switch {
			case len(args) == 1:
				path = args[0]
			case cmd.Flags().Changed("file"):
				path = file
			}

			n, err := ingest(cmd.Context(), cfg, path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				return err
			}
			fmt.Printf("Successfully loaded %d tasks.\n", n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "task file (env TASKS_FILE, default tasks.json)")
	return cmd
}

func ingest(ctx context.Context, cfg config.Config, path string) (int, error) {
	log := agent.NewSlogLogger(app.NewLogger(os.Stderr, cfg.LogLevel))
	store, closeStore, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		return 0, err
	}
	defer closeStore()
	return agent.NewLoader(store, log).LoadFile(ctx, path)
}

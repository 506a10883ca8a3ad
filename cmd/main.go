package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"daylog/internal/app"
	"daylog/internal/config"
	"daylog/internal/pipeline"
	"daylog/internal/validate"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "daylog",
		Short:         "Turn long audio recordings into a searchable event timeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: daylog.toml in . or ~/.config/daylog)")

	root.AddCommand(newRunCmd(&configPath))
	root.AddCommand(newValidateCmd())
	return root
}

func newRunCmd(configPath *string) *cobra.Command {
	var opts pipeline.RunOptions
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "run <file-or-directory>",
		Short: "Process recordings into per-recording event logs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if overwrite {
				cfg.Output.Overwrite = true
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			application := app.New(cfg)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := application.Start(ctx); err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				application.Shutdown(shutdownCtx)
			}()

			runner := pipeline.NewRunner(cfg, application.Converter, application.Classifier, application.Transcriber, application.Publisher)
			dirs, err := runner.Run(ctx, args[0], opts)
			if err != nil {
				return err
			}

			log.Info().Int("recordings", len(dirs)).Msg("Batch complete")
			for _, dir := range dirs {
				fmt.Println(dir)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.DateOverride, "date", "", "date directory override (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.StartTime, "start-time", "", "absolute start time of the recording (ISO-8601)")
	cmd.Flags().BoolVar(&opts.UseMtime, "use-mtime", false, "anchor the recording to the source file's modification time")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "re-process recordings that already have output")
	return cmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <recording-dir>",
		Short: "Check a recording's artifacts against the output invariants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			// Accept the recording directory or its processed/ child.
			if filepath.Base(dir) != "processed" {
				if _, err := os.Stat(filepath.Join(dir, "processed")); err == nil {
					dir = filepath.Join(dir, "processed")
				}
			}

			violations := validate.ProcessedDir(dir)
			if len(violations) == 0 {
				fmt.Printf("%s: ok\n", dir)
				return nil
			}
			for _, v := range violations {
				fmt.Printf("%s: %s\n", dir, v)
			}
			return fmt.Errorf("%d violation(s)", len(violations))
		},
	}
}

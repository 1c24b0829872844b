package cli

import (
	"context"
	"fmt"
	"log/slog"

	"rankledger/internal/config"
	"rankledger/internal/models"
	"rankledger/internal/storage"
	"rankledger/internal/util"

	"github.com/spf13/cobra"
)

// RootOptions holds the loaded configuration plus global flag overrides.
type RootOptions struct {
	Config   config.Config
	LogLevel string
	Store    string
	Source   string
}

func NewRootCommand(cfg config.Config) *cobra.Command {
	opts := &RootOptions{Config: cfg}

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture monthly ranking snapshots into the permanent store",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.Store != "" {
				opts.Config.Store = opts.Store
			}
			if opts.Source != "" {
				opts.Config.Sources = opts.Source
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", cfg.LogLevel, "log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.Store, "store", "", "store backend override (postgres|sqlite)")
	cmd.PersistentFlags().StringVar(&opts.Source, "source", "", "source list override (json|html|mock)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewScheduleCommand(opts))
	cmd.AddCommand(NewCleanupCommand(opts))
	cmd.AddCommand(NewSourcesCommand(opts))
	return cmd
}

func (o *RootOptions) logger(cmd *cobra.Command) *slog.Logger {
	return util.NewLogger(cmd.ErrOrStderr(), o.LogLevel)
}

func (o *RootOptions) openStore(ctx context.Context) (storage.Store, error) {
	s, err := storage.Open(ctx, o.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open store", err)
	}
	return s, nil
}

func parsePolicy(raw, fallback string) (models.Policy, error) {
	if raw == "" {
		raw = fallback
	}
	p := models.Policy(raw)
	if !p.Valid() {
		return "", WrapExitError(ExitCommandError, "invalid --policy", fmt.Errorf("%q is not history or current", raw))
	}
	return p, nil
}

func parsePeriodFlag(raw string) (models.Period, error) {
	if raw == "" {
		return models.Period{}, nil
	}
	p, err := models.ParsePeriod(raw)
	if err != nil {
		return models.Period{}, WrapExitError(ExitCommandError, "invalid --period", err)
	}
	return p, nil
}

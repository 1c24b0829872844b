package cli

import (
	"context"
	"fmt"

	"rankledger/internal/export"
	"rankledger/internal/models"
	"rankledger/internal/storage"

	"github.com/spf13/cobra"
)

type ShowOptions struct {
	*RootOptions
	Period string
	Policy string
	Out    string
}

func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a stored snapshot as a table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := loadSnapshot(cmd.Context(), opts)
			if err != nil {
				return err
			}
			export.Table(cmd.OutOrStdout(), rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Period, "period", "", "month to show (YYYY-MM); default latest captured")
	cmd.Flags().StringVar(&opts.Policy, "policy", "", "table to read (history|current)")
	return cmd
}

func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a stored snapshot to a CSV file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := loadSnapshot(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if err := export.WriteCSVFile(opts.Out, rows); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", len(rows), opts.Out)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Period, "period", "", "month to export (YYYY-MM); default latest captured")
	cmd.Flags().StringVar(&opts.Policy, "policy", "", "table to read (history|current)")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "CSV file to write (required)")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func loadSnapshot(ctx context.Context, opts *ShowOptions) ([]models.StoredEntity, error) {
	period, err := parsePeriodFlag(opts.Period)
	if err != nil {
		return nil, err
	}
	policy, err := parsePolicy(opts.Policy, opts.Config.Policy)
	if err != nil {
		return nil, err
	}
	store, err := opts.openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	if period.IsZero() {
		if period, err = latestPeriod(ctx, store, policy); err != nil {
			return nil, err
		}
	}
	return store.Snapshot(ctx, policy, period)
}

func latestPeriod(ctx context.Context, store storage.Store, policy models.Policy) (models.Period, error) {
	periods, err := store.Periods(ctx, policy)
	if err != nil {
		return models.Period{}, err
	}
	if len(periods) == 0 {
		return models.Period{}, WrapExitError(ExitFailure, "nothing captured yet", fmt.Errorf("policy %s", policy))
	}
	return periods[0], nil
}

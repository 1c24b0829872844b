package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

type CleanupOptions struct {
	*RootOptions
	DryRun bool
}

// NewCleanupCommand drops staging tables left behind by killed processes. It must not
// run while a capture is in progress.
func NewCleanupCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CleanupOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Drop leftover staging tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := opts.logger(cmd)
			store, err := opts.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			names, err := store.StagingTables(ctx)
			if err != nil {
				return err
			}
			for _, name := range names {
				if opts.DryRun {
					fmt.Fprintln(cmd.OutOrStdout(), name)
					continue
				}
				if err := store.DropStaging(ctx, name); err != nil {
					return err
				}
				log.Info("dropped staging table", "table", name)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d staging tables\n", len(names))
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "list tables without dropping them")
	return cmd
}

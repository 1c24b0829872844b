package cli

import (
	"rankledger/internal/sources"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewSourcesCommand lists the configured sources and marks the one run captures from.
func NewSourcesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List configured sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := sources.NewManager(rootOpts.Config)
			if err != nil {
				return WrapExitError(ExitCommandError, "configure sources", err)
			}
			chosen, err := mgr.Select(rootOpts.Config.SourceUse)
			if err != nil {
				return WrapExitError(ExitCommandError, "select source", err)
			}

			t := table.NewWriter()
			t.SetStyle(table.StyleRounded)
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"#", "Kind", "Alias", "Endpoint", "Selected"})
			for i, s := range mgr.Sources() {
				info := s.Info()
				mark := ""
				if s == chosen {
					mark = "*"
				}
				t.AppendRow(table.Row{i, info.Name, info.Alias, info.Endpoint, mark})
			}
			t.Render()
			return nil
		},
	}
}

package cli

import (
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func (a *app) policiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "policies",
		Short: "List the published scoring policies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := a.registry()
			if err != nil {
				return err
			}
			snap := reg.Snapshot()

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			defer func() { _ = table.Close() }()
			table.Header([]string{"Version", "Default", "Permissions", "Trackers", "Hash", "Description"})
			var data [][]string
			for _, p := range snap.Policies() {
				def := ""
				if p.Version == snap.Default() {
					def = color.GreenString("yes")
				}
				data = append(data, []string{
					p.Version,
					def,
					strconv.Itoa(len(p.Permissions)),
					strconv.Itoa(len(p.Endpoints.Trackers)),
					p.Hash[:12],
					p.Description,
				})
			}
			if err := table.Bulk(data); err != nil {
				return err
			}
			return table.Render()
		},
	}
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"antygravity/internal/domain"
	"antygravity/internal/export"
)

func (a *app) exportCmd() *cobra.Command {
	var (
		userID string
		pkg    string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored privacy checks to a Parquet file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			n, err := export.ChecksFile(cmd.Context(), store, userID, domain.CheckFilter{PackageName: pkg}, output)
			if err != nil {
				return err
			}
			a.log.Info("checks exported", "rows", n, "path", output)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %d checks to %s\n", n, output)
			return err
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "Only export checks of this user (all users when empty)")
	cmd.Flags().StringVar(&pkg, "package", "", "Only export checks of this package name")
	cmd.Flags().StringVarP(&output, "output", "o", "checks.parquet", "Output file path")
	return cmd
}

package cli

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
)

func (a *app) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.withProvider(cmd, func(p *goose.Provider) error {
					results, err := p.Up(cmd.Context())
					if err != nil {
						return err
					}
					for _, r := range results {
						_, _ = fmt.Fprintf(cmd.OutOrStdout(), "applied %s (%s)\n", filepath.Base(r.Source.Path), r.Duration)
					}
					if len(results) == 0 {
						_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no pending migrations")
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.withProvider(cmd, func(p *goose.Provider) error {
					r, err := p.Down(cmd.Context())
					if err != nil {
						return err
					}
					_, err = fmt.Fprintf(cmd.OutOrStdout(), "rolled back %s\n", filepath.Base(r.Source.Path))
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show applied and pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.withProvider(cmd, func(p *goose.Provider) error {
					statuses, err := p.Status(cmd.Context())
					if err != nil {
						return err
					}
					table := tablewriter.NewWriter(cmd.OutOrStdout())
					defer func() { _ = table.Close() }()
					table.Header([]string{"Version", "Migration", "State", "Applied At"})
					var data [][]string
					for _, s := range statuses {
						applied := ""
						if !s.AppliedAt.IsZero() {
							applied = s.AppliedAt.UTC().Format("2006-01-02 15:04:05")
						}
						data = append(data, []string{
							strconv.FormatInt(s.Source.Version, 10),
							filepath.Base(s.Source.Path),
							string(s.State),
							applied,
						})
					}
					if err := table.Bulk(data); err != nil {
						return err
					}
					return table.Render()
				})
			},
		},
	)
	return cmd
}

func (a *app) withProvider(cmd *cobra.Command, fn func(*goose.Provider) error) error {
	store, err := a.openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	p, err := store.Provider()
	if err != nil {
		return err
	}
	return fn(p)
}

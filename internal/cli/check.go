package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"antygravity/internal/domain"
	"antygravity/internal/scoring"
)

func (a *app) checkCmd() *cobra.Command {
	var (
		version   string
		asJSON    bool
		breakdown bool
	)
	cmd := &cobra.Command{
		Use:   "check [descriptor.json]",
		Short: "Score an app descriptor without storing it",
		Long:  `Reads an app descriptor as JSON from the given file, or from stdin when the file is "-" or omitted, and prints its privacy score.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				in = f
			}
			var d domain.AppDescriptor
			if err := json.NewDecoder(in).Decode(&d); err != nil {
				return fmt.Errorf("decode descriptor: %w", err)
			}

			reg, err := a.registry()
			if err != nil {
				return err
			}
			res, err := scoring.New(reg).Check(d, version)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			if err := printResult(out, res); err != nil {
				return err
			}
			if breakdown {
				p, err := reg.Get(res.PolicyVersion)
				if err != nil {
					return err
				}
				return printBreakdown(out, scoring.Evaluate(p, res.Descriptor).Breakdown)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&version, "policy-version", "", "Policy version to score with (default policy when empty)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full result as JSON")
	cmd.Flags().BoolVar(&breakdown, "breakdown", false, "Print the penalty per rule family")
	return cmd
}

func printResult(w io.Writer, res domain.CheckResult) error {
	d := res.Descriptor
	if _, err := fmt.Fprintf(w, "%s (%s)\nScore: %d  %s  policy %s\n\n",
		d.AppName, d.PackageName, res.Score, actionLabel(res.SuggestedAction), res.PolicyVersion); err != nil {
		return err
	}
	if len(res.Findings) > 0 {
		table := tablewriter.NewWriter(w)
		table.Header([]string{"Severity", "Category", "Finding"})
		var data [][]string
		for _, f := range res.Findings {
			data = append(data, []string{severityLabel(f.Severity), f.Category, f.Explanation})
		}
		if err := table.Bulk(data); err != nil {
			return err
		}
		if err := table.Render(); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return wrap(w, res.Explanation, termWidth())
}

func printBreakdown(w io.Writer, b scoring.Breakdown) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Rule", "Penalty"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})
	rows := [][]string{
		{"permissions", strconv.Itoa(b.Permissions)},
		{"network", strconv.Itoa(b.Network)},
		{"category", strconv.Itoa(b.Category)},
		{"endpoints", strconv.Itoa(b.Endpoints)},
		{"install_source", strconv.Itoa(b.InstallSource)},
		{"total", strconv.Itoa(b.Total())},
	}
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

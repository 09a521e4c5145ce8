package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newListCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the waitlist in signup order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, deps, err := loadStores()
			if err != nil {
				return err
			}
			defer deps.Cleanup()

			entries, err := deps.Waitlist.Entries(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read waitlist: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				if entries == nil {
					entries = []string{}
				}
				payload, err := json.MarshalIndent(entries, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(payload))
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(out)
			t.SetStyle(table.StyleRounded)
			t.AppendHeader(table.Row{"#", "Email"})
			for i, email := range entries {
				t.AppendRow(table.Row{i + 1, email})
			}
			t.AppendFooter(table.Row{"", fmt.Sprintf("%d total", len(entries))})
			t.Render()
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw JSON array")
	return cmd
}

func newLimitsCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "limits",
		Short: "Show accepted signups per day and today's remaining quota",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, deps, err := loadStores()
			if err != nil {
				return err
			}
			defer deps.Cleanup()

			ctx := cmd.Context()
			counts, err := deps.Counter.Counts(ctx)
			if err != nil {
				return fmt.Errorf("failed to read daily counter: %w", err)
			}
			usage, err := deps.RateLimiter.Usage(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				payload, err := json.MarshalIndent(map[string]any{
					"days":  counts,
					"today": usage,
				}, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(payload))
				return err
			}

			days := make([]string, 0, len(counts))
			for day := range counts {
				days = append(days, day)
			}
			sort.Strings(days)

			t := table.NewWriter()
			t.SetOutputMirror(out)
			t.SetStyle(table.StyleRounded)
			t.AppendHeader(table.Row{"Day", "Accepted"})
			for _, day := range days {
				t.AppendRow(table.Row{day, counts[day]})
			}
			t.Render()

			_, err = fmt.Fprintf(out, "today %s: %d of %d used, %d remaining\n",
				usage.Day, usage.Count, usage.Limit, usage.Remaining)
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print counts as JSON")
	return cmd
}

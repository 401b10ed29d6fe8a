package cli

import (
	"fmt"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newStatsCmd(opts *rootOptions) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate usage across all stored sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := opts.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			stats, err := st.Stats()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Sessions: %d (%d turns)\n", stats.TotalSessions, stats.TotalTurns)
			fmt.Fprintf(out, "Tokens:   %s in / %s out\n",
				formatTokens(stats.TotalInputTokens), formatTokens(stats.TotalOutputTokens))

			if len(stats.SessionsBySource) > 0 {
				fmt.Fprintln(out, "\nBy source:")
				sources := make([]string, 0, len(stats.SessionsBySource))
				for name := range stats.SessionsBySource {
					sources = append(sources, name)
				}
				sort.Strings(sources)
				for _, name := range sources {
					fmt.Fprintf(out, "  %-10s %d\n", name, stats.SessionsBySource[name])
				}
			}

			if len(stats.ModelsUsed) > 0 {
				fmt.Fprintln(out, "\nModels:")
				tw := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
				for _, mu := range stats.ModelsUsed {
					fmt.Fprintf(tw, "  %s\t%d messages\t%s in / %s out\n",
						mu.ModelID, mu.MessageCount, formatTokens(mu.InputTokens), formatTokens(mu.OutputTokens))
				}
				tw.Flush()
			}

			if len(stats.ToolsUsed) > 0 {
				fmt.Fprintln(out, "\nTools:")
				tools := make([]string, 0, len(stats.ToolsUsed))
				for name := range stats.ToolsUsed {
					tools = append(tools, name)
				}
				sort.Slice(tools, func(i, j int) bool {
					if stats.ToolsUsed[tools[i]] != stats.ToolsUsed[tools[j]] {
						return stats.ToolsUsed[tools[i]] > stats.ToolsUsed[tools[j]]
					}
					return tools[i] < tools[j]
				})
				for _, name := range tools {
					fmt.Fprintf(out, "  %-16s %d\n", name, stats.ToolsUsed[name])
				}
			}

			if days > 0 {
				byDay, err := st.SessionsByDay(time.Now().AddDate(0, 0, -days))
				if err != nil {
					return err
				}
				fmt.Fprintln(out, "\nActivity:")
				dates := make([]string, 0, len(byDay))
				for date := range byDay {
					dates = append(dates, date)
				}
				sort.Strings(dates)
				for _, date := range dates {
					d := byDay[date]
					fmt.Fprintf(out, "  %s  %d sessions, %s tokens\n", date, d.Count, formatTokens(d.Tokens))
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "Also show per-day activity for the last N days")
	return cmd
}

func newBudgetCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Manage token budgets",
	}
	cmd.AddCommand(newBudgetSetCmd(opts), newBudgetShowCmd(opts), newBudgetClearCmd(opts))
	return cmd
}

func newBudgetSetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <daily|weekly> <token-limit>",
		Short: "Set a token budget for a period",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			period := args[0]
			if period != "daily" && period != "weekly" {
				return fmt.Errorf("unknown period %q: use daily or weekly", period)
			}
			limit, err := strconv.Atoi(args[1])
			if err != nil || limit <= 0 {
				return fmt.Errorf("invalid token limit %q", args[1])
			}

			st, err := opts.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.SetBudget(period, limit); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s budget set to %s tokens\n", period, formatTokens(limit))
			return nil
		},
	}
}

func newBudgetShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show budgets and current usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := opts.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			out := cmd.OutOrStdout()
			any := false
			for _, period := range []string{"daily", "weekly"} {
				limit, ok, err := st.Budget(period)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
				any = true
				used, err := st.UsageForPeriod(period)
				if err != nil {
					return err
				}
				pct := 0
				if limit > 0 {
					pct = used * 100 / limit
				}
				fmt.Fprintf(out, "%s: %s / %s tokens (%d%%)\n",
					period, formatTokens(used), formatTokens(limit), pct)
			}
			if !any {
				fmt.Fprintln(out, "No budgets configured. Use: sagg budget set daily <limit>")
			}
			return nil
		},
	}
}

func newBudgetClearCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <daily|weekly>",
		Short: "Remove a budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.ClearBudget(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s budget cleared\n", args[0])
			return nil
		},
	}
}

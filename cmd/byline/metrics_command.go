package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"byline/internal/ledger"
)

func newMetricsCommand(ctx *commandContext) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show per-day enrichment totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiClient) error {
				metrics, err := client.Metrics(cmd.Context(), days)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(metrics) == 0 {
					fmt.Fprintln(out, "No enrichment activity recorded yet")
					return nil
				}
				fmt.Fprintln(out, renderMetricsTable(metrics))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "Number of days to include")
	return cmd
}

func renderMetricsTable(metrics []ledger.DailyMetrics) string {
	rows := make([][]string, 0, len(metrics))
	for _, day := range metrics {
		rows = append(rows, []string{
			day.Day,
			strconv.Itoa(day.Attempted),
			strconv.Itoa(day.Enriched),
			strconv.Itoa(day.Failed),
			strconv.Itoa(day.MediaMatched),
		})
	}
	return renderTable(
		[]column{
			{title: "Day"},
			{title: "Attempted", numeric: true},
			{title: "Enriched", numeric: true},
			{title: "Failed", numeric: true},
			{title: "Media", numeric: true},
		},
		rows,
	)
}

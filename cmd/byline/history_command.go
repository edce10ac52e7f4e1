package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"byline/internal/ledger"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var cycles bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent enrichment activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiClient) error {
				out := cmd.OutOrStdout()
				if cycles {
					summaries, err := client.Cycles(cmd.Context(), limit)
					if err != nil {
						return err
					}
					if len(summaries) == 0 {
						fmt.Fprintln(out, "No cycles recorded yet")
						return nil
					}
					fmt.Fprintln(out, renderCycleTable(summaries))
					return nil
				}

				records, err := client.History(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(records) == 0 {
					fmt.Fprintln(out, "No enrichments recorded yet")
					return nil
				}
				fmt.Fprintln(out, renderHistoryTable(records))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of entries to show")
	cmd.Flags().BoolVar(&cycles, "cycles", false, "Show cycle summaries instead of per-post records")
	return cmd
}

func renderHistoryTable(records []*ledger.Record) string {
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		detail := record.MediaTitle
		if record.FailureReason != "" {
			detail = record.FailureReason
		}
		rows = append(rows, []string{
			strconv.FormatInt(record.PostID, 10),
			truncate(record.Title, 40),
			string(record.Status),
			detail,
			record.UpdatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	return renderTable(
		[]column{{title: "Post", numeric: true}, {title: "Title"}, {title: "Status"}, {title: "Detail"}, {title: "Updated"}},
		rows,
	)
}

func renderCycleTable(summaries []ledger.CycleSummary) string {
	rows := make([][]string, 0, len(summaries))
	for _, summary := range summaries {
		finished := "running"
		if summary.FinishedAt != nil {
			finished = summary.FinishedAt.Local().Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{
			shortCycleID(summary.CycleID),
			summary.StartedAt.Local().Format("2006-01-02 15:04"),
			finished,
			strconv.Itoa(summary.Processed),
			strconv.Itoa(summary.Succeeded),
			strconv.Itoa(summary.Failed),
			strconv.Itoa(summary.Skipped),
		})
	}
	return renderTable(
		[]column{
			{title: "Cycle"},
			{title: "Started"},
			{title: "Finished"},
			{title: "Processed", numeric: true},
			{title: "Succeeded", numeric: true},
			{title: "Failed", numeric: true},
			{title: "Skipped", numeric: true},
		},
		rows,
	)
}

func shortCycleID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(value string, max int) string {
	if max <= 3 || len(value) <= max {
		return value
	}
	return value[:max-3] + "..."
}

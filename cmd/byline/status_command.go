package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"byline/internal/credentials"
	"byline/internal/daemon"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and credential status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiClient) error {
				status, err := client.Status(cmd.Context())
				if err != nil {
					return err
				}
				renderStatus(cmd.OutOrStdout(), status)
				return nil
			})
		},
	}
}

func renderStatus(out io.Writer, status *daemon.Status) {
	colorize := shouldColorize(out)

	fmt.Fprintln(out, sectionTitle("Daemon", colorize))
	runningTone := toneBad
	if status.Running {
		runningTone = toneGood
	}
	fmt.Fprintln(out, statusLine("Running", runningTone, yesNo(status.Running), colorize))
	if !status.StartedAt.IsZero() {
		fmt.Fprintln(out, statusLine("Started", toneInfo, status.StartedAt.Local().Format(time.RFC1123), colorize))
	}
	cycleTone := toneInfo
	cycleMsg := "idle"
	if status.CycleActive {
		cycleTone = toneGood
		cycleMsg = "running"
	}
	fmt.Fprintln(out, statusLine("Cycle", cycleTone, cycleMsg, colorize))
	if status.LastCycle != nil {
		summary := fmt.Sprintf("%d processed, %d succeeded, %d failed, %d skipped",
			status.LastCycle.Processed, status.LastCycle.Succeeded, status.LastCycle.Failed, status.LastCycle.Skipped)
		lastTone := toneGood
		if status.LastCycle.Failed > 0 || status.LastCycle.Aborted {
			lastTone = toneWarn
		}
		fmt.Fprintln(out, statusLine("Last cycle", lastTone, summary, colorize))
		if !status.LastCycleAt.IsZero() {
			fmt.Fprintln(out, statusLine("Last cycle at", toneInfo, status.LastCycleAt.Local().Format(time.RFC1123), colorize))
		}
	}
	fmt.Fprintln(out, statusLine("Ledger DB", toneInfo, status.LedgerDBPath, colorize))
	fmt.Fprintln(out, statusLine("Lock file", toneInfo, status.LockFilePath, colorize))

	if len(status.Health) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, sectionTitle("Dependencies", colorize))
		for _, check := range status.Health {
			checkTone := toneGood
			message := "reachable"
			if !check.Healthy {
				checkTone = toneBad
				message = check.Detail
			}
			fmt.Fprintln(out, statusLine(check.Name, checkTone, message, colorize))
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, sectionTitle("Credentials", colorize))
	fmt.Fprintln(out, renderCredentialTable(status.Credentials))

	if len(status.Ledger) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, sectionTitle("Ledger", colorize))
		fmt.Fprintln(out, renderLedgerTable(status.Ledger))
	}
}

func renderCredentialTable(statuses []credentials.Status) string {
	rows := make([][]string, 0, len(statuses))
	for _, cred := range statuses {
		state := "active"
		if !cred.Active {
			state = "exhausted"
			if !cred.ExhaustedUntil.IsZero() {
				state = fmt.Sprintf("exhausted until %s", cred.ExhaustedUntil.Local().Format("15:04:05"))
			}
		}
		budget := "unlimited"
		if cred.DailyBudget > 0 {
			budget = strconv.Itoa(cred.DailyBudget)
		}
		rows = append(rows, []string{cred.ID, strconv.Itoa(cred.RequestsUsed), budget, state})
	}
	return renderTable(
		[]column{{title: "Credential"}, {title: "Used", numeric: true}, {title: "Budget", numeric: true}, {title: "State"}},
		rows,
	)
}

func renderLedgerTable(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{key, strconv.Itoa(counts[key])})
	}
	return renderTable(
		[]column{{title: "Status"}, {title: "Count", numeric: true}},
		rows,
	)
}

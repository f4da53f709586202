package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"oldmanfooty-backend/services/mysideline/db"
)

var runsLimit *int

func init() {
	runsLimit = runsCmd.Flags().Int("limit", 20, "The maximum number of runs to show.")
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(statusCmd)
}

var runsCmd = &cobra.Command{
	Use:   "runs [--limit <n>]",
	Short: "Prints recent ingestion runs, newest first.",
	Run: func(cmd *cobra.Command, args []string) {
		var result struct {
			Runs []db.Run `json:"runs"`
		}
		err := getJson(cmd.Context(),
			fmt.Sprintf("/v1/sync/runs?limit=%d", *runsLimit), &result)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{
			"Correlation Id", "Status", "Started", "Scanned",
			"Created", "Updated", "Blocked", "Skipped", "Errored",
		})
		for _, r := range result.Runs {
			t.AppendRow(table.Row{
				r.CorrelationId,
				r.Status,
				r.StartedAt.Local().Format(time.DateTime),
				r.Counters.Scanned,
				r.Counters.Created,
				r.Counters.Updated,
				r.Counters.Blocked,
				r.Counters.Skipped,
				r.Counters.Errored,
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <correlation-id>",
	Short: "Prints the details of a single ingestion run.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var run db.Run
		err := getJson(cmd.Context(), "/v1/sync/runs/"+args[0], &run)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendRow(table.Row{"Correlation Id", run.CorrelationId})
		t.AppendRow(table.Row{"Status", run.Status})
		t.AppendRow(table.Row{"Started", run.StartedAt.Local().Format(time.DateTime)})
		if !run.CompletedAt.IsZero() {
			t.AppendRow(table.Row{"Completed", run.CompletedAt.Local().Format(time.DateTime)})
		}
		t.AppendRow(table.Row{"Scanned", run.Counters.Scanned})
		t.AppendRow(table.Row{"Created", run.Counters.Created})
		t.AppendRow(table.Row{"Updated", run.Counters.Updated})
		t.AppendRow(table.Row{"Blocked", run.Counters.Blocked})
		t.AppendRow(table.Row{"Skipped", run.Counters.Skipped})
		t.AppendRow(table.Row{"Errored", run.Counters.Errored})
		if run.ErrorSummary != "" {
			t.AppendRow(table.Row{"Errors", run.ErrorSummary})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}

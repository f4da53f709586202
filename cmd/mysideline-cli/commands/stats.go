package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"oldmanfooty-backend/services/mysideline/db"
)

var statsWindow *int

func init() {
	statsWindow = statsCmd.Flags().Int("window", 30, "The stats window in days.")
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats [--window <days>]",
	Short: "Prints aggregate ingestion stats over a window.",
	Run: func(cmd *cobra.Command, args []string) {
		var stats db.Stats
		err := getJson(cmd.Context(),
			fmt.Sprintf("/v1/sync/stats?window_days=%d", *statsWindow), &stats)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendRow(table.Row{"Window", fmt.Sprintf("%d days", stats.WindowDays)})
		t.AppendRow(table.Row{"Total Runs", stats.Total})
		t.AppendRow(table.Row{"Successful", stats.Successful})
		t.AppendRow(table.Row{"Failed", stats.Failed})
		t.AppendRow(table.Row{"Success Rate", fmt.Sprintf("%.1f%%", stats.SuccessRate*100)})
		if stats.LastSuccess != nil {
			t.AppendRow(table.Row{"Last Success", stats.LastSuccess.Local().Format(time.DateTime)})
		}
		if stats.LastFailure != nil {
			t.AppendRow(table.Row{"Last Failure", stats.LastFailure.Local().Format(time.DateTime)})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}

package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(triggerCmd)
}

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Starts an ingestion run now.",
	Run: func(cmd *cobra.Command, args []string) {
		res, err := client().R().
			SetContext(cmd.Context()).
			Post("/v1/sync/trigger")
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}

		var result struct {
			Accepted      bool   `json:"accepted"`
			Reason        string `json:"reason"`
			CorrelationId string `json:"correlationId"`
		}
		err = json.Unmarshal(res.Body(), &result)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}

		if result.Accepted {
			fmt.Println("run started:", result.CorrelationId)
			return
		}
		fmt.Println("not started:", result.Reason)
		if result.CorrelationId != "" {
			fmt.Println("running run:", result.CorrelationId)
		}
		os.Exit(1)
	},
}

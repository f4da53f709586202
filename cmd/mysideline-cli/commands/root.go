package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mysideline-cli",
	Short: "mysideline-cli inspects and controls the MySideline ingestion pipeline.",
}

var addr *string

func init() {
	addr = rootCmd.PersistentFlags().String(
		"addr", "http://localhost:8330", "The address of the mysideline daemon.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func client() *resty.Client {
	return resty.New().SetBaseURL(*addr)
}

// getJson fetches path and decodes the response body into out. Non-2xx
// responses surface the daemon's error message.
func getJson(ctx context.Context, path string, out any) error {
	res, err := client().R().SetContext(ctx).Get(path)
	if err != nil {
		return err
	}
	if res.IsError() {
		return apiError(res.Body())
	}
	return json.Unmarshal(res.Body(), out)
}

func apiError(body []byte) error {
	var parsed struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Error != "" {
		return fmt.Errorf("daemon: %s", parsed.Error)
	}
	return fmt.Errorf("daemon: %s", string(body))
}

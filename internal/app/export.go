package app

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

var exportType string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a backup document from a running server",
	Long: `Fetch a backup document and write it to stdout. Boss exports carry
records, patrol log, statistics, and the scan region; webhook exports
carry the webhook configuration.`,
	Example: `  bosswatch export --type boss > boss-backup.json
  bosswatch export --type webhook > webhooks.json`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportType, "type", "boss", "backup type: boss or webhook")
	RootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	client := newAPIClient()
	data, err := client.do(http.MethodGet, "/v1/backup/export?type="+exportType, nil)
	if err != nil {
		return err
	}
	if _, err := os.Stdout.Write(data); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	return nil
}

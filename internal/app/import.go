package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import a backup document into a running server",
	Long: `Read a backup document from a file (or stdin when no file is given)
and apply it. Boss backups merge into existing state; importing the same
export twice is a no-op. Webhook backups replace the configuration.`,
	Example: `  bosswatch import boss-backup.json
  cat webhooks.json | bosswatch import`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImport,
}

func init() {
	RootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	var (
		raw []byte
		err error
	)
	if len(args) == 1 {
		raw, err = os.ReadFile(args[0])
	} else {
		raw, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}

	client := newAPIClient()
	req, err := http.NewRequest(http.MethodPost, client.base+"/v1/backup/import", bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("import: %s", apiErrorMessage(resp.StatusCode, body))
	}

	var result struct {
		Type    string `json:"type"`
		Applied bool   `json:"applied"`
		Skipped string `json:"skipped"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return err
	}
	if !result.Applied {
		fmt.Printf("skipped %s import: %s\n", result.Type, result.Skipped)
		return nil
	}
	fmt.Printf("imported %s backup\n", result.Type)
	return nil
}

package app

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/bosswatch/bosswatch/internal/tracker"
)

var (
	recordBoss    string
	recordChannel string
	recordMap     string
	recordTime    string
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a boss kill against a running server",
	Example: `  # Kill just now
  bosswatch record --boss 巴洛古 --channel 3

  # Kill at 13:50, specific map of a multi-map boss
  bosswatch record --boss 殭屍猴王 --channel CH07 --map 7-1 --time 1350`,
	RunE: runRecord,
}

func init() {
	recordCmd.Flags().StringVar(&recordBoss, "boss", "", "boss name (required)")
	recordCmd.Flags().StringVar(&recordChannel, "channel", "", "channel (required)")
	recordCmd.Flags().StringVar(&recordMap, "map", "", "map selection for multi-map bosses")
	recordCmd.Flags().StringVar(&recordTime, "time", "", "kill time, e.g. 1350 or 13:50 (default: now)")
	_ = recordCmd.MarkFlagRequired("boss")
	_ = recordCmd.MarkFlagRequired("channel")
	RootCmd.AddCommand(recordCmd)
}

func runRecord(cmd *cobra.Command, args []string) error {
	client := newAPIClient()
	data, err := client.do(http.MethodPost, "/v1/records", map[string]string{
		"bossName": recordBoss,
		"channel":  recordChannel,
		"map":      recordMap,
		"killTime": recordTime,
	})
	if err != nil {
		return err
	}
	var rec tracker.ClassifiedRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	fmt.Printf("recorded %s ch%s, respawn %s ~ %s\n",
		rec.BossName, rec.Channel,
		rec.WindowStart.Local().Format("15:04"),
		rec.WindowEnd.Local().Format("15:04"))
	return nil
}

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"liveserve/internal/model"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "View server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Get(serverURL("/_liveserve/status"))
		if err != nil {
			return fmt.Errorf("server not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		var snap model.StatusSnapshot
		if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
			return fmt.Errorf("failed to decode status response: %w", err)
		}

		lastReload := "-"
		if snap.LastReload != nil {
			lastReload = snap.LastReload.Format("2006-01-02 15:04:05")
		}

		watching := "yes"
		if !snap.Watching {
			watching = "no"
		}

		fmt.Printf("%-12s %s\n", "ROOT", snap.Root)
		fmt.Printf("%-12s %s\n", "ADDR", snap.Addr)
		fmt.Printf("%-12s %s\n", "UPTIME", time.Since(snap.StartedAt).Round(time.Second))
		fmt.Printf("%-12s %s\n", "WATCHING", watching)
		fmt.Printf("%-12s %d\n", "CLIENTS", snap.Clients)
		fmt.Printf("%-12s %d\n", "RELOADS", snap.Reloads)
		fmt.Printf("%-12s %s\n", "LAST RELOAD", lastReload)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

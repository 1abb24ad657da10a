package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"liveserve/internal/model"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var historyN int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View recent reloads",
	RunE: func(cmd *cobra.Command, args []string) error {
		url := fmt.Sprintf("%s?n=%d", serverURL("/_liveserve/history"), historyN)
		resp, err := http.Get(url)
		if err != nil {
			return fmt.Errorf("server not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		if resp.StatusCode == http.StatusNotFound {
			fmt.Println("history is disabled")
			return nil
		}

		var records []model.ReloadRecord
		if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
			return err
		}

		if len(records) == 0 {
			fmt.Println("no reloads yet")
			return nil
		}

		reload := color.New(color.FgYellow)
		css := color.New(color.FgCyan)

		for _, r := range records {
			kind := reload.Sprintf("%-9s", r.Kind)
			if r.Kind == model.MessageCSSUpdate {
				kind = css.Sprintf("%-9s", r.Kind)
			}

			fmt.Printf("[%s] %s %3d events  %3d clients  %s\n",
				r.SentAt.Format("2006-01-02 15:04:05"),
				kind,
				r.Events,
				r.Clients,
				r.Path,
			)
		}

		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyN, "n", "n", 20, "number of history entries to show")
	rootCmd.AddCommand(historyCmd)
}

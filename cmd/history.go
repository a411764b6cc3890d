package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ColonelBlimp/lightmorse/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently decoded text and transmissions",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "number of entries to show")
	historyCmd.Flags().Bool("transmissions", false, "show transmissions instead of decodes")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	if s.HistoryDB == "" {
		return errors.New("history_db is not configured")
	}
	db, err := store.Open(s.HistoryDB)
	if err != nil {
		return err
	}
	defer db.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

	if tx, _ := cmd.Flags().GetBool("transmissions"); tx {
		reports, err := db.RecentTransmissions(limit)
		if err != nil {
			return err
		}
		for _, r := range reports {
			status := "sent"
			if r.Canceled {
				status = "cancelled"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%q\n", r.Started.Format(time.DateTime), status, r.Morse, r.Text)
		}
		return w.Flush()
	}

	decodes, err := db.RecentDecodes(limit)
	if err != nil {
		return err
	}
	for _, d := range decodes {
		fmt.Fprintf(w, "%s\t%s\t%s\t%q\n", d.At.Format(time.DateTime), d.Reason, d.Morse, d.Text)
	}
	return w.Flush()
}

package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/ogulcanaydogan/powermon/pkg/model"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored readings",
	Long:  `List stored balance readings, newest first.`,
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of readings")
	historyCmd.Flags().Duration("since", 0, "Only readings newer than this (e.g. 24h)")
	historyCmd.Flags().Bool("today", false, "Only readings from today")
	historyCmd.Flags().String("room", "", "Filter by room ID")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	limit, _ := cmd.Flags().GetInt("limit")
	since, _ := cmd.Flags().GetDuration("since")
	today, _ := cmd.Flags().GetBool("today")
	room, _ := cmd.Flags().GetString("room")

	filter := model.ReadingFilter{RoomID: room, Limit: limit}
	now := time.Now().In(loc)
	switch {
	case today:
		filter.StartTime, filter.EndTime = model.DayBounds(now)
	case since > 0:
		filter.StartTime = now.Add(-since)
	}

	store, err := initStorage(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	readings, err := store.ListReadings(cmd.Context(), filter)
	if err != nil {
		return fmt.Errorf("list readings: %w", err)
	}
	out := cmd.OutOrStdout()
	if len(readings) == 0 {
		fmt.Fprintln(out, "No readings stored.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "TIMESTAMP\tROOM\tMONEY (CNY)\tENERGY (kWh)\n")
	for _, r := range readings {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			r.Timestamp.In(loc).Format("2006-01-02 15:04"),
			r.RoomDisplayName,
			r.RemainingMoney.StringFixed(2),
			r.RemainingEnergy.StringFixed(2),
		)
	}
	return w.Flush()
}

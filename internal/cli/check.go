package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/ogulcanaydogan/powermon/pkg/alerts"
	"github.com/ogulcanaydogan/powermon/pkg/model"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a single poll cycle",
	Long: `Fetch the current balance once, store it, and dispatch whatever the
notification engine decides. Engine state starts empty, so a heartbeat is
sent when run during the heartbeat hour.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := initApp(cmd.Context(), cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	cycle, err := a.monitor.Poll(cmd.Context())
	if cycle.Reading != nil {
		printReading(out, cycle.Reading)
	} else if err == nil {
		fmt.Fprintln(out, "No data available.")
	}
	if len(cycle.Outcomes) > 0 {
		fmt.Fprintln(out)
		printOutcomes(out, cycle.Outcomes)
	}
	return err
}

func printReading(out io.Writer, r *model.Reading) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Room:\t%s\n", r.RoomDisplayName)
	fmt.Fprintf(w, "Remaining money:\t%s CNY\n", r.RemainingMoney.StringFixed(2))
	fmt.Fprintf(w, "Remaining energy:\t%s kWh\n", r.RemainingEnergy.StringFixed(2))
	fmt.Fprintf(w, "Fetched at:\t%s\n", r.Timestamp.Format("2006-01-02 15:04:05"))
	w.Flush()
}

func printOutcomes(out io.Writer, outcomes []alerts.Outcome) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "EVENT\tCHANNEL\tATTEMPTS\tRESULT\n")
	for _, o := range outcomes {
		result := "ok"
		if o.Err != nil {
			result = o.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", o.Event.Kind, o.Channel, o.Attempts, result)
	}
	w.Flush()
}

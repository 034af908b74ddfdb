package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ogulcanaydogan/powermon/pkg/alerts"
	"github.com/ogulcanaydogan/powermon/pkg/model"
	"github.com/ogulcanaydogan/powermon/pkg/storage"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Manage notification channels",
}

var notifyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a test notification to every configured channel",
	Long: `Send a heartbeat-style test event to every active channel and report the
outcome per channel. The latest stored reading is used when there is one.`,
	RunE: runNotifyTest,
}

var notifyChannelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "List the channels that would be active",
	RunE:  runNotifyChannels,
}

func init() {
	rootCmd.AddCommand(notifyCmd)
	notifyCmd.AddCommand(notifyTestCmd)
	notifyCmd.AddCommand(notifyChannelsCmd)
}

func runNotifyTest(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	sinks := initSinks(cmd.Context(), cfg, loc, logger)
	if sinks.Len() == 0 {
		return errors.New("no notification channels configured")
	}

	reading := sampleReading(loc)
	if store, err := initStorage(cmd.Context(), cfg); err == nil {
		if latest, err := store.LatestReading(cmd.Context()); err == nil {
			reading = latest
		} else if !errors.Is(err, storage.ErrNotFound) {
			logger.Warn("load latest reading", "error", err)
		}
		store.Close()
	}

	dispatcher := alerts.NewDispatcher(sinks.Sinks(), cfg.RetryPolicy(), logger)
	event := alerts.Heartbeat(reading, time.Now().In(loc))
	outcomes := dispatcher.Dispatch(cmd.Context(), []alerts.Event{event})

	printOutcomes(cmd.OutOrStdout(), outcomes)

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d channels failed", failed, len(outcomes))
	}
	return nil
}

func runNotifyChannels(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	sinks := initSinks(cmd.Context(), cfg, loc, newLogger(cfg))
	if sinks.Len() == 0 {
		fmt.Fprintln(out, "No active channels.")
		return nil
	}
	for _, kind := range sinks.Kinds() {
		fmt.Fprintln(out, kind)
	}
	return nil
}

// sampleReading stands in when nothing has been stored yet.
func sampleReading(loc *time.Location) *model.Reading {
	return &model.Reading{
		ID:              uuid.NewString(),
		RemainingMoney:  decimal.RequireFromString("42.50"),
		RemainingEnergy: decimal.RequireFromString("85.00"),
		RoomDisplayName: "Test room",
		Timestamp:       time.Now().In(loc),
	}
}

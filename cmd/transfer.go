package cmd

import (
	"fmt"
	"time"

	"github.com/marcus/cadence/internal/config"
	"github.com/marcus/cadence/internal/db"
	"github.com/marcus/cadence/internal/transfer"
	"github.com/spf13/cobra"
)

var transferCmd = &cobra.Command{
	Use:     "transfer [source-iteration-id] [destination-iteration-id]",
	Short:   "Close out an iteration and carry unfinished items forward",
	GroupID: "core",
	Long: `Freeze the source iteration's progress snapshot and move its unfinished
items (backlog, unstarted, started) to the destination. Completed and
cancelled items stay behind on the source as historical record.

The source must already be over; the destination must still be open.

Examples:
  cadence transfer it-3f2a91c4 it-77b02d11`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := getBaseDir()

		database, err := db.Open(dir)
		if err != nil {
			return err
		}
		defer database.Close()

		sourceID := db.NormalizeIterationID(args[0])
		destID := db.NormalizeIterationID(args[1])

		source, err := database.GetIteration(sourceID)
		if err != nil {
			return err
		}

		cfg, err := config.Load(dir)
		if err != nil {
			return err
		}

		orch := transfer.New(database, buildSink(cfg))
		result, err := orch.Transfer(cmd.Context(), transfer.Request{
			ScopeID:       source.ScopeID,
			SourceID:      sourceID,
			DestinationID: destID,
			ActorID:       cfg.ActorID,
		}, time.Now().UTC())
		if err != nil {
			return err
		}

		fmt.Printf("Carried over %d item(s); snapshot froze %d total (%d completed, %d cancelled)\n",
			result.Moved, result.Snapshot.TotalIssues, result.Snapshot.CompletedIssues, result.Snapshot.CancelledIssues)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(transferCmd)
}

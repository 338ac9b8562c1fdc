package cmd

import (
	"fmt"
	"time"

	"github.com/marcus/cadence/internal/db"
	"github.com/marcus/cadence/internal/lifecycle"
	"github.com/spf13/cobra"
)

var archiveCmd = &cobra.Command{
	Use:     "archive [iteration-id]",
	Short:   "Archive a completed iteration",
	GroupID: "core",
	Long: `Archive an iteration whose derived status is completed. Archiving also
removes any bookmarks pointing at it. Draft iterations can never be archived.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := getBaseDir()

		database, err := db.Open(dir)
		if err != nil {
			return err
		}
		defer database.Close()

		id := db.NormalizeIterationID(args[0])
		if err := lifecycle.New(database).ArchiveIteration(id, time.Now().UTC()); err != nil {
			return err
		}
		fmt.Printf("Archived %s\n", id)
		return nil
	},
}

var unarchiveCmd = &cobra.Command{
	Use:     "unarchive [iteration-id]",
	Short:   "Bring an archived iteration back",
	GroupID: "core",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := getBaseDir()

		database, err := db.Open(dir)
		if err != nil {
			return err
		}
		defer database.Close()

		id := db.NormalizeIterationID(args[0])
		if err := lifecycle.New(database).UnarchiveIteration(id); err != nil {
			return err
		}
		fmt.Printf("Unarchived %s\n", id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(unarchiveCmd)
}

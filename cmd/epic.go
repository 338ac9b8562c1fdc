package cmd

import (
	"fmt"
	"time"

	"github.com/marcus/cadence/internal/db"
	"github.com/marcus/cadence/internal/lifecycle"
	"github.com/marcus/cadence/internal/models"
	"github.com/spf13/cobra"
)

var epicCmd = &cobra.Command{
	Use:     "epic",
	Short:   "Manage epics",
	GroupID: "core",
	Long: `Epics carry a manually-set status. Unlike iterations, whose status is
derived from dates, an epic is archivable once it is marked completed or
cancelled.`,
}

var epicCreateCmd = &cobra.Command{
	Use:   "create [title]",
	Short: "Create a new epic",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := getBaseDir()

		database, err := db.Open(dir)
		if err != nil {
			return err
		}
		defer database.Close()

		scopeID, err := resolveScopeID(cmd, dir)
		if err != nil {
			return err
		}

		epic := &models.Epic{ScopeID: scopeID, Title: args[0]}
		if err := database.CreateEpic(epic); err != nil {
			return err
		}
		fmt.Printf("%s %s\n", epic.ID, epic.Title)
		return nil
	},
}

var epicListCmd = &cobra.Command{
	Use:   "list",
	Short: "List epics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := getBaseDir()

		database, err := db.Open(dir)
		if err != nil {
			return err
		}
		defer database.Close()

		scopeID, err := resolveScopeID(cmd, dir)
		if err != nil {
			return err
		}

		epics, err := database.ListEpics(scopeID)
		if err != nil {
			return err
		}
		if len(epics) == 0 {
			fmt.Println("No epics found")
			return nil
		}
		for _, epic := range epics {
			archived := ""
			if epic.ArchivedAt != nil {
				archived = " [archived]"
			}
			fmt.Printf("%s [%s] %s%s\n", epic.ID, epic.Status, epic.Title, archived)
		}
		return nil
	},
}

var epicStatusCmd = &cobra.Command{
	Use:   "status [epic-id] [status]",
	Short: "Set an epic's status (backlog, started, completed, cancelled)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := getBaseDir()

		database, err := db.Open(dir)
		if err != nil {
			return err
		}
		defer database.Close()

		if err := database.SetEpicStatus(args[0], models.EpicStatus(args[1])); err != nil {
			return err
		}
		fmt.Printf("%s -> %s\n", args[0], args[1])
		return nil
	},
}

var epicArchiveCmd = &cobra.Command{
	Use:   "archive [epic-id]",
	Short: "Archive a completed or cancelled epic",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := getBaseDir()

		database, err := db.Open(dir)
		if err != nil {
			return err
		}
		defer database.Close()

		if err := lifecycle.New(database).ArchiveEpic(args[0], time.Now().UTC()); err != nil {
			return err
		}
		fmt.Printf("Archived %s\n", args[0])
		return nil
	},
}

var epicUnarchiveCmd = &cobra.Command{
	Use:   "unarchive [epic-id]",
	Short: "Bring an archived epic back",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := getBaseDir()

		database, err := db.Open(dir)
		if err != nil {
			return err
		}
		defer database.Close()

		if err := lifecycle.New(database).UnarchiveEpic(args[0]); err != nil {
			return err
		}
		fmt.Printf("Unarchived %s\n", args[0])
		return nil
	},
}

func init() {
	epicCreateCmd.Flags().String("scope", "", "scope id (defaults to active scope)")
	epicListCmd.Flags().String("scope", "", "scope id (defaults to active scope)")

	epicCmd.AddCommand(epicCreateCmd)
	epicCmd.AddCommand(epicListCmd)
	epicCmd.AddCommand(epicStatusCmd)
	epicCmd.AddCommand(epicArchiveCmd)
	epicCmd.AddCommand(epicUnarchiveCmd)
	rootCmd.AddCommand(epicCmd)
}

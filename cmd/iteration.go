package cmd

import (
	"fmt"
	"time"

	"github.com/marcus/cadence/internal/db"
	"github.com/marcus/cadence/internal/models"
	"github.com/marcus/cadence/internal/registry"
	"github.com/marcus/cadence/internal/snapshot"
	"github.com/spf13/cobra"
)

var iterationCmd = &cobra.Command{
	Use:     "iteration",
	Short:   "Manage iterations",
	GroupID: "core",
	Long: `Iterations are provisioned automatically on a fixed 14-day cadence.
Listing a scope backfills any missing iterations before printing them.`,
}

var iterationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List iterations (provisions missing ones first)",
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

		lookahead, _ := cmd.Flags().GetInt("lookahead")
		now := time.Now().UTC()

		iterations, err := registry.New(database).List(scopeID, lookahead, now)
		if err != nil {
			return err
		}

		for _, it := range iterations {
			status := models.ResolveStatus(it.StartAt, it.EndAt, now)
			dates := "unscheduled"
			if it.StartAt != nil {
				dates = fmt.Sprintf("%s .. %s",
					it.StartAt.In(mustLocation(it.Timezone)).Format("2006-01-02"),
					it.EndAt.In(mustLocation(it.Timezone)).Format("2006-01-02"))
			}
			archived := ""
			if it.ArchivedAt != nil {
				archived = " [archived]"
			}
			fmt.Printf("#%-3d %s [%s] %s%s\n", it.Number, it.ID, status, dates, archived)
		}
		return nil
	},
}

var iterationCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a manually-dated iteration",
	Long: `Create an iteration outside the automatic cadence. It still occupies the
next number in the scope's sequence. Omit both dates for a draft.

Examples:
  cadence iteration create --title "Hardening" --start 2026-09-07 --end 2026-09-18
  cadence iteration create --title "Someday"`,
	Args: cobra.NoArgs,
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

		title, _ := cmd.Flags().GetString("title")
		startStr, _ := cmd.Flags().GetString("start")
		endStr, _ := cmd.Flags().GetString("end")

		var startDate, endDate *time.Time
		if startStr != "" {
			t, err := time.Parse("2006-01-02", startStr)
			if err != nil {
				return fmt.Errorf("invalid --start: %w", err)
			}
			startDate = &t
		}
		if endStr != "" {
			t, err := time.Parse("2006-01-02", endStr)
			if err != nil {
				return fmt.Errorf("invalid --end: %w", err)
			}
			endDate = &t
		}

		it, err := registry.New(database).CreateManual(scopeID, title, startDate, endDate)
		if err != nil {
			return err
		}
		fmt.Printf("#%d %s %s\n", it.Number, it.ID, it.Title)
		return nil
	},
}

var iterationShowCmd = &cobra.Command{
	Use:   "show [iteration-id]",
	Short: "Show an iteration, its items, and its frozen snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := getBaseDir()

		database, err := db.Open(dir)
		if err != nil {
			return err
		}
		defer database.Close()

		it, err := database.GetIteration(db.NormalizeIterationID(args[0]))
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		status := models.ResolveStatus(it.StartAt, it.EndAt, now)
		fmt.Printf("#%d %s [%s] %s\n", it.Number, it.ID, status, it.Title)
		if it.StartAt != nil {
			loc := mustLocation(it.Timezone)
			fmt.Printf("  %s .. %s (%s)\n",
				it.StartAt.In(loc).Format("2006-01-02"), it.EndAt.In(loc).Format("2006-01-02"), it.Timezone)
		}

		items, err := database.FindItemsByMembership(it.ID)
		if err != nil {
			return err
		}
		for _, item := range items {
			fmt.Printf("  %s [%s] %s\n", item.ID, item.StateGroup, item.Title)
		}

		snap, frozen, err := snapshot.Unmarshal(it.ProgressSnapshot)
		if err != nil {
			return err
		}
		if frozen {
			fmt.Printf("  snapshot: %d total, %d completed, %d cancelled\n",
				snap.TotalIssues, snap.CompletedIssues, snap.CancelledIssues)
		}
		return nil
	},
}

var iterationAddCmd = &cobra.Command{
	Use:   "add [iteration-id] [item-id...]",
	Short: "Link work items to an iteration",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := getBaseDir()

		database, err := db.Open(dir)
		if err != nil {
			return err
		}
		defer database.Close()

		iterationID := db.NormalizeIterationID(args[0])
		itemIDs := make([]string, 0, len(args)-1)
		for _, raw := range args[1:] {
			itemIDs = append(itemIDs, db.NormalizeItemID(raw))
		}

		moves, err := registry.New(database).AddItems(iterationID, itemIDs, time.Now().UTC())
		if err != nil {
			return err
		}
		fmt.Printf("Linked %d item(s)", len(itemIDs))
		if len(moves) > 0 {
			fmt.Printf(" (%d moved from another iteration)", len(moves))
		}
		fmt.Println()
		return nil
	},
}

var iterationRemoveCmd = &cobra.Command{
	Use:   "remove [iteration-id] [item-id]",
	Short: "Unlink a work item from an iteration",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := getBaseDir()

		database, err := db.Open(dir)
		if err != nil {
			return err
		}
		defer database.Close()

		iterationID := db.NormalizeIterationID(args[0])
		itemID := db.NormalizeItemID(args[1])
		if err := database.UnlinkMembership(iterationID, itemID); err != nil {
			return err
		}
		fmt.Printf("Unlinked %s from %s\n", itemID, iterationID)
		return nil
	},
}

func mustLocation(tz string) *time.Location {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

func init() {
	iterationListCmd.Flags().Int("lookahead", registry.DefaultLookahead, "future iterations to keep provisioned")
	iterationListCmd.Flags().String("scope", "", "scope id (defaults to active scope)")
	iterationCreateCmd.Flags().String("title", "", "iteration title")
	iterationCreateCmd.Flags().String("start", "", "start date (YYYY-MM-DD, scope-local)")
	iterationCreateCmd.Flags().String("end", "", "end date (YYYY-MM-DD, scope-local)")
	iterationCreateCmd.Flags().String("scope", "", "scope id (defaults to active scope)")

	iterationCmd.AddCommand(iterationListCmd)
	iterationCmd.AddCommand(iterationCreateCmd)
	iterationCmd.AddCommand(iterationShowCmd)
	iterationCmd.AddCommand(iterationAddCmd)
	iterationCmd.AddCommand(iterationRemoveCmd)
	rootCmd.AddCommand(iterationCmd)
}

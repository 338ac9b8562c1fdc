package cmd

import (
	"fmt"
	"strings"

	"github.com/marcus/cadence/internal/db"
	"github.com/marcus/cadence/internal/models"
	"github.com/spf13/cobra"
)

var itemCmd = &cobra.Command{
	Use:     "item",
	Short:   "Manage work items",
	GroupID: "core",
}

var itemAddCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Create a work item",
	Long: `Create a work item in the active scope.

Examples:
  cadence item add "Fix login redirect" --points 3 --label auth,bug
  cadence item add "Spike: retention queries" --draft`,
	Args: cobra.ExactArgs(1),
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

		points, _ := cmd.Flags().GetInt("points")
		isDraft, _ := cmd.Flags().GetBool("draft")
		labels, _ := cmd.Flags().GetString("label")
		assignees, _ := cmd.Flags().GetString("assignee")

		item := &models.Item{
			ScopeID: scopeID,
			Title:   args[0],
			Points:  points,
			IsDraft: isDraft,
		}
		if labels != "" {
			item.Labels = strings.Split(labels, ",")
		}
		if assignees != "" {
			item.Assignees = strings.Split(assignees, ",")
		}

		if err := database.CreateItem(item); err != nil {
			return err
		}
		fmt.Printf("%s %s\n", item.ID, item.Title)
		return nil
	},
}

var itemListCmd = &cobra.Command{
	Use:   "list",
	Short: "List work items in the active scope",
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

		items, err := database.ListItems(scopeID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("No items found")
			return nil
		}
		for _, item := range items {
			draft := ""
			if item.IsDraft {
				draft = " (draft)"
			}
			fmt.Printf("%s [%s] %s%s\n", item.ID, item.StateGroup, item.Title, draft)
		}
		return nil
	},
}

var itemStateCmd = &cobra.Command{
	Use:   "state [item-id] [state-group]",
	Short: "Set a work item's state group",
	Long: `Set a work item's state group: backlog, unstarted, started, completed, cancelled.

The fine-grained state can be set separately with --state; it defaults to the
group name.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := getBaseDir()

		database, err := db.Open(dir)
		if err != nil {
			return err
		}
		defer database.Close()

		itemID := db.NormalizeItemID(args[0])
		group := models.StateGroup(args[1])
		state, _ := cmd.Flags().GetString("state")
		if state == "" {
			state = string(group)
		}

		if err := database.UpdateItemState(itemID, state, group); err != nil {
			return err
		}
		fmt.Printf("%s -> %s\n", itemID, group)
		return nil
	},
}

func init() {
	itemAddCmd.Flags().Int("points", 0, "effort points")
	itemAddCmd.Flags().Bool("draft", false, "create as draft")
	itemAddCmd.Flags().String("label", "", "comma-separated labels")
	itemAddCmd.Flags().String("assignee", "", "comma-separated assignees")
	itemAddCmd.Flags().String("scope", "", "scope id (defaults to active scope)")
	itemListCmd.Flags().String("scope", "", "scope id (defaults to active scope)")
	itemStateCmd.Flags().String("state", "", "fine-grained state name")

	itemCmd.AddCommand(itemAddCmd)
	itemCmd.AddCommand(itemListCmd)
	itemCmd.AddCommand(itemStateCmd)
	rootCmd.AddCommand(itemCmd)
}

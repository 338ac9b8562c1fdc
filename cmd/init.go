package cmd

import (
	"fmt"

	"github.com/marcus/cadence/internal/config"
	"github.com/marcus/cadence/internal/db"
	"github.com/marcus/cadence/internal/models"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:     "init",
	Short:   "Initialize a cadence workspace in the current directory",
	GroupID: "admin",
	Long: `Create the .cadence database and a first scope.

Examples:
  cadence init --scope "Platform" --timezone America/New_York
  cadence init`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := getBaseDir()

		database, err := db.Initialize(dir)
		if err != nil {
			return err
		}
		defer database.Close()

		name, _ := cmd.Flags().GetString("scope")
		tz, _ := cmd.Flags().GetString("timezone")

		if name != "" {
			scope := &models.Scope{Name: name, Timezone: tz}
			if err := database.CreateScope(scope); err != nil {
				return err
			}
			if err := config.SetActiveScope(dir, scope.ID); err != nil {
				return err
			}
			fmt.Printf("Initialized workspace with scope %s (%s, %s)\n", scope.ID, scope.Name, scope.Timezone)
			return nil
		}

		fmt.Println("Initialized workspace. Create a scope with 'cadence scope create'.")
		return nil
	},
}

func init() {
	initCmd.Flags().String("scope", "", "create an initial scope with this name")
	initCmd.Flags().String("timezone", "UTC", "IANA timezone for the initial scope")
	rootCmd.AddCommand(initCmd)
}

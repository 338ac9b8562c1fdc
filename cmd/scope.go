package cmd

import (
	"fmt"

	"github.com/marcus/cadence/internal/config"
	"github.com/marcus/cadence/internal/db"
	"github.com/marcus/cadence/internal/models"
	"github.com/spf13/cobra"
)

var scopeCmd = &cobra.Command{
	Use:     "scope",
	Short:   "Manage scopes",
	GroupID: "core",
	Long:    `A scope owns a numbered run of iterations and defines their timezone.`,
}

var scopeCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a new scope",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := getBaseDir()

		database, err := db.Open(dir)
		if err != nil {
			return err
		}
		defer database.Close()

		tz, _ := cmd.Flags().GetString("timezone")
		scope := &models.Scope{Name: args[0], Timezone: tz}
		if err := database.CreateScope(scope); err != nil {
			return err
		}

		if use, _ := cmd.Flags().GetBool("use"); use {
			if err := config.SetActiveScope(dir, scope.ID); err != nil {
				return err
			}
		}

		fmt.Printf("%s %s (%s)\n", scope.ID, scope.Name, scope.Timezone)
		return nil
	},
}

var scopeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scopes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := getBaseDir()

		database, err := db.Open(dir)
		if err != nil {
			return err
		}
		defer database.Close()

		scopes, err := database.ListScopes()
		if err != nil {
			return err
		}
		if len(scopes) == 0 {
			fmt.Println("No scopes found")
			return nil
		}

		active, _ := config.GetActiveScope(dir)
		for _, s := range scopes {
			marker := " "
			if s.ID == active {
				marker = "*"
			}
			fmt.Printf("%s %s %s (%s)\n", marker, s.ID, s.Name, s.Timezone)
		}
		return nil
	},
}

var scopeUseCmd = &cobra.Command{
	Use:   "use [scope-id]",
	Short: "Set the default scope for subsequent commands",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := getBaseDir()

		database, err := db.Open(dir)
		if err != nil {
			return err
		}
		defer database.Close()

		scope, err := database.GetScope(args[0])
		if err != nil {
			return err
		}

		if err := config.SetActiveScope(dir, scope.ID); err != nil {
			return err
		}
		fmt.Printf("Using scope %s (%s)\n", scope.ID, scope.Name)
		return nil
	},
}

// resolveScopeID returns the --scope flag value if given, otherwise the
// configured active scope.
func resolveScopeID(cmd *cobra.Command, dir string) (string, error) {
	if flag := cmd.Flags().Lookup("scope"); flag != nil && flag.Value.String() != "" {
		return flag.Value.String(), nil
	}
	scopeID, err := config.GetActiveScope(dir)
	if err != nil {
		return "", err
	}
	if scopeID == "" {
		return "", fmt.Errorf("no scope selected: pass --scope or run 'cadence scope use'")
	}
	return scopeID, nil
}

func init() {
	scopeCreateCmd.Flags().String("timezone", "UTC", "IANA timezone for the scope")
	scopeCreateCmd.Flags().Bool("use", false, "set as the default scope")
	scopeCmd.AddCommand(scopeCreateCmd)
	scopeCmd.AddCommand(scopeListCmd)
	scopeCmd.AddCommand(scopeUseCmd)
	rootCmd.AddCommand(scopeCmd)
}

package cmd

import (
	"fmt"
	"time"

	"github.com/marcus/cadence/internal/config"
	"github.com/marcus/cadence/internal/events"
	"github.com/marcus/cadence/internal/models"
	"github.com/spf13/cobra"
)

var webhookCmd = &cobra.Command{
	Use:     "webhook",
	Short:   "Configure the audit webhook",
	GroupID: "admin",
	Long: `Audit events (carried-over items, archives) can be mirrored to an HTTP
endpoint. Delivery is fire-and-forget with bounded retries; the local audit
log is always the durable record.`,
}

var webhookSetCmd = &cobra.Command{
	Use:   "set [url]",
	Short: "Enable the webhook, pointing it at a URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, _ := cmd.Flags().GetString("secret")
		if err := config.SetWebhook(getBaseDir(), args[0], secret, true); err != nil {
			return err
		}
		fmt.Printf("Webhook enabled: %s\n", args[0])
		return nil
	},
}

var webhookDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable the webhook",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetWebhook(getBaseDir(), "", "", false); err != nil {
			return err
		}
		fmt.Println("Webhook disabled")
		return nil
	},
}

// buildSink returns the sink commands hand to the transfer orchestrator:
// the configured webhook when enabled, otherwise a debug log sink.
func buildSink(cfg *models.Config) events.Sink {
	if cfg.WebhookEnabled && cfg.WebhookURL != "" {
		return &events.WebhookSink{
			URL:        cfg.WebhookURL,
			Secret:     cfg.WebhookSecret,
			MaxElapsed: 5 * time.Second,
		}
	}
	return events.LogSink{}
}

func init() {
	webhookSetCmd.Flags().String("secret", "", "HMAC secret for signing payloads")
	webhookCmd.AddCommand(webhookSetCmd)
	webhookCmd.AddCommand(webhookDisableCmd)
	rootCmd.AddCommand(webhookCmd)
}

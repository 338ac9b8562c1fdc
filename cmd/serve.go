package cmd

import (
	"fmt"

	"github.com/marcus/cadence/internal/config"
	"github.com/marcus/cadence/internal/db"
	"github.com/marcus/cadence/internal/serve"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Run the local HTTP API",
	GroupID: "admin",
	Long: `Serve the iteration engine over HTTP for local tooling and reporting UIs.

Examples:
  cadence serve --port 7317
  cadence serve --port 7317 --token s3cret`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := getBaseDir()

		database, err := db.Open(dir)
		if err != nil {
			return err
		}
		defer database.Close()

		// Long-running process; keep the pool from growing past SQLite's
		// single-writer reality.
		database.SetMaxOpenConns(1)

		cfg, err := config.Load(dir)
		if err != nil {
			return err
		}

		port, _ := cmd.Flags().GetInt("port")
		addr, _ := cmd.Flags().GetString("addr")
		token, _ := cmd.Flags().GetString("token")
		cors, _ := cmd.Flags().GetString("cors-origin")

		server := serve.NewServer(database, buildSink(cfg), serve.ServeConfig{
			Port:       port,
			Addr:       addr,
			Token:      token,
			CORSOrigin: cors,
		})

		fmt.Printf("Listening on %s:%d\n", addr, port)
		return server.ListenAndServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().Int("port", 7317, "port to listen on")
	serveCmd.Flags().String("addr", "127.0.0.1", "address to bind")
	serveCmd.Flags().String("token", "", "bearer token required on every request")
	serveCmd.Flags().String("cors-origin", "", "value for Access-Control-Allow-Origin")
	rootCmd.AddCommand(serveCmd)
}

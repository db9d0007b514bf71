// Package main provides the entry point for the parts dashboard CLI and HTTP API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath  string
	databaseURL string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "parts_dashboard",
	Short: "Field Requires Parts dashboard",
	Long: `Tracks Zuper field-service jobs that are waiting for parts in Europe.

Jobs are synced from the Zuper API into a local SQLite or Postgres store and
can be browsed, looked up in bulk and queried in natural language, either from
this CLI or through the REST API started by "serve".

Configuration is read from a TOML file (--config) and then from environment
variables such as ZUPER_API_KEY, DATABASE_URL and GEMINI_API_KEY.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a TOML config file")
	rootCmd.PersistentFlags().StringVar(&databaseURL, "db-url", "", "Database URL or SQLite path (overrides DATABASE_URL)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print debug logs")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

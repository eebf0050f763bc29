// Command supplyctl runs supply imports and location administration from
// the command line, against the store named by DATABASE_URL.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/supplysync/internal/config"
	"github.com/JonMunkholm/supplysync/internal/core"
	"github.com/JonMunkholm/supplysync/internal/logging"
	"github.com/JonMunkholm/supplysync/internal/store"
)

var (
	databaseURLFlag string
	verboseFlag     bool
)

var rootCmd = &cobra.Command{
	Use:   "supplyctl",
	Short: "Import supply spreadsheets and manage locations",
	Long: `supplyctl reconciles a supply spreadsheet (CSV or XLSX) against the
catalog and the inventory of one location.

Examples:
  supplyctl parse counts.xlsx --location L1          # Show matched rows as JSON
  supplyctl apply counts.csv --location L1 --dry-run # Show what would change
  supplyctl apply counts.csv --location L1           # Commit the counts
  supplyctl template --format xlsx -o blank.xlsx     # Write a blank import file
  supplyctl location add L1 --name "Main warehouse"  # Allow imports into L1`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Unlike the server, explicit environment variables win over .env.
		_ = godotenv.Load()

		level := os.Getenv("LOG_LEVEL")
		if verboseFlag {
			level = "debug"
		}
		// stdout carries command output
		logging.SetupWriter(os.Stderr, level, os.Getenv("LOG_FORMAT"))

		if databaseURLFlag != "" {
			return os.Setenv("DATABASE_URL", databaseURLFlag)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&databaseURLFlag, "database-url", "", "Store URL (overrides DATABASE_URL)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(parseCmd, applyCmd, templateCmd, locationCmd)
}

// openService loads configuration and opens the configured store.
// The caller must close the returned backend.
func openService(ctx context.Context) (*core.Service, store.Backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	backend, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return core.NewService(backend, cfg), backend, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		errOut := pterm.Error.WithWriter(os.Stderr)
		errOut.Println(err)
		if core.IsUserFacing(err) {
			pterm.Info.WithWriter(os.Stderr).Println(core.FormatUserError(err))
		}
		os.Exit(1)
	}
}

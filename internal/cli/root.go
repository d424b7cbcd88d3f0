package cli

import (
	"fmt"

	"github.com/eleven-am/drift/internal/logger"
	"github.com/eleven-am/drift/pkg/drift"
	"github.com/spf13/cobra"
)

// Global configuration variables
var (
	configFile  string
	driftConfig *DriftConfig
	databaseURL string
	debug       bool
	verbose     bool
)

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "drift",
		Short: "Drift - Schema Migration Engine",
		Long: `Drift computes schema migrations from snapshots of your data model
and applies them against a live database.

Drift provides tools for:
- Generating migrations by diffing schema snapshots
- Applying and rolling back migrations in dependency order
- Inspecting migration state and detecting live-schema drift`,
		Version: drift.Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			var err error
			driftConfig, err = LoadDriftConfig(configFile)
			if err != nil {
				if verbose {
					cmd.Printf("Warning: Failed to load config file: %v\n", err)
				}
			}

			if driftConfig != nil && databaseURL == "" && driftConfig.Database.URL != "" {
				databaseURL = driftConfig.Database.URL
			}

			if debug {
				logger.SetLevel("debug")
			} else if verbose {
				logger.SetLevel("info")
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: drift.yaml)")
	rootCmd.PersistentFlags().StringVar(&databaseURL, "url", "", "database connection URL")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose output")

	rootCmd.AddCommand(makemigrationsCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(showmigrationsCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(versionCmd)

	return rootCmd
}

// buildConfig merges drift.yaml values with the persistent flags into a
// client configuration.
func buildConfig() (*drift.Config, error) {
	config := drift.NewConfig()

	if driftConfig != nil {
		config.Driver = driftConfig.Database.Driver
		config.MaxConnections = driftConfig.Database.MaxConnections
		config.MigrationsDir = driftConfig.Migrations.Directory
		config.HistoryTable = driftConfig.Migrations.Table
		config.SchemaFile = driftConfig.Schema.File
		config.RenameThreshold = driftConfig.Autodetect.RenameThreshold
	}

	if databaseURL == "" {
		return nil, fmt.Errorf("database connection required: use --url or set database.url in drift.yaml")
	}
	config.DatabaseURL = databaseURL
	config.Debug = debug

	return config, nil
}

func buildClient() (*drift.Client, error) {
	config, err := buildConfig()
	if err != nil {
		return nil, err
	}
	client, err := drift.New(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create drift client: %w", err)
	}
	return client, nil
}

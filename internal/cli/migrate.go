package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/eleven-am/drift/pkg/drift"
	"github.com/spf13/cobra"
)

var (
	fakeApply     bool
	migrateDryRun bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [app_label] [migration_name]",
	Short: "Apply pending migrations",
	Long: `Apply every unapplied migration in dependency order.

With an app label and migration name, apply only up to and including
that migration. Already-applied migrations are always skipped.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&fakeApply, "fake", false, "Record migrations as applied without running their SQL")
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "Print the SQL that would run without executing it")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	target, err := targetFromArgs(args)
	if err != nil {
		return err
	}

	client, err := buildClient()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	result, err := client.Migrate(ctx, drift.MigrateOptions{
		Target: target,
		Fake:   fakeApply,
		DryRun: migrateDryRun,
	})
	if err != nil {
		return err
	}

	if migrateDryRun {
		for _, stmt := range result.Statements {
			fmt.Printf("%s;\n", stmt)
		}
		fmt.Printf("-- %d migrations would apply, %d already applied\n",
			len(result.Applied), len(result.Skipped))
		return nil
	}

	for _, ref := range result.Applied {
		fmt.Printf("Applied %s\n", ref)
	}
	if len(result.Applied) == 0 {
		fmt.Println("Nothing to apply")
	}
	return nil
}

// targetFromArgs parses the optional [app_label] [migration_name] pair.
func targetFromArgs(args []string) (*drift.MigrationRef, error) {
	switch len(args) {
	case 0:
		return nil, nil
	case 2:
		return &drift.MigrationRef{App: args[0], Name: args[1]}, nil
	default:
		return nil, fmt.Errorf("a target needs both an app label and a migration name")
	}
}

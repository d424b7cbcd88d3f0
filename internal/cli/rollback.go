package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/eleven-am/drift/pkg/drift"
	"github.com/spf13/cobra"
)

var fakeRollback bool

var rollbackCmd = &cobra.Command{
	Use:   "rollback [app_label] [migration_name]",
	Short: "Unapply migrations",
	Long: `Reverse applied migrations in reverse dependency order.

With an app label and migration name, everything applied after that
migration is unapplied and the migration itself stays. Without a
target, every applied migration is reversed.

The whole rollback is refused before any SQL runs if it would need to
reverse an irreversible operation.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runRollback,
}

func init() {
	rollbackCmd.Flags().BoolVar(&fakeRollback, "fake", false, "Delete migration records without running any SQL")
}

func runRollback(cmd *cobra.Command, args []string) error {
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

	result, err := client.Rollback(ctx, drift.RollbackOptions{Target: target, Fake: fakeRollback})
	if err != nil {
		return err
	}

	for _, ref := range result.Unapplied {
		fmt.Printf("Unapplied %s\n", ref)
	}
	if len(result.Unapplied) == 0 {
		fmt.Println("Nothing to unapply")
	}
	return nil
}

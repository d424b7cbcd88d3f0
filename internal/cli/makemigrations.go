package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/eleven-am/drift/pkg/drift"
	"github.com/spf13/cobra"
)

var (
	migrationName string
	dryRun        bool
)

var makemigrationsCmd = &cobra.Command{
	Use:   "makemigrations [app_label]",
	Short: "Generate migrations from schema changes",
	Long: `Compare the schema snapshot with the state your migration files
replay to, and write one migration file per changed app.

With an app label, only that app's changes are written.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMakeMigrations,
}

func init() {
	makemigrationsCmd.Flags().StringVar(&migrationName, "name", "", "Migration name suffix (optional)")
	makemigrationsCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print detected changes without writing files")
}

func runMakeMigrations(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Generation never touches the database; the client is still the
	// unit that owns the repository and detector configuration.
	client, err := buildClient()
	if err != nil {
		return err
	}
	defer client.Close()

	opts := drift.MakeMigrationsOptions{Name: migrationName, DryRun: dryRun}
	if len(args) == 1 {
		opts.App = args[0]
	}

	generated, err := client.MakeMigrations(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to generate migrations: %w", err)
	}

	if len(generated) == 0 {
		fmt.Println("No changes detected")
		return nil
	}

	for _, g := range generated {
		if dryRun {
			fmt.Printf("Would create %s:\n", g.Ref)
		} else {
			fmt.Printf("Created %s (%s):\n", g.Ref, g.Path)
		}
		for _, op := range g.Operations {
			fmt.Printf("  - %s\n", op)
		}
		for _, note := range g.UnsafeNotes {
			fmt.Printf("  ! %s\n", note)
		}
	}
	return nil
}

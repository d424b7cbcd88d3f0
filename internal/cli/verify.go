package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the live database against applied migrations",
	Long: `Verify that the live database schema matches the state the applied
migrations replay to.

This command reports:
- Missing or unexpected tables
- Column and type differences
- Index and foreign key differences

Returns exit code 0 if the schema matches, 1 if drift is found.`,
	RunE: runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	client, err := buildClient()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	fmt.Println("Verifying database schema...")

	result, err := client.Verify(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify schema: %w", err)
	}

	if result.InSync {
		fmt.Println("Database schema matches applied migrations")
		return nil
	}

	fmt.Printf("Schema drift detected (%d changes):\n", len(result.Changes))
	for _, change := range result.Changes {
		fmt.Printf("  - %s\n", change)
	}
	if len(result.Destructive) > 0 {
		fmt.Printf("%d of these repairs would be destructive\n", len(result.Destructive))
	}
	if verbose {
		fmt.Println("Repair SQL:")
		for _, stmt := range result.Statements {
			fmt.Printf("  %s;\n", stmt)
		}
	}
	return fmt.Errorf("database schema has drifted from applied migrations")
}

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var showmigrationsCmd = &cobra.Command{
	Use:   "showmigrations",
	Short: "List migrations and their applied state",
	Long: `List every known migration in apply order, marking applied ones
with [X] and pending ones with [ ].`,
	RunE: runShowMigrations,
}

func runShowMigrations(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client, err := buildClient()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	statuses, err := client.ShowMigrations(ctx)
	if err != nil {
		return err
	}
	if len(statuses) == 0 {
		fmt.Println("No migrations found")
		return nil
	}

	app := ""
	for _, s := range statuses {
		if s.Ref.App != app {
			app = s.Ref.App
			fmt.Printf("%s\n", app)
		}
		mark := " "
		suffix := ""
		if s.Applied {
			mark = "X"
			suffix = fmt.Sprintf("  (applied %s)", s.AppliedAt.Format(time.RFC3339))
		}
		fmt.Printf(" [%s] %s%s\n", mark, s.Ref.Name, suffix)
	}
	return nil
}

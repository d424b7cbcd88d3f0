package cli

import (
	"fmt"

	"github.com/eleven-am/drift/pkg/drift"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  "Display Drift version and build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(drift.FullVersionInfo())
	},
}

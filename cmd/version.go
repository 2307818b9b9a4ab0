package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the application version, kept as a single literal (no
// build-info/ldflags wiring).
const Version = "0.1.0"

// versionCmd shows the application version.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("frostbite-extract v%s\n", Version)
	},
}

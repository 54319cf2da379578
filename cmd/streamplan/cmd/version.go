package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/streamplan/streamplan/internal/version"
)

// versionCmd represents the version command.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print the version, commit, and build date of streamplan.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.GetInfo().String())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

package cmd

import (
	"github.com/spf13/cobra"
)

// Version is overridden from the embedded VERSION file at startup.
var Version = "dev"

var quietFlag bool

var rootCmd = &cobra.Command{
	Use:     "lumen",
	Short:   "Lumen media library organizer",
	Version: Version,
}

func Execute() error {
	return rootCmd.Execute()
}

// ApplyVersion pushes the current Version value onto the root command.
func ApplyVersion() {
	rootCmd.Version = Version
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress progress output")
}

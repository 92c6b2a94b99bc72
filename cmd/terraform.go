package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"lumen/internal"
)

var terraformCmd = &cobra.Command{
	Use:   "terraform [folder]",
	Short: "Rebuild a folder in place into canonical library layout",
	Long: `Move every media file under the given folder (the library root when
omitted) into the canonical date-based layout, normalizing metadata and
removing duplicates. Progress is journaled so an interrupted run can be
resumed by running the command again.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, cleanup, err := openLibrary()
		if err != nil {
			return err
		}
		defer cleanup()

		target := lib.Root
		if len(args) == 1 {
			target = args[0]
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		events, err := lib.Terraform(ctx, target)
		if err != nil {
			return err
		}

		stats := renderEvents(events)
		if stats.Errors > 0 {
			return fmt.Errorf("%d files failed, see %s", stats.Errors, internal.LogFileName)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(terraformCmd)
}

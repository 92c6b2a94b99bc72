package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"lumen/internal"
)

var syncRebuildFlag bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the database with the files on disk",
	Long: `Remove records whose files are gone and index untracked files found
under the library root. With --rebuild, every file is re-indexed from
scratch instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, cleanup, err := openLibrary()
		if err != nil {
			return err
		}
		defer cleanup()

		mode := internal.SyncIncremental
		if syncRebuildFlag {
			mode = internal.SyncFull
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		stats := renderEvents(lib.SyncLibrary(ctx, mode))
		if stats.Errors > 0 {
			return fmt.Errorf("%d files failed, see %s", stats.Errors, internal.LogFileName)
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncRebuildFlag, "rebuild", false, "Re-index every file from scratch")

	rootCmd.AddCommand(syncCmd)
}

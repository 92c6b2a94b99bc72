package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"lumen/internal"
)

var importCmd = &cobra.Command{
	Use:   "import [folder]",
	Short: "Import media files from a folder into the library",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		folder := args[0]

		info, err := os.Stat(folder)
		if err != nil || !info.IsDir() {
			return fmt.Errorf("folder does not exist or is not a directory: %s", folder)
		}

		lib, cleanup, err := openLibrary()
		if err != nil {
			return err
		}
		defer cleanup()

		files, err := internal.CollectMediaFiles(folder, lib.Kinds)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			fmt.Println("No media files found")
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		stats := renderEvents(lib.ImportFiles(ctx, files))
		if stats.Errors > 0 {
			return fmt.Errorf("%d files failed, see %s", stats.Errors, internal.LogFileName)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}

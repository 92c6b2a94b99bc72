package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"lumen/internal"
	"lumen/internal/model"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the inbox and import new files as they arrive",
	Long: `Watch the configured inbox directory and move every media file that
appears there into the library. Files already sitting in the inbox are
imported first. Runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, cleanup, err := openLibrary()
		if err != nil {
			return err
		}
		defer cleanup()

		if _, err := os.Stat(lib.Cfg.Inbox); err != nil {
			return fmt.Errorf("inbox %s does not exist, run 'lumen init' first", lib.Cfg.Inbox)
		}

		watcher, err := internal.NewWatcher(lib.Cfg.Inbox, lib.Kinds)
		if err != nil {
			return err
		}
		defer watcher.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// Drain whatever is already waiting before watching for more.
		backlog, err := internal.CollectMediaFiles(lib.Cfg.Inbox, lib.Kinds)
		if err != nil {
			return err
		}
		for _, f := range backlog {
			ingestWatched(ctx, lib, f)
		}

		fmt.Printf("Watching %s\n", lib.Cfg.Inbox)

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case f, ok := <-watcher.Files():
					if !ok {
						return nil
					}
					ingestWatched(ctx, lib, f)
				}
			}
		})
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case err, ok := <-watcher.Errors():
					if !ok {
						return nil
					}
					lib.Log.Error("watcher error", "error", err)
				}
			}
		})

		if err := g.Wait(); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

func ingestWatched(ctx context.Context, lib *internal.Library, path string) {
	asset, procErr := lib.IngestFile(ctx, path, internal.StageMove)
	switch {
	case procErr == nil:
		okColor.Printf("  imported: %s -> %s\n", path, asset.CurrentPath)
	case procErr.Category == model.CategoryDuplicate:
		dupColor.Printf("  duplicate: %s\n", path)
	default:
		errColor.Printf("  %s: %s (%s)\n", procErr.Category, path, procErr.Message)
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

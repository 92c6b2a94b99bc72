package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"lumen/internal"
	"lumen/internal/store"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the library and inbox directories and the database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := internal.LoadConfig()
		if err != nil {
			return err
		}

		for _, dir := range []string{conf.Library, conf.Inbox} {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create %s: %w", dir, err)
			}
		}

		db, err := store.Open(filepath.Join(conf.Library, DatabaseFileName))
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Printf("Library ready at %s\n", conf.Library)
		fmt.Printf("Inbox ready at %s\n", conf.Inbox)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}

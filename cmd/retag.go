package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"lumen/internal"
)

var (
	retagDateFlag     string
	retagModeFlag     string
	retagIntervalFlag time.Duration
)

var retagCmd = &cobra.Command{
	Use:   "retag [id]...",
	Short: "Rewrite the capture date of assets and refile them",
	Long: `Rewrite the embedded capture date of one or more assets and move
them to the canonical location for the new date.

Modes:
  same      every asset gets exactly --date
  shift     assets keep their spacing, the first one moves to --date
  sequence  assets get --date plus --interval steps in capture order`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := make([]int64, 0, len(args))
		for _, a := range args {
			id, err := strconv.ParseInt(a, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid asset id %q", a)
			}
			ids = append(ids, id)
		}

		target, err := parseUserDate(retagDateFlag)
		if err != nil {
			return err
		}

		mode := internal.RetagMode(retagModeFlag)
		switch mode {
		case internal.RetagSame, internal.RetagShift, internal.RetagSequence:
		default:
			return fmt.Errorf("invalid mode %q, want same, shift or sequence", retagModeFlag)
		}

		lib, cleanup, err := openLibrary()
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		events, err := lib.RetagAssets(ctx, ids, target, mode, retagIntervalFlag)
		if err != nil {
			return err
		}

		stats := renderEvents(events)
		if stats.Errors > 0 {
			return fmt.Errorf("%d assets failed, see %s", stats.Errors, internal.LogFileName)
		}
		return nil
	},
}

func parseUserDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD or YYYY-MM-DD HH:MM:SS", s)
}

func init() {
	retagCmd.Flags().StringVar(&retagDateFlag, "date", "", "Target capture date")
	retagCmd.Flags().StringVar(&retagModeFlag, "mode", "same", "Retag mode: same, shift or sequence")
	retagCmd.Flags().DurationVar(&retagIntervalFlag, "interval", time.Second, "Spacing between assets in sequence mode")
	retagCmd.MarkFlagRequired("date")

	rootCmd.AddCommand(retagCmd)
}

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"lumen/internal"
	"lumen/internal/model"
	"lumen/internal/store"
)

// DatabaseFileName is the SQLite file kept at the library root.
const DatabaseFileName = "library.db"

var (
	okColor  = color.New(color.FgGreen)
	dupColor = color.New(color.FgYellow)
	errColor = color.New(color.FgRed)
	dimColor = color.New(color.Faint)
)

// openLibrary loads the config, opens the library database and wires a
// Library. The returned cleanup closes everything in reverse order.
func openLibrary() (*internal.Library, func(), error) {
	conf, err := internal.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	if _, err := os.Stat(conf.Library); err != nil {
		return nil, nil, fmt.Errorf("library %s does not exist, run 'lumen init' first", conf.Library)
	}

	logger, logFile, err := internal.NewLogger(conf.Library, quietFlag)
	if err != nil {
		return nil, nil, err
	}

	db, err := store.Open(filepath.Join(conf.Library, DatabaseFileName))
	if err != nil {
		logFile.Close()
		return nil, nil, err
	}

	lib := internal.NewLibrary(conf.Library, db, conf, logger)
	cleanup := func() {
		lib.Close()
		db.Close()
		logFile.Close()
	}
	return lib, cleanup, nil
}

// renderEvents consumes an operation's event stream, printing progress
// and rejections, and returns the final stats.
func renderEvents(events <-chan internal.Event) internal.OpStats {
	var stats internal.OpStats
	for ev := range events {
		stats = ev.Stats
		if quietFlag {
			continue
		}
		switch ev.Type {
		case internal.EventStart:
			fmt.Printf("Processing %s files\n", humanize.Comma(int64(ev.Total)))
		case internal.EventProgress:
			phase := ""
			if ev.Phase != "" {
				phase = " (" + ev.Phase + ")"
			}
			dimColor.Printf("  %d/%d%s\n", ev.Current, ev.Total, phase)
		case internal.EventRejected:
			if ev.Category == model.CategoryDuplicate {
				dupColor.Printf("  duplicate: %s\n", ev.File)
			} else {
				errColor.Printf("  %s: %s (%s)\n", ev.Category, ev.File, ev.Reason)
			}
		case internal.EventComplete:
			printSummary(ev.Stats)
		}
	}
	return stats
}

func printSummary(stats internal.OpStats) {
	fmt.Println()
	if stats.Imported > 0 {
		okColor.Printf("  imported:   %d\n", stats.Imported)
	}
	if stats.Updated > 0 {
		okColor.Printf("  updated:    %d\n", stats.Updated)
	}
	if stats.Duplicates > 0 {
		dupColor.Printf("  duplicates: %d\n", stats.Duplicates)
	}
	if stats.Skipped > 0 {
		dimColor.Printf("  skipped:    %d\n", stats.Skipped)
	}
	if stats.Errors > 0 {
		errColor.Printf("  errors:     %d\n", stats.Errors)
	}
}

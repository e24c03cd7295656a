package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/martinsuchenak/fmcsweep/internal/config"
	"github.com/martinsuchenak/fmcsweep/internal/log"
	"github.com/martinsuchenak/fmcsweep/internal/report"
	"github.com/martinsuchenak/fmcsweep/internal/storage"
	"github.com/paularlott/cli"
)

func Command() *cli.Command {
	return &cli.Command{
		Name:        "history",
		Usage:       "Show recent runs from the journal",
		Description: "List cleanup and restore runs recorded in the journal, or the outcomes of a single run",
		Flags: append(config.GetFlags(),
			&cli.IntFlag{Name: "limit", Usage: "Number of runs to show", DefaultValue: 20},
			&cli.StringFlag{Name: "run", Usage: "Show the outcomes of this run ID"},
		),
		Run: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log.Configure(cfg.LogLevel, cfg.LogFormat)
			if !cfg.IsJournalEnabled() {
				return errors.New("no journal configured, use --journal or FMCSWEEP_JOURNAL")
			}

			journal, err := storage.NewStorage(cfg.JournalPath)
			if err != nil {
				return err
			}
			defer journal.Close()

			if id := cmd.GetString("run"); id != "" {
				outcomes, err := journal.ListOutcomes(id)
				if err != nil {
					return err
				}
				fmt.Print(report.Outcomes(outcomes))
				return nil
			}

			runs, err := journal.ListRuns(cmd.GetInt("limit"))
			if err != nil {
				return err
			}
			fmt.Print(report.History(runs))
			return nil
		},
	}
}

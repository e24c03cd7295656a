package inventory

import (
	"context"
	"fmt"

	"github.com/martinsuchenak/fmcsweep/internal/app"
	"github.com/martinsuchenak/fmcsweep/internal/config"
	"github.com/martinsuchenak/fmcsweep/internal/model"
	"github.com/martinsuchenak/fmcsweep/internal/prompt"
	"github.com/martinsuchenak/fmcsweep/internal/report"
	"github.com/paularlott/cli"
)

func Command() *cli.Command {
	return &cli.Command{
		Name:        "inventory",
		Usage:       "Count objects per category",
		Description: "Show how many networks, ranges, hosts and groups the controller holds, and optionally how many are unused",
		Flags: append(config.GetFlags(),
			&cli.BoolFlag{Name: "unused", Usage: "Also count unused objects"},
		),
		Run: func(ctx context.Context, cmd *cli.Command) (err error) {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			run, err := app.Start(ctx, cfg, prompt.New(false), "")
			if err != nil {
				return err
			}
			defer func() { run.Finish(err) }()

			withUnused := cmd.GetBool("unused")
			var counts []report.Count
			for _, category := range model.CleanupOrder() {
				c := report.Count{Category: category}
				if c.Total, err = run.Collector.Count(ctx, category, false); err != nil {
					return err
				}
				if withUnused {
					if c.Unused, err = run.Collector.Count(ctx, category, true); err != nil {
						return err
					}
				}
				counts = append(counts, c)
			}
			fmt.Print(report.Inventory(counts, withUnused))
			return nil
		},
	}
}

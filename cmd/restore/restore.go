package restore

import (
	"context"
	"fmt"

	"github.com/martinsuchenak/fmcsweep/internal/app"
	"github.com/martinsuchenak/fmcsweep/internal/backup"
	"github.com/martinsuchenak/fmcsweep/internal/config"
	"github.com/martinsuchenak/fmcsweep/internal/log"
	"github.com/martinsuchenak/fmcsweep/internal/model"
	"github.com/martinsuchenak/fmcsweep/internal/prompt"
	"github.com/martinsuchenak/fmcsweep/internal/report"
	rs "github.com/martinsuchenak/fmcsweep/internal/restore"
	"github.com/martinsuchenak/fmcsweep/internal/storage"
	"github.com/paularlott/cli"
)

var fileFlags = map[model.Category]string{
	model.Hosts:         "hosts-file",
	model.Ranges:        "ranges-file",
	model.Networks:      "networks-file",
	model.NetworkGroups: "groups-file",
}

func Command() *cli.Command {
	return &cli.Command{
		Name:  "restore",
		Usage: "Recreate objects from backup files",
		Description: "Recreate hosts, ranges, networks and then groups from the backups written by cleanup. " +
			"Files default to the un-dated names in the backup directory, or the dated names with --date.",
		Flags: append(config.GetFlags(),
			&cli.BoolFlag{Name: "yes", Usage: "Do not ask for confirmation"},
			&cli.StringFlag{Name: "date", Usage: "Restore the backups written on this day (YYYY-MM-DD)"},
			&cli.StringFlag{Name: "hosts-file", Usage: "Host backup file"},
			&cli.StringFlag{Name: "ranges-file", Usage: "Range backup file"},
			&cli.StringFlag{Name: "networks-file", Usage: "Network backup file"},
			&cli.StringFlag{Name: "groups-file", Usage: "Group backup file"},
		),
		Run: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			store := backup.NewStore(cfg.BackupDir, nil)
			sources := rs.Sources{}
			for category, flag := range fileFlags {
				path := cmd.GetString(flag)
				if path == "" {
					path = store.Path(category, cmd.GetString("date"))
				}
				sources[category] = path
			}

			p := prompt.New(cmd.GetBool("yes"))
			fmt.Println("This program will recreate objects from backup files:")
			for _, category := range model.RestoreOrder() {
				fmt.Printf("  %-8s %s\n", category.Label()+"s", sources[category])
			}
			ok, err := p.Confirm(ctx, "Do you want to continue?", "")
			if err != nil || !ok {
				return err
			}

			run, err := app.Start(ctx, cfg, p, storage.RunRestore)
			if err != nil {
				return err
			}
			engine := rs.NewEngine(run.Client, run.Collector,
				rs.WithRecorder(run, run.ID),
				rs.WithObserver(run.Metrics),
			)
			result, err := engine.Run(ctx, sources)
			if err != nil {
				log.Error("Restore failed", "error", err)
			}
			fmt.Print(report.Restore(result))
			run.Finish(err)
			return err
		},
	}
}

package cleanup

import (
	"context"
	"fmt"

	"github.com/martinsuchenak/fmcsweep/internal/app"
	"github.com/martinsuchenak/fmcsweep/internal/config"
	"github.com/martinsuchenak/fmcsweep/internal/log"
	"github.com/martinsuchenak/fmcsweep/internal/model"
	"github.com/martinsuchenak/fmcsweep/internal/prompt"
	"github.com/martinsuchenak/fmcsweep/internal/reclaim"
	"github.com/martinsuchenak/fmcsweep/internal/report"
	"github.com/martinsuchenak/fmcsweep/internal/storage"
	"github.com/paularlott/cli"
)

func Command() *cli.Command {
	return &cli.Command{
		Name:  "cleanup",
		Usage: "Back up and delete unused network objects",
		Description: "Identify, document and delete unused groups, networks, ranges and hosts. " +
			"Factory default system objects are never deleted.",
		Flags: append(config.GetFlags(),
			&cli.BoolFlag{Name: "yes", Usage: "Answer yes to every confirmation"},
			&cli.BoolFlag{Name: "dry-run", Usage: "Write backups but delete nothing"},
			&cli.BoolFlag{Name: "loop-flat", Usage: "Repeat flat object deletion until nothing more can be removed"},
			&cli.StringFlag{Name: "categories", Usage: "Comma separated categories to clean (groups, networks, ranges, hosts)"},
		),
		Run: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			categories, err := model.ParseCategories(cmd.GetString("categories"), model.CleanupOrder())
			if err != nil {
				return err
			}
			p := prompt.New(cmd.GetBool("yes"))

			fmt.Println("This program will identify, document and delete unused network objects.")
			fmt.Println("Factory default system objects are not eligible for deletion and are skipped.")
			ok, err := p.Confirm(ctx, "Do you want to continue?", "")
			if err != nil || !ok {
				return err
			}

			run, err := app.Start(ctx, cfg, p, storage.RunCleanup)
			if err != nil {
				return err
			}

			engine := reclaim.NewEngine(run.Client, run.Collector, run.Store,
				reclaim.WithRecorder(run, run.ID),
				reclaim.WithObserver(run.Metrics),
				reclaim.WithLoopFlat(cmd.GetBool("loop-flat")),
				reclaim.WithDryRun(cmd.GetBool("dry-run")),
			)
			result, err := reclaim.NewRunner(engine, hooks{p: p}).Run(ctx, categories)
			if err != nil {
				log.Error("Cleanup failed", "error", err)
			}
			fmt.Print(report.Cleanup(result))
			run.Finish(err)
			return err
		},
	}
}

// hooks asks the operator before each destructive step
type hooks struct {
	p *prompt.Prompter
}

func (h hooks) ConfirmDelete(ctx context.Context, s reclaim.Survey) (bool, error) {
	desc := ""
	if s.Backup != "" {
		desc = "Backup written to " + s.Backup
	}
	if n := len(s.Failures); n > 0 {
		desc += fmt.Sprintf("\n%d objects could not be backed up and will be kept", n)
	}
	return h.p.Confirm(ctx, fmt.Sprintf("Do you want to delete %d unused %s objects?", len(s.Unused), s.Category.Label()), desc)
}

func (h hooks) ConfirmContinue(ctx context.Context, r reclaim.Result) (bool, error) {
	return h.p.Confirm(ctx, "Do you want to continue?",
		fmt.Sprintf("%d out of %d %s objects are unused", r.After, r.Total, r.Category.Label()))
}

package reclaim

import (
	"context"

	"github.com/martinsuchenak/fmcsweep/internal/log"
	"github.com/martinsuchenak/fmcsweep/internal/model"
)

// Hooks lets the operator supervise a cleanup
type Hooks interface {
	// ConfirmDelete is asked once per category before anything is deleted
	ConfirmDelete(ctx context.Context, s Survey) (bool, error)
	// ConfirmContinue is asked after a category, before the next one starts
	ConfirmContinue(ctx context.Context, r Result) (bool, error)
}

// Report collects the results of a cleanup in phase order
type Report struct {
	Results []Result
	// Stopped is set when the operator ended the run early
	Stopped bool
}

// Deleted is the number of objects deleted across all phases
func (r Report) Deleted() int {
	n := 0
	for _, res := range r.Results {
		n += res.Deleted
	}
	return n
}

// Failed is the number of per object failures across all phases
func (r Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		n += len(res.Errors)
	}
	return n
}

// Runner drives the cleanup phases
type Runner struct {
	engine *Engine
	hooks  Hooks
}

func NewRunner(engine *Engine, hooks Hooks) *Runner {
	return &Runner{engine: engine, hooks: hooks}
}

// Run reclaims each category in turn. Groups are surveyed, confirmed and then
// backed up pass by pass; flat categories are surveyed, backed up and then
// confirmed. The report holds every phase that ran, including the one that
// failed.
func (r *Runner) Run(ctx context.Context, categories []model.Category) (Report, error) {
	var report Report
	for i, category := range categories {
		res, err := r.phase(ctx, category)
		if res.Category != "" {
			report.Results = append(report.Results, res)
		}
		if err != nil {
			return report, err
		}

		if i == len(categories)-1 {
			break
		}
		cont, err := r.hooks.ConfirmContinue(ctx, res)
		if err != nil {
			return report, err
		}
		if !cont {
			log.Info("Cleanup stopped by operator", "after", category)
			report.Stopped = true
			break
		}
	}
	return report, nil
}

func (r *Runner) phase(ctx context.Context, category model.Category) (Result, error) {
	log.Separator(category.Label() + " objects")

	s, err := r.engine.Survey(ctx, category)
	if err != nil {
		return Result{}, err
	}
	if len(s.Unused) == 0 {
		log.Info("Nothing to delete", "category", category)
		return Result{Category: category, Total: s.Total}, nil
	}

	if !category.IsGroup() {
		if s, err = r.engine.BackupFlat(ctx, s); err != nil {
			return Result{}, err
		}
	}

	ok, err := r.hooks.ConfirmDelete(ctx, s)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		log.Info("Deletion declined", "category", category)
		res := Result{
			Category: category,
			Before:   len(s.Unused),
			After:    len(s.Unused),
			Total:    s.Total,
			Errors:   s.Failures,
			Declined: true,
		}
		if s.Backup != "" {
			res.Backups = []string{s.Backup}
		}
		return res, nil
	}

	return r.engine.Reclaim(ctx, s)
}

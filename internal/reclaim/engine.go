// Package reclaim deletes unused objects from the controller, backing each
// one up first.
//
// Groups are reclaimed in passes. Deleting a group can leave its member
// groups unreferenced, so after every pass the unused list is collected
// again until nothing unused remains. Flat objects are reclaimed in a single
// pass unless looping is enabled.
package reclaim

import (
	"context"
	"errors"
	"fmt"

	"github.com/martinsuchenak/fmcsweep/internal/backup"
	"github.com/martinsuchenak/fmcsweep/internal/fmc"
	"github.com/martinsuchenak/fmcsweep/internal/inventory"
	"github.com/martinsuchenak/fmcsweep/internal/log"
	"github.com/martinsuchenak/fmcsweep/internal/model"
)

// API is the part of the controller client the engine needs
type API interface {
	backup.Fetcher
	Delete(ctx context.Context, category model.Category, id string) error
}

// Recorder persists the outcome of every delete
type Recorder interface {
	Record(o model.Outcome) error
}

// Observer is told about outcomes and finished phases
type Observer interface {
	ObserveOutcome(o model.Outcome)
	ObservePhase(category model.Category, unused, passes int)
}

type nopObserver struct{}

func (nopObserver) ObserveOutcome(model.Outcome)          {}
func (nopObserver) ObservePhase(model.Category, int, int) {}

// Survey is the state of a category before anything is deleted
type Survey struct {
	Category model.Category
	Total    int
	Unused   []model.Object
	// Backup is set once the unused flat objects have been written out
	Backup   string
	Failures []model.ItemError
}

// Result summarises a reclaimed category
type Result struct {
	Category model.Category
	Before   int
	After    int
	Removed  int
	Deleted  int
	Total    int
	Passes   int
	Stuck    []model.Object
	// Skipped objects could not be backed up and were left in place
	Skipped  []model.Object
	Errors   []model.ItemError
	Backups  []string
	Declined bool
}

// Engine deletes unused objects
type Engine struct {
	api       API
	collector *inventory.Collector
	store     *backup.Store
	recorder  Recorder
	observer  Observer
	runID     string
	loopFlat  bool
	dryRun    bool
}

// Option configures the Engine.
type Option func(*Engine)

// WithRecorder journals every delete under runID
func WithRecorder(r Recorder, runID string) Option {
	return func(e *Engine) {
		e.recorder = r
		e.runID = runID
	}
}

func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithLoopFlat repeats flat deletion until the unused list stops changing
func WithLoopFlat(loop bool) Option {
	return func(e *Engine) {
		e.loopFlat = loop
	}
}

// WithDryRun writes backups but deletes nothing
func WithDryRun(dry bool) Option {
	return func(e *Engine) {
		e.dryRun = dry
	}
}

// NewEngine creates an engine
func NewEngine(api API, collector *inventory.Collector, store *backup.Store, opts ...Option) *Engine {
	e := &Engine{
		api:       api,
		collector: collector,
		store:     store,
		observer:  nopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Survey counts the category and lists its unused objects
func (e *Engine) Survey(ctx context.Context, category model.Category) (Survey, error) {
	log.Info("Gathering object information", "category", category)
	total, err := e.collector.Count(ctx, category, false)
	if err != nil {
		return Survey{}, err
	}
	unused, err := e.collector.Collect(ctx, category, true)
	if err != nil {
		return Survey{}, err
	}

	s := Survey{Category: category, Total: total, Unused: unused}
	if category.IsGroup() {
		log.Info(fmt.Sprintf("At least %d out of %d %s objects are unused, there may be more", len(unused), total, category.Label()))
	} else {
		log.Info(fmt.Sprintf("%d out of %d %s objects are unused", len(unused), total, category.Label()))
		log.Info("There may be additional objects that are members of unused groups, they become unused once those groups are removed")
	}
	return s, nil
}

// BackupFlat writes the unused objects of a flat survey to the backup file
func (e *Engine) BackupFlat(ctx context.Context, s Survey) (Survey, error) {
	if s.Category.IsGroup() {
		return s, fmt.Errorf("%s is reclaimed in passes and backed up per pass", s.Category)
	}
	log.Info("Backing up objects", "category", s.Category, "count", len(s.Unused))
	path, failures, err := e.store.WriteFlat(ctx, e.api, s.Category, s.Unused, 1)
	if err != nil {
		return s, err
	}
	s.Backup = path
	s.Failures = failures
	return s, nil
}

// Reclaim deletes the unused objects of a survey
func (e *Engine) Reclaim(ctx context.Context, s Survey) (Result, error) {
	if s.Category.IsGroup() {
		return e.ReclaimGroups(ctx, s)
	}
	return e.ReclaimFlat(ctx, s)
}

// ReclaimGroups backs up and deletes unused groups pass by pass until none
// remain. A pass that deletes nothing and leaves the unused list unchanged
// ends the loop; the remaining groups are reported as stuck.
func (e *Engine) ReclaimGroups(ctx context.Context, s Survey) (Result, error) {
	return e.reclaim(ctx, s, true)
}

// ReclaimFlat backs up and deletes unused flat objects in one pass, or until
// a fixed point when looping is enabled.
func (e *Engine) ReclaimFlat(ctx context.Context, s Survey) (Result, error) {
	if s.Category.IsGroup() {
		return Result{}, errors.New("groups must be reclaimed with ReclaimGroups")
	}
	return e.reclaim(ctx, s, e.loopFlat)
}

func (e *Engine) reclaim(ctx context.Context, s Survey, loop bool) (Result, error) {
	res := Result{
		Category: s.Category,
		Before:   len(s.Unused),
		Total:    s.Total,
		Errors:   append([]model.ItemError(nil), s.Failures...),
	}
	if s.Backup != "" {
		res.Backups = append(res.Backups, s.Backup)
	}

	unused := s.Unused
	for pass := 1; len(unused) > 0; pass++ {
		notWritten := s.Failures
		if pass > 1 || s.Backup == "" {
			path, failures, err := e.backup(ctx, s.Category, unused, pass)
			res.Errors = append(res.Errors, failures...)
			if err != nil {
				return e.finish(res, unused), err
			}
			res.Backups = appendUnique(res.Backups, path)
			notWritten = failures
		}

		// only objects present in the backup file may be deleted
		deletable, skipped := partition(unused, notWritten)
		res.Skipped = skipped
		for _, o := range skipped {
			log.Warn("Object not backed up, leaving it in place", "category", s.Category, "name", o.Name, "id", o.ID)
		}

		if e.dryRun {
			log.Info("Dry run, nothing deleted", "category", s.Category, "would_delete", len(deletable))
			res.Passes = pass
			break
		}

		log.Info(fmt.Sprintf("Deleting objects, pass %d", pass), "category", s.Category, "count", len(deletable))
		deleted, failures, err := e.deleteAll(ctx, s.Category, deletable, pass)
		res.Deleted += deleted
		res.Errors = append(res.Errors, failures...)
		res.Passes = pass
		if err != nil {
			return e.finish(res, unused), err
		}

		log.Info("Gathering updated object information", "category", s.Category)
		next, err := e.collector.Collect(ctx, s.Category, true)
		if err != nil {
			return e.finish(res, unused), err
		}

		if deleted == 0 && sameObjects(unused, next) {
			log.Warn("Unused objects could not be deleted, stopping", "category", s.Category, "remaining", len(next))
			res.Stuck, _ = partition(next, itemErrors(skipped))
			unused = next
			break
		}
		unused = next
		if !loop {
			break
		}
	}

	res = e.finish(res, unused)
	log.Info(fmt.Sprintf("%d out of %d %s objects are unused", res.After, res.Total, s.Category.Label()),
		"removed", res.Removed, "passes", res.Passes, "errors", len(res.Errors))
	return res, nil
}

func (e *Engine) finish(res Result, unused []model.Object) Result {
	res.After = len(unused)
	res.Removed = res.Before - res.After
	if res.Total >= res.Deleted {
		res.Total -= res.Deleted
	}
	e.observer.ObservePhase(res.Category, res.After, res.Passes)
	return res
}

func (e *Engine) backup(ctx context.Context, category model.Category, objects []model.Object, pass int) (string, []model.ItemError, error) {
	log.Info("Backing up objects", "category", category, "pass", pass, "count", len(objects))
	if category.IsGroup() {
		return e.store.WriteGroups(ctx, e.api, objects, pass)
	}
	return e.store.WriteFlat(ctx, e.api, category, objects, pass)
}

// deleteAll deletes every object, carrying on past per object failures.
// Only fatal errors stop the batch.
func (e *Engine) deleteAll(ctx context.Context, category model.Category, objects []model.Object, pass int) (int, []model.ItemError, error) {
	deleted := 0
	var failures []model.ItemError
	for _, o := range objects {
		err := e.api.Delete(ctx, category, o.ID)
		outcome := model.Outcome{
			RunID:     e.runID,
			Category:  category,
			Action:    model.ActionDelete,
			Name:      o.Name,
			ObjectID:  o.ID,
			Pass:      pass,
			Succeeded: err == nil,
		}
		if err != nil {
			if fmc.IsFatal(err) {
				return deleted, failures, err
			}
			outcome.Message = describe(err)
			log.Error("Unable to delete object", "category", category, "name", o.Name, "id", o.ID, "error", outcome.Message)
			failures = append(failures, model.ItemError{Name: o.Name, ID: o.ID, Message: outcome.Message})
		} else {
			deleted++
			log.Debug("Deleted object", "category", category, "name", o.Name, "id", o.ID)
		}
		e.record(outcome)
	}
	return deleted, failures, nil
}

func (e *Engine) record(o model.Outcome) {
	e.observer.ObserveOutcome(o)
	if e.recorder == nil {
		return
	}
	if err := e.recorder.Record(o); err != nil {
		log.Warn("Unable to journal outcome", "name", o.Name, "error", err)
	}
}

// describe prefers the controller's own explanation of a failure
func describe(err error) string {
	var apiErr *fmc.APIError
	if errors.As(err, &apiErr) {
		if d := apiErr.Description(); d != "" {
			return d
		}
	}
	return err.Error()
}

// partition splits objects into those not named by failures and those that are
func partition(objects []model.Object, failures []model.ItemError) (kept, failed []model.Object) {
	if len(failures) == 0 {
		return objects, nil
	}
	ids := make(map[string]bool, len(failures))
	for _, f := range failures {
		ids[f.ID] = true
	}
	for _, o := range objects {
		if ids[o.ID] {
			failed = append(failed, o)
		} else {
			kept = append(kept, o)
		}
	}
	return kept, failed
}

func itemErrors(objects []model.Object) []model.ItemError {
	out := make([]model.ItemError, 0, len(objects))
	for _, o := range objects {
		out = append(out, model.ItemError{Name: o.Name, ID: o.ID})
	}
	return out
}

func sameObjects(a, b []model.Object) bool {
	if len(a) != len(b) {
		return false
	}
	ids := make(map[string]bool, len(a))
	for _, o := range a {
		ids[o.ID] = true
	}
	for _, o := range b {
		if !ids[o.ID] {
			return false
		}
	}
	return true
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

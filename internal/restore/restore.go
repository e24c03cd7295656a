// Package restore recreates deleted objects from backup files.
package restore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/martinsuchenak/fmcsweep/internal/backup"
	"github.com/martinsuchenak/fmcsweep/internal/fmc"
	"github.com/martinsuchenak/fmcsweep/internal/inventory"
	"github.com/martinsuchenak/fmcsweep/internal/log"
	"github.com/martinsuchenak/fmcsweep/internal/model"
)

// API is the part of the controller client restore needs
type API interface {
	CreateNetwork(ctx context.Context, category model.Category, rec model.FlatRecord) (*model.NetworkObject, error)
	CreateGroup(ctx context.Context, payload model.GroupPayload) (*model.GroupObject, error)
}

// Recorder persists the outcome of every create
type Recorder interface {
	Record(o model.Outcome) error
}

// Observer is told about outcomes and dropped group members
type Observer interface {
	ObserveOutcome(o model.Outcome)
	ObserveUnresolved(n int)
}

type nopObserver struct{}

func (nopObserver) ObserveOutcome(model.Outcome) {}
func (nopObserver) ObserveUnresolved(int)        {}

// MemberMiss is a group member whose name matched no object on the controller
type MemberMiss struct {
	Group  string
	Member string
}

// Result summarises a restored category
type Result struct {
	Category   model.Category
	Source     string
	Attempted  int
	Created    int
	Failed     []model.ItemError
	Unresolved []MemberMiss
	Skipped    bool
	// Reason says why a skipped category was not restored
	Reason     string
}

// Report collects the results of a restore in category order
type Report struct {
	Results []Result
}

// Created is the number of objects created across all categories
func (r Report) Created() int {
	n := 0
	for _, res := range r.Results {
		n += res.Created
	}
	return n
}

// Sources maps each category to the backup file it is restored from
type Sources map[model.Category]string

// Engine recreates objects
type Engine struct {
	api       API
	collector *inventory.Collector
	recorder  Recorder
	observer  Observer
	runID     string
}

// Option configures the Engine.
type Option func(*Engine)

// WithRecorder journals every create under runID
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

func NewEngine(api API, collector *inventory.Collector, opts ...Option) *Engine {
	e := &Engine{api: api, collector: collector, observer: nopObserver{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run restores hosts, ranges, networks and then groups. A category whose
// backup file is missing or cannot be parsed is skipped and the rest carry on.
func (e *Engine) Run(ctx context.Context, sources Sources) (Report, error) {
	var report Report
	for _, category := range model.RestoreOrder() {
		path, ok := sources[category]
		if !ok || path == "" {
			continue
		}
		log.Separator(category.Label() + " objects")

		res, err := e.restoreFile(ctx, category, path)
		res.Category = category
		res.Source = path
		report.Results = append(report.Results, res)
		if err != nil {
			return report, err
		}
	}
	return report, nil
}

func (e *Engine) restoreFile(ctx context.Context, category model.Category, path string) (Result, error) {
	if category.IsGroup() {
		records, err := backup.ReadGroups(path)
		if err != nil {
			return skipped(category, path, err)
		}
		log.Info("Backup file found", "file", path, "groups", len(records))
		return e.RestoreGroups(ctx, records)
	}

	records, err := backup.ReadFlat(path)
	if err != nil {
		return skipped(category, path, err)
	}
	log.Info("Backup file found", "file", path, "objects", len(records))
	return e.RestoreFlat(ctx, category, records)
}

func skipped(category model.Category, path string, err error) (Result, error) {
	if errors.Is(err, backup.ErrMissingBackup) {
		log.Warn("Backup file not present, skipping restore", "category", category, "file", path)
		return Result{Category: category, Skipped: true, Reason: "missing"}, nil
	}
	log.Error("Backup file unreadable, skipping restore", "category", category, "file", path, "error", err)
	return Result{Category: category, Skipped: true, Reason: err.Error()}, nil
}

// RestoreFlat creates each record in turn. Failures are logged and the batch
// carries on; only fatal errors stop it.
func (e *Engine) RestoreFlat(ctx context.Context, category model.Category, records []model.FlatRecord) (Result, error) {
	res := Result{Category: category}
	for _, rec := range records {
		res.Attempted++
		log.Info("Creating object", "category", category, "name", rec.Name, "value", rec.Value)
		obj, err := e.api.CreateNetwork(ctx, category, rec)
		if fatal := e.settle(&res, category, rec.Name, obj.GetID(), 0, err); fatal != nil {
			return res, fatal
		}
	}
	log.Info(fmt.Sprintf("%d of %d %s objects restored", res.Created, res.Attempted, category.Label()))
	return res, nil
}

// RestoreGroups recreates groups in reverse deletion order: the last pass to
// be deleted holds the innermost groups, so it is created first. The object
// index is refreshed at the start of each pass so members created by the
// previous pass can be resolved. Members that cannot be resolved are dropped
// with a warning.
func (e *Engine) RestoreGroups(ctx context.Context, records []model.GroupRecord) (Result, error) {
	res := Result{Category: model.NetworkGroups}

	ordered := make([]model.GroupRecord, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Pass > ordered[j].Pass
	})

	var index inventory.Index
	currentPass := 0
	for i, rec := range ordered {
		if i == 0 || rec.Pass != currentPass {
			currentPass = rec.Pass
			ix, err := e.collector.Snapshot(ctx)
			if err != nil {
				return res, err
			}
			index = ix
			log.Debug("Restoring groups deleted in pass", "pass", currentPass)
		}

		res.Attempted++
		log.Info("Creating group", "name", rec.Name, "pass", rec.Pass)
		payload := model.GroupPayload{
			Name:        rec.Name,
			Description: rec.Description,
			Type:        model.TypeNetworkGroup,
			Literals:    rec.Literals,
		}
		for _, member := range rec.Objects {
			ref, ok := index.Lookup(member.Name)
			if !ok {
				log.Warn("Group member not found on the controller", "group", rec.Name, "member", member.Name)
				res.Unresolved = append(res.Unresolved, MemberMiss{Group: rec.Name, Member: member.Name})
				e.observer.ObserveUnresolved(1)
				continue
			}
			payload.Objects = append(payload.Objects, ref)
		}

		group, err := e.api.CreateGroup(ctx, payload)
		if fatal := e.settle(&res, model.NetworkGroups, rec.Name, group.GetID(), rec.Pass, err); fatal != nil {
			return res, fatal
		}
	}
	log.Info(fmt.Sprintf("%d of %d group objects restored", res.Created, res.Attempted), "unresolved_members", len(res.Unresolved))
	return res, nil
}

// settle records the outcome of a create and returns err when it is fatal
func (e *Engine) settle(res *Result, category model.Category, name, id string, pass int, err error) error {
	outcome := model.Outcome{
		RunID:     e.runID,
		Category:  category,
		Action:    model.ActionCreate,
		Name:      name,
		ObjectID:  id,
		Pass:      pass,
		Succeeded: err == nil,
	}
	if err != nil {
		if fmc.IsFatal(err) {
			return err
		}
		outcome.Message = describe(err)
		log.Error("Object creation failed", "category", category, "name", name, "error", outcome.Message)
		res.Failed = append(res.Failed, model.ItemError{Name: name, Message: outcome.Message})
	} else {
		res.Created++
		log.Debug("Object created", "category", category, "name", name, "id", id)
	}

	e.observer.ObserveOutcome(outcome)
	if e.recorder != nil {
		if rerr := e.recorder.Record(outcome); rerr != nil {
			log.Warn("Unable to journal outcome", "name", name, "error", rerr)
		}
	}
	return nil
}

func describe(err error) string {
	var apiErr *fmc.APIError
	if errors.As(err, &apiErr) {
		if d := apiErr.Description(); d != "" {
			return d
		}
	}
	return err.Error()
}

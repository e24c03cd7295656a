// Package app wires configuration, logging, the controller client, the
// journal and metrics into one run.
package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/martinsuchenak/fmcsweep/internal/backup"
	"github.com/martinsuchenak/fmcsweep/internal/config"
	"github.com/martinsuchenak/fmcsweep/internal/fmc"
	"github.com/martinsuchenak/fmcsweep/internal/inventory"
	"github.com/martinsuchenak/fmcsweep/internal/log"
	"github.com/martinsuchenak/fmcsweep/internal/metrics"
	"github.com/martinsuchenak/fmcsweep/internal/model"
	"github.com/martinsuchenak/fmcsweep/internal/storage"
)

// Credentials supplies the login for the controller
type Credentials interface {
	Credentials(ctx context.Context, username, password string) (fmc.Credentials, error)
}

// Run is an authenticated session with everything a command needs
type Run struct {
	ID        string
	Kind      string
	Config    *config.Config
	Client    *fmc.Client
	Collector *inventory.Collector
	Store     *backup.Store
	Metrics   *metrics.Registry

	journal *storage.SQLiteStorage
	started time.Time
}

// Start opens the run log, logs in and, when kind is set and a journal is
// configured, records the start of the run.
func Start(ctx context.Context, cfg *config.Config, creds Credentials, kind string, opts ...fmc.Option) (*Run, error) {
	log.Configure(cfg.LogLevel, cfg.LogFormat)
	if cfg.LogFile != "" {
		if err := log.OpenRunLog(cfg.LogFile, cfg.LogLevel, cfg.LogFormat); err != nil {
			return nil, err
		}
	}

	r, err := start(ctx, cfg, creds, kind, opts)
	if err != nil {
		log.Error("Unable to start", "error", err)
		log.CloseRunLog()
		return nil, err
	}
	return r, nil
}

func start(ctx context.Context, cfg *config.Config, creds Credentials, kind string, opts []fmc.Option) (*Run, error) {
	if err := cfg.RequireEndpoint(); err != nil {
		return nil, err
	}
	login, err := creds.Credentials(ctx, cfg.Username, cfg.Password)
	if err != nil {
		return nil, err
	}

	r := &Run{
		ID:      uuid.NewString(),
		Kind:    kind,
		Config:  cfg,
		Metrics: metrics.New(),
		Store:   backup.NewStore(cfg.BackupDir, nil),
		started: time.Now(),
	}

	clientOpts := append([]fmc.Option{
		fmc.WithVerifyTLS(cfg.VerifyTLS),
		fmc.WithTimeout(cfg.RequestTimeout),
		fmc.WithRequestsPerMinute(cfg.RequestsPerMinute),
		fmc.WithObserver(r.Metrics),
	}, opts...)
	r.Client = fmc.NewClient(cfg.BaseURL(), clientOpts...)
	r.Collector = inventory.NewCollector(r.Client, fmc.MaxPageSize)

	session, err := r.Client.Authenticate(ctx, login)
	if err != nil {
		return nil, err
	}
	log.Info("Connected to controller", "endpoint", cfg.BaseURL(), "domain", session.DomainID)

	if kind != "" && cfg.IsJournalEnabled() {
		journal, err := storage.NewStorage(cfg.JournalPath)
		if err != nil {
			return nil, err
		}
		id, err := journal.StartRun(kind, cfg.BaseURL(), login.Username)
		if err != nil {
			journal.Close()
			return nil, err
		}
		r.journal = journal
		r.ID = id
		log.Debug("Journal opened", "path", cfg.JournalPath)
	}
	log.Info("Run started", "run_id", r.ID, "kind", kind)
	return r, nil
}

// Record journals an outcome when a journal is configured
func (r *Run) Record(o model.Outcome) error {
	if r.journal == nil {
		return nil
	}
	return r.journal.Record(o)
}

// Finish closes the run. err is the error the command is about to return,
// if any; it decides the status stored in the journal.
func (r *Run) Finish(err error) {
	status := "completed"
	switch {
	case errors.Is(err, context.Canceled):
		status = "interrupted"
	case err != nil:
		status = "failed"
	}

	if r.journal != nil {
		if ferr := r.journal.FinishRun(r.ID, status); ferr != nil {
			log.Warn("Unable to close journal run", "error", ferr)
		}
		r.journal.Close()
	}
	if r.Config.IsMetricsEnabled() {
		if merr := r.Metrics.WriteTextfile(r.Config.MetricsFile, time.Now()); merr != nil {
			log.Warn("Unable to write metrics", "file", r.Config.MetricsFile, "error", merr)
		}
	}
	log.Info("Run finished", "run_id", r.ID, "status", status, "elapsed", time.Since(r.started).Round(time.Second).String())
	log.CloseRunLog()
}

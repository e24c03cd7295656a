package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/martinsuchenak/fmcsweep/internal/config"
	"github.com/martinsuchenak/fmcsweep/internal/fmc"
	"github.com/martinsuchenak/fmcsweep/internal/fmc/fmctest"
	"github.com/martinsuchenak/fmcsweep/internal/model"
	"github.com/martinsuchenak/fmcsweep/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedCredentials struct{}

func (fixedCredentials) Credentials(_ context.Context, username, password string) (fmc.Credentials, error) {
	if username == "" {
		username = fmctest.Username
	}
	if password == "" {
		password = fmctest.Password
	}
	return fmc.Credentials{Username: username, Password: password}, nil
}

func testConfig(t *testing.T, endpoint string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.Endpoint = endpoint
	cfg.BackupDir = filepath.Join(dir, "backups")
	cfg.RequestsPerMinute = 0
	cfg.LogLevel = "error"
	return cfg
}

func TestStart_WithJournalAndMetrics(t *testing.T) {
	srv := fmctest.NewServer(t)
	cfg := testConfig(t, srv.URL+"/")
	dir := t.TempDir()
	cfg.JournalPath = filepath.Join(dir, "journal.db")
	cfg.MetricsFile = filepath.Join(dir, "fmcsweep.prom")
	cfg.LogFile = filepath.Join(dir, "run.log")
	cfg.LogLevel = "info"

	run, err := Start(context.Background(), cfg, fixedCredentials{}, "cleanup", fmc.WithCooldown(time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, fmctest.DomainID, run.Client.Session().DomainID)
	assert.Equal(t, cfg.BackupDir, run.Store.Dir())

	require.NoError(t, run.Record(model.Outcome{RunID: run.ID, Category: model.Hosts, Action: model.ActionDelete, Name: "h1", Succeeded: true}))
	run.Finish(nil)

	journal, err := storage.NewStorage(cfg.JournalPath)
	require.NoError(t, err)
	defer journal.Close()
	runs, err := journal.ListRuns(5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Equal(t, "completed", runs[0].Status)
	assert.Equal(t, fmctest.Username, runs[0].Operator)
	assert.Equal(t, 1, runs[0].Succeeded)

	prom, err := os.ReadFile(cfg.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `fmcsweep_api_requests_total{method="POST",status="204"}`)

	logged, err := os.ReadFile(cfg.LogFile)
	require.NoError(t, err)
	assert.NotEmpty(t, logged)
}

func TestStart_WithoutJournal(t *testing.T) {
	srv := fmctest.NewServer(t)
	cfg := testConfig(t, srv.URL)

	run, err := Start(context.Background(), cfg, fixedCredentials{}, "")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.NoError(t, run.Record(model.Outcome{Name: "ignored"}))
	run.Finish(errors.New("boom"))
}

func TestFinish_Status(t *testing.T) {
	srv := fmctest.NewServer(t)
	cfg := testConfig(t, srv.URL)
	cfg.JournalPath = filepath.Join(t.TempDir(), "journal.db")

	run, err := Start(context.Background(), cfg, fixedCredentials{}, "restore")
	require.NoError(t, err)
	run.Finish(context.Canceled)

	journal, err := storage.NewStorage(cfg.JournalPath)
	require.NoError(t, err)
	defer journal.Close()
	runs, err := journal.ListRuns(1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "interrupted", runs[0].Status)
	assert.Equal(t, "restore", runs[0].Kind)
}

func TestStart_Errors(t *testing.T) {
	cfg := testConfig(t, "")
	_, err := Start(context.Background(), cfg, fixedCredentials{}, "cleanup")
	assert.Error(t, err, "an endpoint is required")

	srv := fmctest.NewServer(t)
	cfg = testConfig(t, srv.URL)
	cfg.Password = "wrong"
	_, err = Start(context.Background(), cfg, fixedCredentials{}, "cleanup")
	var authErr *fmc.AuthError
	assert.ErrorAs(t, err, &authErr)
}

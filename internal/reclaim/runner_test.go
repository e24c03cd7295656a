package reclaim

import (
	"context"
	"errors"
	"testing"

	"github.com/martinsuchenak/fmcsweep/internal/fmc/fmctest"
	"github.com/martinsuchenak/fmcsweep/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedHooks struct {
	deleteAnswers map[model.Category]bool
	stopAfter     model.Category
	err           error

	asked     []model.Category
	backedUp  map[model.Category]string
	continued []model.Category
}

func (h *scriptedHooks) ConfirmDelete(_ context.Context, s Survey) (bool, error) {
	h.asked = append(h.asked, s.Category)
	if h.backedUp == nil {
		h.backedUp = make(map[model.Category]string)
	}
	h.backedUp[s.Category] = s.Backup
	if h.err != nil {
		return false, h.err
	}
	answer, ok := h.deleteAnswers[s.Category]
	return !ok || answer, nil
}

func (h *scriptedHooks) ConfirmContinue(_ context.Context, r Result) (bool, error) {
	h.continued = append(h.continued, r.Category)
	return r.Category != h.stopAfter, nil
}

func populate(srv *fmctest.Server) {
	host := srv.AddNetwork(model.Hosts, "h1", "10.0.0.1")
	srv.AddNetwork(model.Hosts, "h2", "10.0.0.2")
	srv.AddNetwork(model.Networks, "n1", "10.1.0.0/16")
	srv.AddNetwork(model.Ranges, "r1", "10.2.0.1-10.2.0.9")
	inner := srv.AddGroup("inner", host)
	srv.AddGroup("outer", inner)
}

func TestRunner_AllPhases(t *testing.T) {
	srv := fmctest.NewServer(t)
	populate(srv)
	e, _ := newEngine(t, srv)
	hooks := &scriptedHooks{}

	report, err := NewRunner(e, hooks).Run(context.Background(), model.CleanupOrder())
	require.NoError(t, err)
	assert.False(t, report.Stopped)
	require.Len(t, report.Results, 4)
	for i, c := range model.CleanupOrder() {
		assert.Equal(t, c, report.Results[i].Category)
		assert.Equal(t, 0, report.Results[i].After)
	}
	assert.Equal(t, 2, report.Results[0].Passes)
	assert.Equal(t, 6, report.Deleted(), "h1 becomes deletable once the groups are gone")
	assert.Equal(t, 0, report.Failed())

	assert.Equal(t, model.CleanupOrder(), hooks.asked)
	assert.Empty(t, hooks.backedUp[model.NetworkGroups], "groups are backed up after confirmation")
	assert.NotEmpty(t, hooks.backedUp[model.Hosts], "flat objects are backed up before confirmation")
	assert.Equal(t, []model.Category{model.NetworkGroups, model.Networks, model.Ranges}, hooks.continued)
}

func TestRunner_DeclinedDelete(t *testing.T) {
	srv := fmctest.NewServer(t)
	populate(srv)
	e, _ := newEngine(t, srv)
	hooks := &scriptedHooks{deleteAnswers: map[model.Category]bool{model.NetworkGroups: false}}

	report, err := NewRunner(e, hooks).Run(context.Background(), model.CleanupOrder())
	require.NoError(t, err)

	groups := report.Results[0]
	assert.True(t, groups.Declined)
	assert.Equal(t, groups.Before, groups.After)
	assert.Equal(t, 0, groups.Removed)
	assert.Equal(t, 2, srv.Count(model.NetworkGroups))

	hosts := report.Results[3]
	assert.Equal(t, 1, hosts.Deleted, "h1 is still a group member")
	assert.Equal(t, []string{"h1"}, srv.Names(model.Hosts))
}

func TestRunner_StopAfterPhase(t *testing.T) {
	srv := fmctest.NewServer(t)
	populate(srv)
	e, _ := newEngine(t, srv)
	hooks := &scriptedHooks{stopAfter: model.Networks}

	report, err := NewRunner(e, hooks).Run(context.Background(), model.CleanupOrder())
	require.NoError(t, err)
	assert.True(t, report.Stopped)
	require.Len(t, report.Results, 2)
	assert.Equal(t, 1, srv.Count(model.Ranges))
	assert.Equal(t, 2, srv.Count(model.Hosts))
}

func TestRunner_NothingUnusedSkipsConfirmation(t *testing.T) {
	srv := fmctest.NewServer(t)
	srv.Pin(srv.AddNetwork(model.Hosts, "h1", "10.0.0.1"))
	e, _ := newEngine(t, srv)
	hooks := &scriptedHooks{}

	report, err := NewRunner(e, hooks).Run(context.Background(), []model.Category{model.Hosts})
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, 1, report.Results[0].Total)
	assert.Empty(t, hooks.asked)
}

func TestRunner_HookError(t *testing.T) {
	srv := fmctest.NewServer(t)
	populate(srv)
	e, _ := newEngine(t, srv)
	boom := errors.New("prompt closed")

	_, err := NewRunner(e, &scriptedHooks{err: boom}).Run(context.Background(), model.CleanupOrder())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, srv.Count(model.NetworkGroups))
}

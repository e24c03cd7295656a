package restore

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/martinsuchenak/fmcsweep/internal/backup"
	"github.com/martinsuchenak/fmcsweep/internal/fmc/fmctest"
	"github.com/martinsuchenak/fmcsweep/internal/inventory"
	"github.com/martinsuchenak/fmcsweep/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type journal struct {
	outcomes []model.Outcome
}

func (j *journal) Record(o model.Outcome) error {
	j.outcomes = append(j.outcomes, o)
	return nil
}

type missCounter struct {
	outcomes   int
	unresolved int
}

func (m *missCounter) ObserveOutcome(model.Outcome) { m.outcomes++ }
func (m *missCounter) ObserveUnresolved(n int)      { m.unresolved += n }

func newEngine(t *testing.T, srv *fmctest.Server, opts ...Option) *Engine {
	t.Helper()
	client := srv.Login(t)
	return NewEngine(client, inventory.NewCollector(client, 0), opts...)
}

func TestRestoreFlat(t *testing.T) {
	srv := fmctest.NewServer(t)
	srv.AddNetwork(model.Hosts, "taken", "10.0.0.5")
	j := &journal{}
	e := newEngine(t, srv, WithRecorder(j, "run-9"))

	res, err := e.RestoreFlat(context.Background(), model.Hosts, []model.FlatRecord{
		{Name: "n1", Description: "d", Type: model.TypeHost, Value: "10.0.0.1"},
		{Name: "taken", Type: model.TypeHost, Value: "10.0.0.5"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempted)
	assert.Equal(t, 1, res.Created)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "taken", res.Failed[0].Name)
	assert.Contains(t, res.Failed[0].Message, "already exists")

	n1 := srv.Find(model.Hosts, "n1")
	require.NotNil(t, n1)
	assert.Equal(t, "d", n1.Description)
	assert.Equal(t, model.TypeHost, n1.Type)
	assert.Equal(t, "10.0.0.1", n1.Value)

	require.Len(t, j.outcomes, 2)
	assert.Equal(t, model.ActionCreate, j.outcomes[0].Action)
	assert.Equal(t, n1.ID, j.outcomes[0].ObjectID)
	assert.True(t, j.outcomes[0].Succeeded)
	assert.False(t, j.outcomes[1].Succeeded)
}

func TestRestoreGroups_DeepestPassFirst(t *testing.T) {
	srv := fmctest.NewServer(t)
	srv.AddNetwork(model.Hosts, "h1", "10.0.0.1")
	e := newEngine(t, srv)

	res, err := e.RestoreGroups(context.Background(), []model.GroupRecord{
		{Name: "A", Type: model.TypeNetworkGroup, Objects: []model.MemberRef{{Name: "B"}}, Pass: 1},
		{Name: "B", Type: model.TypeNetworkGroup, Objects: []model.MemberRef{{Name: "h1", ID: "stale-id"}}, Pass: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Empty(t, res.Unresolved)
	assert.Equal(t, []string{"B", "A"}, srv.Created())

	a := srv.Find(model.NetworkGroups, "A")
	b := srv.Find(model.NetworkGroups, "B")
	h1 := srv.Find(model.Hosts, "h1")
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.Equal(t, []model.MemberRef{b.Ref()}, a.Objects, "A refers to the newly created B")
	assert.Equal(t, []model.MemberRef{h1.Ref()}, b.Objects, "members resolve by name, not by the stale ID")
}

func TestRestoreGroups_UnresolvedMember(t *testing.T) {
	srv := fmctest.NewServer(t)
	srv.AddNetwork(model.Hosts, "h1", "10.0.0.1")
	obs := &missCounter{}
	e := newEngine(t, srv, WithObserver(obs))

	res, err := e.RestoreGroups(context.Background(), []model.GroupRecord{
		{
			Name:     "G",
			Objects:  []model.MemberRef{{Name: "h1"}, {Name: "X"}},
			Literals: []model.Literal{{Type: "Network", Value: "172.16.0.0/12"}},
			Pass:     1,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, []MemberMiss{{Group: "G", Member: "X"}}, res.Unresolved)
	assert.Equal(t, 1, obs.unresolved)

	g := srv.Find(model.NetworkGroups, "G")
	require.NotNil(t, g)
	require.Len(t, g.Objects, 1)
	assert.Equal(t, "h1", g.Objects[0].Name)
	assert.Equal(t, []model.Literal{{Type: "Network", Value: "172.16.0.0/12"}}, g.Literals)
}

func TestRestoreGroups_SamePassNotVisible(t *testing.T) {
	srv := fmctest.NewServer(t)
	e := newEngine(t, srv)

	res, err := e.RestoreGroups(context.Background(), []model.GroupRecord{
		{Name: "first", Literals: []model.Literal{{Type: "Host", Value: "10.1.1.1"}}, Pass: 1},
		{Name: "second", Objects: []model.MemberRef{{Name: "first"}}, Pass: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, []MemberMiss{{Group: "second", Member: "first"}}, res.Unresolved)
	require.Len(t, res.Failed, 1, "a group left with no members is rejected")
	assert.Equal(t, "second", res.Failed[0].Name)
	assert.Equal(t, 1, srv.CountRequests(http.MethodGet, "/object/networkgroups"), "one snapshot for the pass")
}

func TestRestore_RateLimitedCreateIsRetried(t *testing.T) {
	srv := fmctest.NewServer(t)
	e := newEngine(t, srv)

	srv.RateLimitNext(1)
	res, err := e.RestoreFlat(context.Background(), model.Networks, []model.FlatRecord{
		{Name: "n1", Type: model.TypeNetwork, Value: "10.0.0.0/8"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 2, srv.CountRequests(http.MethodPost, "/object/networks"))
	assert.Equal(t, []string{"n1"}, srv.Created())
}

func TestRun_SkipsMissingFiles(t *testing.T) {
	srv := fmctest.NewServer(t)
	dir := t.TempDir()
	hostsFile := filepath.Join(dir, backup.FileName(model.Hosts, ""))
	require.NoError(t, os.WriteFile(hostsFile, []byte("name,description,type,value\nh1,web,Host,10.0.0.1\n"), 0o644))
	groupsFile := filepath.Join(dir, backup.FileName(model.NetworkGroups, ""))
	require.NoError(t, os.WriteFile(groupsFile, []byte(`name,description,type,objects,literals,pass
outer,,NetworkGroup,"[{""type"":""NetworkGroup"",""name"":""inner"",""id"":""old""}]",[],1
inner,,NetworkGroup,"[""h1""]",[],2
`), 0o644))
	e := newEngine(t, srv)

	report, err := e.Run(context.Background(), Sources{
		model.NetworkGroups: groupsFile,
		model.Hosts:         hostsFile,
		model.Ranges:        filepath.Join(dir, "absent.csv"),
	})
	require.NoError(t, err)
	require.Len(t, report.Results, 3)
	assert.Equal(t, model.Hosts, report.Results[0].Category)
	assert.Equal(t, model.Ranges, report.Results[1].Category)
	assert.True(t, report.Results[1].Skipped)
	assert.Equal(t, model.NetworkGroups, report.Results[2].Category)
	assert.Equal(t, 3, report.Created())
	assert.Equal(t, []string{"h1", "inner", "outer"}, srv.Created())
}

func TestRun_MalformedFileIsSkipped(t *testing.T) {
	srv := fmctest.NewServer(t)
	dir := t.TempDir()
	hostsFile := filepath.Join(dir, "hosts.csv")
	require.NoError(t, os.WriteFile(hostsFile, []byte("only,two\n"), 0o644))
	networksFile := filepath.Join(dir, "networks.csv")
	require.NoError(t, os.WriteFile(networksFile, []byte("n1,d,Network,10.0.0.0/8\n"), 0o644))
	e := newEngine(t, srv)

	report, err := e.Run(context.Background(), Sources{model.Hosts: hostsFile, model.Networks: networksFile})
	require.NoError(t, err)
	require.Len(t, report.Results, 2)

	hosts := report.Results[0]
	assert.Equal(t, model.Hosts, hosts.Category)
	assert.True(t, hosts.Skipped)
	assert.Equal(t, hostsFile, hosts.Source)
	assert.Contains(t, hosts.Reason, "row 1 has 2 columns")

	assert.Equal(t, model.Networks, report.Results[1].Category)
	assert.Equal(t, 1, report.Results[1].Created)
	assert.Equal(t, []string{"n1"}, srv.Created(), "later categories are still restored")
}

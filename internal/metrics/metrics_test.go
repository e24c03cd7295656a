package metrics

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/martinsuchenak/fmcsweep/internal/model"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRequest(t *testing.T) {
	r := New()
	r.ObserveRequest(http.MethodGet, 200)
	r.ObserveRequest(http.MethodGet, 200)
	r.ObserveRequest(http.MethodDelete, 429)
	r.ObserveRateLimited()

	assert.Equal(t, 2.0, testutil.ToFloat64(r.APIRequests.WithLabelValues("GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.APIRequests.WithLabelValues("DELETE", "429")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.RateLimited))
}

func TestObserveOutcome(t *testing.T) {
	r := New()
	r.ObserveOutcome(model.Outcome{Category: model.Hosts, Action: model.ActionDelete, Succeeded: true})
	r.ObserveOutcome(model.Outcome{Category: model.Hosts, Action: model.ActionDelete})
	r.ObserveOutcome(model.Outcome{Category: model.NetworkGroups, Action: model.ActionCreate, Succeeded: true})
	r.ObserveOutcome(model.Outcome{Category: model.Ranges, Action: model.ActionCreate})
	r.ObserveUnresolved(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.Deleted.WithLabelValues("hosts")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.DeleteFailures.WithLabelValues("hosts")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Created.WithLabelValues("networkgroups")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.CreateFailures.WithLabelValues("ranges")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.UnresolvedMembers))
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.ObservePhase(model.NetworkGroups, 2, 4)
	r.ObserveRequest(http.MethodPost, 201)

	path := filepath.Join(t.TempDir(), "fmcsweep.prom")
	finished := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	require.NoError(t, r.WriteTextfile(path, finished))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(raw)
	assert.Contains(t, text, `fmcsweep_objects_unused{category="networkgroups"} 2`)
	assert.Contains(t, text, `fmcsweep_cleanup_passes{category="networkgroups"} 4`)
	assert.Contains(t, text, `fmcsweep_api_requests_total{method="POST",status="201"} 1`)
	assert.Contains(t, text, "fmcsweep_last_run_timestamp_seconds")
	assert.Equal(t, float64(finished.Unix()), testutil.ToFloat64(r.LastRun))
}

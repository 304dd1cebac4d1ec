package status

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkwatch/linkwatch/pkg/types"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(ttl time.Duration) (*Store, *time.Time) {
	now := baseTime
	st := New("mon-1", ttl, zerolog.Nop())
	st.now = func() time.Time { return now }
	return st, &now
}

func result(id string, status types.CheckStatus) types.CheckResult {
	return types.CheckResult{ServiceID: id, Status: status}
}

func TestPutConnection_Copies(t *testing.T) {
	st, _ := newTestStore(time.Minute)
	sample := &types.ConnectionSample{SSID: "HomeNet", Signal: -50}
	st.PutConnection(sample, 95, "healthy")
	sample.Signal = -90

	c, ok := st.Connection()
	require.True(t, ok)
	require.NotNil(t, c.Sample)
	assert.Equal(t, -50, c.Sample.Signal, "stored sample must be a copy")
	assert.Equal(t, 95, c.Score)
	assert.Equal(t, "healthy", c.State)
	assert.True(t, c.UpdatedAt.Equal(baseTime), "UpdatedAt: got %v", c.UpdatedAt)
}

func TestPutConnection_Absent(t *testing.T) {
	st, _ := newTestStore(time.Minute)
	st.PutConnection(nil, 0, "unknown")

	c, ok := st.Connection()
	require.True(t, ok)
	assert.Nil(t, c.Sample)
}

func TestConnection_Empty(t *testing.T) {
	st, _ := newTestStore(time.Minute)
	_, ok := st.Connection()
	require.False(t, ok)
	assert.Nil(t, st.Snapshot().Connection)
}

func TestIncidents_ReturnsCopy(t *testing.T) {
	st, _ := newTestStore(time.Minute)
	st.SetIncidents([]types.Incident{{ID: "i1", Trigger: map[string]any{"threshold": "x"}}})

	got := st.Incidents()
	got[0].Trigger["threshold"] = "mutated"

	again := st.Incidents()
	assert.Equal(t, "x", again[0].Trigger["threshold"], "store was mutated through returned slice")
}

func TestServices_SortedAndExcludesStale(t *testing.T) {
	st, now := newTestStore(5 * time.Minute)

	st.PutCheckResult("old", result("old", types.CheckUp))
	*now = baseTime.Add(4 * time.Minute)
	st.PutCheckResult("b", result("b", types.CheckDown))
	st.PutCheckResult("a", result("a", types.CheckUp))

	*now = baseTime.Add(6 * time.Minute)
	got := st.Services()
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Result.ServiceID)
	assert.Equal(t, "b", got[1].Result.ServiceID)
}

func TestEvict(t *testing.T) {
	st, now := newTestStore(5 * time.Minute)
	st.PutCheckResult("stale", result("stale", types.CheckUp))
	*now = baseTime.Add(3 * time.Minute)
	st.PutCheckResult("fresh", result("fresh", types.CheckUp))

	assert.Equal(t, 1, st.Evict(baseTime.Add(6*time.Minute)))
	*now = baseTime.Add(6 * time.Minute)
	got := st.Services()
	require.Len(t, got, 1)
	assert.Equal(t, "fresh", got[0].Result.ServiceID)
}

func TestSnapshot(t *testing.T) {
	st, _ := newTestStore(time.Minute)
	st.PutConnection(&types.ConnectionSample{SSID: "HomeNet"}, 70, "degraded")
	st.SetIncidents([]types.Incident{{ID: "i1"}})
	st.PutCheckResult("svc", result("svc", types.CheckUp))

	snap := st.Snapshot()
	assert.Equal(t, "mon-1", snap.MonitorID)
	require.NotNil(t, snap.Connection)
	assert.Equal(t, 70, snap.Connection.Score)
	assert.Len(t, snap.Incidents, 1)
	assert.Len(t, snap.Services, 1)
}

func TestConcurrentAccess(t *testing.T) {
	st := New("mon-1", time.Minute, zerolog.Nop())
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			st.PutCheckResult("svc", result("svc", types.CheckUp))
			st.PutConnection(&types.ConnectionSample{}, 50, "critical")
		}()
		go func() {
			defer wg.Done()
			_ = st.Snapshot()
		}()
	}
	wg.Wait()
}

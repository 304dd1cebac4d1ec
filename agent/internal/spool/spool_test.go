package spool

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkwatch/linkwatch/agent/internal/shipper"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func openTemp(t *testing.T, maxRows int) (*Outbox, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "outbox.db")
	o, err := Open(path, maxRows, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Close() })
	return o, path
}

func env(i int) shipper.Envelope {
	return shipper.Envelope{
		ID:        fmt.Sprintf("e%d", i),
		Kind:      shipper.KindHeartbeat,
		MonitorID: "mon-1",
		CreatedAt: baseTime.Add(time.Duration(i) * time.Second),
		Payload:   json.RawMessage(fmt.Sprintf(`{"n":%d}`, i)),
	}
}

func TestOutbox_FIFO(t *testing.T) {
	o, _ := openTemp(t, 100)

	_, ok, err := o.Peek()
	require.NoError(t, err)
	assert.False(t, ok)

	for i := 1; i <= 3; i++ {
		require.NoError(t, o.Push(env(i)))
	}
	n, err := o.Len()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, ok, err := o.Peek()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "e1", got.ID)
	assert.Equal(t, shipper.KindHeartbeat, got.Kind)
	assert.Equal(t, "mon-1", got.MonitorID)
	assert.JSONEq(t, `{"n":1}`, string(got.Payload))
	assert.True(t, got.CreatedAt.Equal(baseTime.Add(time.Second)))

	require.NoError(t, o.Ack("e1"))
	got, _, _ = o.Peek()
	assert.Equal(t, "e2", got.ID)
}

func TestOutbox_TrimsOldest(t *testing.T) {
	o, _ := openTemp(t, 2)
	for i := 1; i <= 4; i++ {
		require.NoError(t, o.Push(env(i)))
	}

	n, _ := o.Len()
	assert.Equal(t, 2, n)
	got, _, _ := o.Peek()
	assert.Equal(t, "e3", got.ID)
}

func TestOutbox_DuplicateIDIgnored(t *testing.T) {
	o, _ := openTemp(t, 10)
	require.NoError(t, o.Push(env(1)))
	require.NoError(t, o.Push(env(1)))

	n, _ := o.Len()
	assert.Equal(t, 1, n)
}

func TestOutbox_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outbox.db")

	o, err := Open(path, 10, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, o.Push(env(1)))
	require.NoError(t, o.Push(env(2)))
	require.NoError(t, o.Close())

	o, err = Open(path, 10, zerolog.Nop())
	require.NoError(t, err)
	defer o.Close()

	n, _ := o.Len()
	assert.Equal(t, 2, n)
	got, _, _ := o.Peek()
	assert.Equal(t, "e1", got.ID)
}

func TestOutbox_AckUnknown(t *testing.T) {
	o, _ := openTemp(t, 10)
	assert.NoError(t, o.Ack("nope"))
}

package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkwatch/linkwatch/agent/internal/status"
	"github.com/linkwatch/linkwatch/agent/internal/ws"
	"github.com/linkwatch/linkwatch/pkg/types"
)

const testInterval = 20 * time.Millisecond

func newStore() *status.Store {
	st := status.New("mon-1", 5*time.Minute, zerolog.Nop())
	st.PutConnection(&types.ConnectionSample{SSID: "HomeNet", Status: types.StatusConnected, Signal: -50}, 95, "healthy")
	return st
}

func startHub(t *testing.T, st *status.Store) (string, *ws.Hub) {
	t.Helper()

	hub := ws.New(st, testInterval, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http"), hub
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err, "dial %s", url)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) ws.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg ws.Message
	require.NoError(t, json.Unmarshal(raw, &msg), "raw: %s", raw)
	return msg
}

func TestHub_SnapshotOnConnect(t *testing.T) {
	url, _ := startHub(t, newStore())
	conn := dial(t, url)

	msg := readMessage(t, conn)
	assert.Equal(t, "snapshot", msg.Event)
	assert.Equal(t, "mon-1", msg.Data.MonitorID)
	require.NotNil(t, msg.Data.Connection)
	assert.Equal(t, 95, msg.Data.Connection.Score)
}

func TestHub_Broadcasts(t *testing.T) {
	st := newStore()
	url, _ := startHub(t, st)
	conn := dial(t, url)
	readMessage(t, conn) // initial

	st.PutConnection(&types.ConnectionSample{SSID: "HomeNet"}, 40, "critical")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		msg := readMessage(t, conn)
		if msg.Data.Connection != nil && msg.Data.Connection.Score == 40 {
			return
		}
	}
	t.Fatal("did not receive updated snapshot")
}

func TestHub_Count(t *testing.T) {
	url, hub := startHub(t, newStore())
	conn := dial(t, url)
	readMessage(t, conn)

	assert.Equal(t, 1, hub.Count())

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Count() == 0 },
		2*time.Second, 10*time.Millisecond, "client not removed after close")
}

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/linkwatch/linkwatch/agent/internal/compute"
	"github.com/linkwatch/linkwatch/agent/internal/status"
	"github.com/linkwatch/linkwatch/pkg/types"
)

// Stream is a WebSocket endpoint that can report its client count.
// *ws.Hub satisfies it.
type Stream interface {
	http.Handler
	Count() int
}

// Handler serves the status API from a status.Store.
type Handler struct {
	store      *status.Store
	stream     Stream
	queueDepth func() int
	mux        *http.ServeMux
}

// New creates a Handler. stream may be nil to disable /ws/stream;
// queueDepth may be nil when no shipper queue is present.
func New(st *status.Store, stream Stream, queueDepth func() int) http.Handler {
	if queueDepth == nil {
		queueDepth = func() int { return 0 }
	}
	h := &Handler{store: st, stream: stream, queueDepth: queueDepth, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/incidents", h.incidents)
	h.mux.HandleFunc("/api/v1/services", h.services)
	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)
	h.mux.HandleFunc("/metrics", h.metrics)
	if stream != nil {
		h.mux.Handle("/ws/stream", stream)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	snap := h.store.Snapshot()
	resp := HealthResponse{
		MonitorID:     snap.MonitorID,
		State:         compute.StateUnknown,
		IncidentCount: len(snap.Incidents),
		QueueDepth:    h.queueDepth(),
	}
	resp.ServicesUp, resp.ServicesDown = countServices(snap.Services)

	if c := snap.Connection; c != nil {
		resp.State = c.State
		resp.StabilityScore = c.Score
		resp.LastSample = c.UpdatedAt.UTC().Format(time.RFC3339)
		if c.Sample != nil {
			resp.ConnectionState = string(c.Sample.Status)
			resp.SSID = c.Sample.SSID
		}
	}
	jsonResp(w, http.StatusOK, resp)
}

func (h *Handler) incidents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.store.Incidents())
}

func (h *Handler) services(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.store.Services())
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.store.Snapshot())
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

// countServices splits results into up and not-up.
func countServices(entries []status.ServiceEntry) (up, down int) {
	for _, e := range entries {
		if e.Result.Status == types.CheckUp {
			up++
		} else {
			down++
		}
	}
	return up, down
}

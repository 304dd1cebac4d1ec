package shipper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/linkwatch/linkwatch/agent/internal/apiclient"
	"github.com/linkwatch/linkwatch/pkg/types"
)

// unknownSSID stands in for a hidden or unknown network; the server
// requires a non-empty SSID on incidents.
const unknownSSID = "unknown"

// Doer issues one JSON request. *apiclient.Client satisfies it.
type Doer interface {
	Do(ctx context.Context, method, path string, body, out any) error
}

// HTTPTransport delivers envelopes to the monitoring server's REST API.
//
// The server assigns its own incident ids. HTTPTransport remembers the
// server id returned by each open so the matching resolve can address it.
type HTTPTransport struct {
	client Doer
	log    zerolog.Logger

	mu        sync.Mutex
	incidents map[string]string // local incident id → server id
}

// NewHTTPTransport returns an HTTPTransport using client.
func NewHTTPTransport(client Doer, log zerolog.Logger) *HTTPTransport {
	return &HTTPTransport{
		client:    client,
		log:       log,
		incidents: make(map[string]string),
	}
}

func (t *HTTPTransport) Deliver(ctx context.Context, env Envelope) error {
	var err error
	switch env.Kind {
	case KindIncidentOpen:
		err = t.incidentOpen(ctx, env)
	case KindIncidentResolve:
		err = t.incidentResolve(ctx, env)
	case KindCheckResult:
		err = t.checkResult(ctx, env)
	case KindConnection:
		err = t.connection(ctx, env)
	case KindHeartbeat:
		err = t.heartbeat(ctx, env)
	default:
		return fmt.Errorf("%w: unknown envelope kind %q", ErrPermanent, env.Kind)
	}
	return classify(err)
}

func (t *HTTPTransport) Close() error { return nil }

type incidentRequest struct {
	SSID             string         `json:"ssid"`
	IncidentType     string         `json:"incidentType"`
	TriggerCondition map[string]any `json:"triggerCondition,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

type incidentResponse struct {
	Data struct {
		ID string `json:"_id"`
	} `json:"data"`
}

type conflictResponse struct {
	ExistingIncident string `json:"existingIncident"`
}

func (t *HTTPTransport) incidentOpen(ctx context.Context, env Envelope) error {
	var p IncidentOpen
	if err := env.Decode(&p); err != nil {
		return fmt.Errorf("%w: %v", ErrPermanent, err)
	}

	meta := map[string]any{"localIncidentId": p.Incident.ID, "startTime": p.Incident.StartTime}
	for k, v := range p.Metadata {
		meta[k] = v
	}
	body := incidentRequest{
		SSID:             ssidOrUnknown(p.Incident.SSID),
		IncidentType:     string(p.Incident.Type),
		TriggerCondition: p.Incident.Trigger,
		Metadata:         meta,
	}

	var resp incidentResponse
	err := t.client.Do(ctx, http.MethodPost, "/api/ssid-incidents", body, &resp)

	var se *apiclient.StatusError
	if errors.As(err, &se) && se.Code == http.StatusConflict {
		// Already active on the server: adopt its id.
		var c conflictResponse
		_ = json.Unmarshal([]byte(se.Body), &c)
		t.log.Info().Str("incident_id", p.Incident.ID).Str("server_id", c.ExistingIncident).
			Msg("shipper: incident already active on server")
		if c.ExistingIncident != "" {
			t.remember(p.Incident.ID, c.ExistingIncident)
		}
		return nil
	}
	if err != nil {
		return err
	}
	if resp.Data.ID != "" {
		t.remember(p.Incident.ID, resp.Data.ID)
	}
	return nil
}

func (t *HTTPTransport) incidentResolve(ctx context.Context, env Envelope) error {
	var p IncidentResolve
	if err := env.Decode(&p); err != nil {
		return fmt.Errorf("%w: %v", ErrPermanent, err)
	}

	serverID, ok := t.lookup(p.Incident.ID)
	if !ok {
		return fmt.Errorf("%w: no server id for incident %s", ErrPermanent, p.Incident.ID)
	}

	body := map[string]any{
		"metadata": map[string]any{
			"durationSeconds": p.DurationSeconds,
			"resolvedAt":      p.ResolvedAt,
		},
	}
	path := "/api/ssid-incidents/" + url.PathEscape(serverID) + "/resolve"
	if err := t.client.Do(ctx, http.MethodPatch, path, body, nil); err != nil {
		return err
	}
	t.forget(p.Incident.ID)
	return nil
}

type checkRequest struct {
	Status       types.CheckStatus `json:"status"`
	Latency      *float64          `json:"latency,omitempty"`
	PacketLoss   *float64          `json:"packetLoss,omitempty"`
	Jitter       *float64          `json:"jitter,omitempty"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
	CertDaysLeft *int              `json:"certDaysLeft,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
}

func (t *HTTPTransport) checkResult(ctx context.Context, env Envelope) error {
	var p CheckResult
	if err := env.Decode(&p); err != nil {
		return fmt.Errorf("%w: %v", ErrPermanent, err)
	}
	r := p.Result
	body := checkRequest{
		Status:       r.Status,
		Latency:      r.Latency,
		PacketLoss:   r.PacketLoss,
		Jitter:       r.Jitter,
		ErrorMessage: r.ErrorMessage,
		CertDaysLeft: r.CertDaysLeft,
		Timestamp:    r.Timestamp.UTC(),
	}
	path := "/api/service-monitors/" + url.PathEscape(p.ServiceID) + "/check"
	return t.client.Do(ctx, http.MethodPut, path, body, nil)
}

type connectionRequest struct {
	MonitorID        string                 `json:"monitorId"`
	SSID             string                 `json:"ssid"`
	BSSID            string                 `json:"bssid,omitempty"`
	ConnectionStatus types.ConnectionStatus `json:"connectionStatus"`
	SignalStrength   int                    `json:"signalStrength"`
	Quality          int                    `json:"quality"`
	LinkSpeed        *float64               `json:"linkSpeed,omitempty"`
	NetworkLatency   *float64               `json:"networkLatency,omitempty"`
	PacketLoss       *float64               `json:"packetLoss,omitempty"`
	Jitter           *float64               `json:"jitter,omitempty"`
	StabilityScore   int                    `json:"stabilityScore"`
	Timestamp        time.Time              `json:"timestamp"`
}

func (t *HTTPTransport) connection(ctx context.Context, env Envelope) error {
	var p Connection
	if err := env.Decode(&p); err != nil {
		return fmt.Errorf("%w: %v", ErrPermanent, err)
	}
	s := p.Sample
	if s.SSID == "" {
		// The server rejects reports without an SSID.
		t.log.Debug().Str("status", string(s.Status)).Msg("shipper: no ssid, skipping connection report")
		return nil
	}
	body := connectionRequest{
		MonitorID:        env.MonitorID,
		SSID:             s.SSID,
		BSSID:            s.BSSID,
		ConnectionStatus: s.Status,
		SignalStrength:   s.Signal,
		Quality:          s.Quality,
		LinkSpeed:        s.LinkSpeed,
		NetworkLatency:   s.NetworkLatency,
		PacketLoss:       s.PacketLoss,
		Jitter:           s.Jitter,
		StabilityScore:   p.Score,
		Timestamp:        s.Timestamp.UTC(),
	}
	return t.client.Do(ctx, http.MethodPost, "/api/ssid-analyzer/connection", body, nil)
}

func (t *HTTPTransport) heartbeat(ctx context.Context, env Envelope) error {
	var p Heartbeat
	if err := env.Decode(&p); err != nil {
		return fmt.Errorf("%w: %v", ErrPermanent, err)
	}
	body := map[string]any{
		"monitor_id": env.MonitorID,
		"timestamp":  p.Timestamp,
		"status":     p.Status,
		"uptime":     p.UptimeSec,
	}
	return t.client.Do(ctx, http.MethodPost, "/api/monitors/heartbeat", body, nil)
}

func (t *HTTPTransport) remember(localID, serverID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.incidents[localID] = serverID
}

func (t *HTTPTransport) lookup(localID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.incidents[localID]
	return id, ok
}

func (t *HTTPTransport) forget(localID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.incidents, localID)
}

// classify wraps client errors that retrying cannot fix with ErrPermanent.
// 4xx responses are permanent except 408, 409 and 429; everything else,
// including transport errors and 5xx, is transient.
func classify(err error) error {
	if err == nil || errors.Is(err, ErrPermanent) {
		return err
	}
	var se *apiclient.StatusError
	if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 {
		switch se.Code {
		case http.StatusRequestTimeout, http.StatusConflict, http.StatusTooManyRequests:
			return err
		}
		return fmt.Errorf("%w: %v", ErrPermanent, err)
	}
	return err
}

func ssidOrUnknown(ssid string) string {
	if ssid == "" {
		return unknownSSID
	}
	return ssid
}

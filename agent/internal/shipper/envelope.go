package shipper

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/linkwatch/linkwatch/pkg/types"
)

// Kind names the payload carried by an Envelope.
type Kind string

const (
	KindIncidentOpen    Kind = "incident_open"
	KindIncidentResolve Kind = "incident_resolve"
	KindCheckResult     Kind = "check_result"
	KindConnection      Kind = "connection"
	KindHeartbeat       Kind = "heartbeat"
)

// Envelope is the unit of delivery. Payload holds the JSON encoding of the
// kind-specific struct below so envelopes can be spooled to disk unchanged.
type Envelope struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	MonitorID string          `json:"monitor_id"`
	CreatedAt time.Time       `json:"created_at"`
	Payload   json.RawMessage `json:"payload"`
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("shipper: decode %s payload: %w", e.Kind, err)
	}
	return nil
}

// IncidentOpen is the payload of KindIncidentOpen.
type IncidentOpen struct {
	Incident types.Incident `json:"incident"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// IncidentResolve is the payload of KindIncidentResolve.
type IncidentResolve struct {
	Incident        types.Incident `json:"incident"`
	DurationSeconds float64        `json:"duration_seconds"`
	ResolvedAt      time.Time      `json:"resolved_at"`
}

// CheckResult is the payload of KindCheckResult.
type CheckResult struct {
	ServiceID string            `json:"service_id"`
	Result    types.CheckResult `json:"result"`
}

// Connection is the payload of KindConnection.
type Connection struct {
	Sample types.ConnectionSample `json:"sample"`
	Score  int                    `json:"stability_score"`
}

// Heartbeat is the payload of KindHeartbeat.
type Heartbeat struct {
	Status    string    `json:"status"`
	UptimeSec uint64    `json:"uptime"`
	Timestamp time.Time `json:"timestamp"`
}

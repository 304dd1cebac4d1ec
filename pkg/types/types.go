package types

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConnectionStatus is the association state of the wireless interface.
type ConnectionStatus string

const (
	StatusConnected    ConnectionStatus = "connected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusError        ConnectionStatus = "error"
)

// ConnectionSample is one observation of the uplink.
// A missing sample is represented by a nil *ConnectionSample, never by a
// zero-valued struct.
type ConnectionSample struct {
	SSID   string           `json:"ssid"`
	BSSID  string           `json:"bssid,omitempty"` // empty when unknown
	Status ConnectionStatus `json:"connection_status"`

	// Signal is the received signal strength in dBm (typically -100..0).
	Signal int `json:"signal_strength"`

	// Quality is the link quality percentage (0–100).
	Quality int `json:"quality"`

	LinkSpeed      *float64 `json:"link_speed,omitempty"`      // Mbit/s
	NetworkLatency *float64 `json:"network_latency,omitempty"` // ms
	PacketLoss     *float64 `json:"packet_loss,omitempty"`     // %
	Jitter         *float64 `json:"jitter,omitempty"`          // ms

	Timestamp time.Time `json:"timestamp"`
}

// IncidentType names an independently tracked degraded condition.
type IncidentType string

const (
	IncidentDisconnection IncidentType = "disconnection"
	IncidentSignalDrop    IncidentType = "signal_drop"
)

// Incident is an open-ended degraded period with an explicit lifecycle.
type Incident struct {
	ID        string         `json:"id"`
	Type      IncidentType   `json:"incident_type"`
	SSID      string         `json:"ssid"`
	Trigger   map[string]any `json:"trigger_condition"`
	StartTime time.Time      `json:"start_time"`
	Resolved  bool           `json:"resolved"`
}

// Clone returns a copy of i whose Trigger map can be modified independently.
func (i Incident) Clone() Incident {
	out := i
	if i.Trigger != nil {
		out.Trigger = make(map[string]any, len(i.Trigger))
		for k, v := range i.Trigger {
			out.Trigger[k] = v
		}
	}
	return out
}

// IncidentAction is the lifecycle transition carried by an IncidentEvent.
type IncidentAction string

const (
	ActionOpen    IncidentAction = "open"
	ActionResolve IncidentAction = "resolve"
)

// IncidentEvent is emitted by the detector on every open or resolve.
type IncidentEvent struct {
	Action   IncidentAction `json:"action"`
	Incident Incident       `json:"incident"`

	// Duration is set on resolve events only.
	Duration time.Duration `json:"duration"`
	At       time.Time     `json:"at"`
}

// ServiceType selects the protocol checker used for a service.
type ServiceType string

const (
	ServicePing  ServiceType = "ping"
	ServiceHTTP  ServiceType = "http"
	ServiceHTTPS ServiceType = "https"
	ServiceTCP   ServiceType = "tcp"
	ServiceUDP   ServiceType = "udp"
)

// Valid reports whether t is one of the supported protocol types.
func (t ServiceType) Valid() bool {
	switch t {
	case ServicePing, ServiceHTTP, ServiceHTTPS, ServiceTCP, ServiceUDP:
		return true
	}
	return false
}

// DefaultPort returns the port used when a ServiceConfig leaves Port unset.
// Ping has no port and returns 0.
func (t ServiceType) DefaultPort() int {
	switch t {
	case ServiceHTTP, ServiceTCP:
		return 80
	case ServiceHTTPS:
		return 443
	case ServiceUDP:
		return 53
	}
	return 0
}

// DefaultPacketCount is the number of echo requests sent when PacketCount is 0.
const DefaultPacketCount = 4

// ServiceConfig describes one remote service to check.
type ServiceConfig struct {
	ID          string        `json:"id" yaml:"id"`
	Name        string        `json:"name" yaml:"name"`
	Target      string        `json:"target" yaml:"target"`
	Type        ServiceType   `json:"type" yaml:"type"`
	Port        int           `json:"port,omitempty" yaml:"port"`
	Interval    time.Duration `json:"interval" yaml:"interval"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`
	PacketCount int           `json:"packet_count,omitempty" yaml:"packet_count"`
	Enabled     bool          `json:"enabled" yaml:"enabled"`
}

// UnmarshalYAML decodes a service definition. Enabled defaults to true when
// the key is absent, matching services fetched from the server.
func (s *ServiceConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain ServiceConfig
	p := plain{Enabled: true}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*s = ServiceConfig(p)
	return nil
}

// EffectivePort returns Port, or the protocol default when Port is unset.
func (s ServiceConfig) EffectivePort() int {
	if s.Port > 0 {
		return s.Port
	}
	return s.Type.DefaultPort()
}

// EffectivePacketCount returns PacketCount, or DefaultPacketCount when unset.
func (s ServiceConfig) EffectivePacketCount() int {
	if s.PacketCount > 0 {
		return s.PacketCount
	}
	return DefaultPacketCount
}

// Validate checks the structural constraints of a service definition.
func (s ServiceConfig) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("service id is required")
	}
	if s.Target == "" {
		return fmt.Errorf("service %q: target is required", s.ID)
	}
	if strings.Contains(s.Target, "://") {
		// The checker supplies scheme and port from Type and Port.
		return fmt.Errorf("service %q: target %q must be a host, not a URL", s.ID, s.Target)
	}
	if !s.Type.Valid() {
		return fmt.Errorf("service %q: unknown type %q", s.ID, s.Type)
	}
	if s.Interval <= 0 {
		return fmt.Errorf("service %q: interval must be positive", s.ID)
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("service %q: timeout must be positive", s.ID)
	}
	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("service %q: port %d out of range", s.ID, s.Port)
	}
	return nil
}

// CheckStatus is the normalized outcome of a protocol check.
type CheckStatus string

const (
	CheckUp      CheckStatus = "up"
	CheckDown    CheckStatus = "down"
	CheckTimeout CheckStatus = "timeout"
	CheckError   CheckStatus = "error"
)

// CheckResult is the normalized output of one protocol check.
type CheckResult struct {
	ServiceID    string      `json:"service_id"`
	Status       CheckStatus `json:"status"`
	Latency      *float64    `json:"latency,omitempty"`     // ms
	PacketLoss   *float64    `json:"packet_loss,omitempty"` // %
	Jitter       *float64    `json:"jitter,omitempty"`      // ms
	ErrorMessage string      `json:"error_message,omitempty"`

	// CertDaysLeft is the remaining validity of the leaf certificate for
	// https checks. Nil for every other protocol.
	CertDaysLeft *int `json:"cert_days_left,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Float returns a pointer to v. It is a convenience for filling optional
// measurement fields.
func Float(v float64) *float64 { return &v }

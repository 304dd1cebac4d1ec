package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/linkwatch/linkwatch/agent/internal/logger"
	"github.com/linkwatch/linkwatch/pkg/types"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultSampleInterval    = 30 * time.Second
	DefaultPollInterval      = 10 * time.Second
	DefaultFetchBackoff      = 30 * time.Second
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultBufferSize        = 1000
	DefaultInterface         = "wlan0"
	DefaultLatencyPingCount  = 3
	DefaultOutboxMaxRows     = 10000
	DefaultSubjectPrefix     = "linkwatch"
	DefaultAPIKeyHeader      = "X-API-Key"

	// Per-service defaults, matching the values the server assigns.
	DefaultServiceInterval = 60 * time.Second
	DefaultServiceTimeout  = 5 * time.Second
)

// Registry selectors for AgentConfig.Registry.
const (
	RegistryServer = "server"
	RegistryFile   = "file"
)

// Transport selectors for TransportConfig.Type.
const (
	TransportHTTP = "http"
	TransportNATS = "nats"
)

// Config is the top-level agent configuration.
type Config struct {
	Log   logger.Config `yaml:"log"`
	Agent AgentConfig   `yaml:"agent"`
}

// AgentConfig holds all agent-side settings.
type AgentConfig struct {
	// MonitorID identifies this agent to the server.
	MonitorID string `yaml:"monitor_id"`

	// ServerURL is the base URL of the monitoring server (scheme://host:port).
	ServerURL string `yaml:"server_url"`

	// Interface is the wireless interface sampled by the nmcli source.
	Interface string `yaml:"interface"`

	// SampleInterval is the connection sampling cadence.
	SampleInterval time.Duration `yaml:"sample_interval"`

	// PollInterval is the prober's wait between config refreshes.
	PollInterval time.Duration `yaml:"poll_interval"`

	// FetchBackoff replaces PollInterval after a failed config refresh.
	FetchBackoff time.Duration `yaml:"fetch_backoff"`

	// HeartbeatInterval controls how often a heartbeat is enqueued.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// BufferSize bounds the in-memory delivery queue.
	BufferSize int `yaml:"buffer_size"`

	// LatencyTarget is pinged on every sample to fill latency/loss/jitter.
	// Empty disables those measurements.
	LatencyTarget    string `yaml:"latency_target"`
	LatencyPingCount int    `yaml:"latency_ping_count"`

	// Registry selects where service definitions come from: server | file.
	Registry string `yaml:"registry"`

	// Listen is the address of the local status API. Empty disables it.
	Listen string `yaml:"listen"`

	Auth      AuthConfig      `yaml:"auth"`
	TLS       TLSConfig       `yaml:"tls"`
	Probe     ProbeConfig     `yaml:"probe"`
	Transport TransportConfig `yaml:"transport"`
	Outbox    OutboxConfig    `yaml:"outbox"`

	// Services is the static service list used when Registry is "file".
	Services []types.ServiceConfig `yaml:"services"`
}

// AuthConfig specifies how the agent authenticates to the server.
type AuthConfig struct {
	// Mode is one of: mtls | apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// mTLS fields, used when Mode == "mtls".
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// Header is the HTTP header carrying the API key. Defaults to X-API-Key.
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	// TokenEnv holds the bearer token variable name.
	TokenEnv string `yaml:"token_env"`

	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string {
	if a.TokenEnv == "" {
		return ""
	}
	return os.Getenv(a.TokenEnv)
}

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string {
	if a.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(a.PasswordEnv)
}

// TLSConfig holds TLS dial options for the server connection.
type TLSConfig struct {
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// ProbeConfig holds options shared by the protocol checkers.
type ProbeConfig struct {
	// InsecureSkipVerify disables certificate verification for https checks.
	// Probes measure reachability, so this defaults to true.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// TransportConfig selects how reports leave the agent.
type TransportConfig struct {
	// Type is http | nats.
	Type string `yaml:"type"`

	// NATSURL is the server URL used when Type is "nats".
	NATSURL string `yaml:"nats_url"`

	// SubjectPrefix is prepended to every published subject.
	SubjectPrefix string `yaml:"subject_prefix"`
}

// OutboxConfig configures the durable SQLite delivery queue.
type OutboxConfig struct {
	// Path is the SQLite file. Empty keeps the queue in memory.
	Path string `yaml:"path"`

	// MaxRows bounds the outbox; the oldest rows are dropped first.
	MaxRows int `yaml:"max_rows"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	applyServiceDefaults(cfg.Agent.Services)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			Interface:         DefaultInterface,
			SampleInterval:    DefaultSampleInterval,
			PollInterval:      DefaultPollInterval,
			FetchBackoff:      DefaultFetchBackoff,
			HeartbeatInterval: DefaultHeartbeatInterval,
			BufferSize:        DefaultBufferSize,
			LatencyPingCount:  DefaultLatencyPingCount,
			Registry:          RegistryServer,
			Probe:             ProbeConfig{InsecureSkipVerify: true},
			Transport: TransportConfig{
				Type:          TransportHTTP,
				SubjectPrefix: DefaultSubjectPrefix,
			},
			Outbox: OutboxConfig{MaxRows: DefaultOutboxMaxRows},
		},
	}
}

// applyServiceDefaults fills per-service fields left at their zero value.
// Enabled is defaulted during decoding by types.ServiceConfig.UnmarshalYAML.
func applyServiceDefaults(svcs []types.ServiceConfig) {
	for i := range svcs {
		if svcs[i].Name == "" {
			svcs[i].Name = svcs[i].ID
		}
		if svcs[i].Interval == 0 {
			svcs[i].Interval = DefaultServiceInterval
		}
		if svcs[i].Timeout == 0 {
			svcs[i].Timeout = DefaultServiceTimeout
		}
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	a := cfg.Agent
	if a.MonitorID == "" {
		return fmt.Errorf("agent.monitor_id is required")
	}
	if a.SampleInterval <= 0 {
		return fmt.Errorf("agent.sample_interval must be positive")
	}
	if a.PollInterval <= 0 {
		return fmt.Errorf("agent.poll_interval must be positive")
	}
	if a.FetchBackoff <= 0 {
		return fmt.Errorf("agent.fetch_backoff must be positive")
	}
	if a.HeartbeatInterval <= 0 {
		return fmt.Errorf("agent.heartbeat_interval must be positive")
	}
	if a.BufferSize <= 0 {
		return fmt.Errorf("agent.buffer_size must be positive")
	}
	if a.LatencyPingCount <= 0 {
		return fmt.Errorf("agent.latency_ping_count must be positive")
	}
	if a.Outbox.Path != "" && a.Outbox.MaxRows <= 0 {
		return fmt.Errorf("agent.outbox.max_rows must be positive")
	}

	switch a.Registry {
	case RegistryServer, RegistryFile:
	default:
		return fmt.Errorf("agent.registry: unknown value %q", a.Registry)
	}

	switch a.Transport.Type {
	case TransportHTTP:
	case TransportNATS:
		if a.Transport.NATSURL == "" {
			return fmt.Errorf("agent.transport.nats_url is required for nats transport")
		}
	default:
		return fmt.Errorf("agent.transport.type: unknown value %q", a.Transport.Type)
	}

	if a.ServerURL == "" && (a.Registry == RegistryServer || a.Transport.Type == TransportHTTP) {
		return fmt.Errorf("agent.server_url is required")
	}

	switch a.Auth.Mode {
	case "mtls", "apikey", "bearer", "basic", "none", "":
	default:
		return fmt.Errorf("agent.auth: unknown mode %q", a.Auth.Mode)
	}

	seen := make(map[string]bool, len(a.Services))
	for i, svc := range a.Services {
		if err := svc.Validate(); err != nil {
			return fmt.Errorf("services[%d]: %w", i, err)
		}
		if seen[svc.ID] {
			return fmt.Errorf("services[%d]: duplicate id %q", i, svc.ID)
		}
		seen[svc.ID] = true
	}
	return nil
}

// APIKeyHeader returns the configured header name, defaulting to X-API-Key.
func (a AuthConfig) APIKeyHeader() string {
	if a.Header == "" {
		return DefaultAPIKeyHeader
	}
	return a.Header
}

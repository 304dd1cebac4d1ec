package registry

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/linkwatch/linkwatch/agent/internal/config"
	"github.com/linkwatch/linkwatch/pkg/types"
)

// Doer issues one JSON request. *apiclient.Client satisfies it.
type Doer interface {
	Do(ctx context.Context, method, path string, body, out any) error
}

// Server reads service definitions from the monitoring server.
type Server struct {
	client    Doer
	monitorID string
	log       zerolog.Logger
}

// NewServer returns a Server registry for monitorID.
func NewServer(client Doer, monitorID string, log zerolog.Logger) *Server {
	return &Server{client: client, monitorID: monitorID, log: log}
}

// serviceDTO is the server's representation of a service monitor.
// Optional fields are pointers so absent values take the defaults.
type serviceDTO struct {
	ID          string   `json:"_id"`
	ServiceName string   `json:"serviceName"`
	Target      string   `json:"target"`
	Type        string   `json:"type"`
	Port        *int     `json:"port"`
	Interval    *float64 `json:"interval"` // seconds
	Timeout     *float64 `json:"timeout"`  // seconds
	PacketCount *int     `json:"packetCount"`
	Enabled     *bool    `json:"enabled"`
}

// Services fetches and converts the current service set.
func (s *Server) Services(ctx context.Context) ([]types.ServiceConfig, error) {
	var dtos []serviceDTO
	path := "/api/service-monitors/monitor/" + url.PathEscape(s.monitorID)
	if err := s.client.Do(ctx, http.MethodGet, path, nil, &dtos); err != nil {
		return nil, fmt.Errorf("registry: fetch services: %w", err)
	}

	out := make([]types.ServiceConfig, 0, len(dtos))
	for _, d := range dtos {
		svc := d.toConfig()
		if err := svc.Validate(); err != nil {
			s.log.Warn().Err(err).Str("service", d.ID).Msg("registry: skipping invalid service")
			continue
		}
		out = append(out, svc)
	}
	return out, nil
}

func (d serviceDTO) toConfig() types.ServiceConfig {
	svc := types.ServiceConfig{
		ID:       d.ID,
		Name:     d.ServiceName,
		Target:   d.Target,
		Type:     types.ServiceType(d.Type),
		Interval: config.DefaultServiceInterval,
		Timeout:  config.DefaultServiceTimeout,
		Enabled:  true,
	}
	if svc.Type == "" {
		svc.Type = types.ServicePing
	}
	if svc.Name == "" {
		svc.Name = d.ID
	}
	if d.Port != nil {
		svc.Port = *d.Port
	}
	if d.Interval != nil {
		svc.Interval = seconds(*d.Interval)
	}
	if d.Timeout != nil {
		svc.Timeout = seconds(*d.Timeout)
	}
	if d.PacketCount != nil {
		svc.PacketCount = *d.PacketCount
	}
	if d.Enabled != nil {
		svc.Enabled = *d.Enabled
	}
	return svc
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

package sampler

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/linkwatch/linkwatch/agent/internal/config"
	"github.com/linkwatch/linkwatch/agent/internal/pinger"
	"github.com/linkwatch/linkwatch/pkg/types"
)

// Source takes one connection sample per call.
type Source interface {
	Sample(ctx context.Context) (*types.ConnectionSample, error)
}

// New returns the NetworkManager-backed Source for the agent config.
func New(cfg config.AgentConfig, log zerolog.Logger) (Source, error) {
	if cfg.Interface == "" {
		return nil, fmt.Errorf("sampler: interface is required")
	}
	src := NewNMCLI(cfg.Interface, pinger.ExecRunner, log)
	if cfg.LatencyTarget != "" {
		src.WithLatency(pinger.New(nil), cfg.LatencyTarget, cfg.LatencyPingCount)
	}
	return src, nil
}

// Static replays a fixed sequence of samples, then repeats the last one.
// A nil entry yields an absent sample.
type Static struct {
	mu      sync.Mutex
	samples []*types.ConnectionSample
	next    int
}

// NewStatic returns a Static source over samples.
func NewStatic(samples ...*types.ConnectionSample) *Static {
	return &Static{samples: samples}
}

func (s *Static) Sample(context.Context) (*types.ConnectionSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.samples) == 0 {
		return nil, nil
	}
	i := s.next
	if i >= len(s.samples) {
		i = len(s.samples) - 1
	} else {
		s.next++
	}
	if s.samples[i] == nil {
		return nil, nil
	}
	c := *s.samples[i]
	return &c, nil
}

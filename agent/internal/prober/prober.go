package prober

//go:generate mockgen -destination=mock_prober.go -package=prober github.com/linkwatch/linkwatch/agent/internal/prober Registry,Sink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/linkwatch/linkwatch/pkg/types"
)

// Loop-level waits between refresh cycles.
const (
	DefaultPollInterval = 10 * time.Second
	DefaultFetchBackoff = 30 * time.Second
)

// Registry supplies the set of services to probe.
type Registry interface {
	Services(ctx context.Context) ([]types.ServiceConfig, error)
}

// Sink receives normalized check results. It must not block.
type Sink interface {
	ReportCheckResult(serviceID string, res types.CheckResult) bool
}

// Prober schedules protocol checks on independent per-service intervals.
//
// The service set is replaced wholesale on every successful Refresh. Only
// the last-checked timestamps of ids still present survive a refresh.
type Prober struct {
	log      zerolog.Logger
	registry Registry
	sink     Sink
	checkers map[types.ServiceType]Checker

	pollInterval time.Duration
	fetchBackoff time.Duration

	mu          sync.Mutex
	services    []types.ServiceConfig
	lastChecked map[string]time.Time

	inflight sync.WaitGroup

	// Replaced in tests.
	now  func() time.Time
	wait func(ctx context.Context, d time.Duration) bool
}

// Options configures a Prober. Zero durations take the package defaults.
type Options struct {
	PollInterval time.Duration
	FetchBackoff time.Duration
}

// New returns a Prober that reads services from reg, runs them through
// checkers and pushes results to sink.
func New(reg Registry, sink Sink, checkers map[types.ServiceType]Checker, opts Options, log zerolog.Logger) *Prober {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.FetchBackoff <= 0 {
		opts.FetchBackoff = DefaultFetchBackoff
	}
	return &Prober{
		log:          log,
		registry:     reg,
		sink:         sink,
		checkers:     checkers,
		pollInterval: opts.PollInterval,
		fetchBackoff: opts.FetchBackoff,
		lastChecked:  make(map[string]time.Time),
		now:          time.Now,
		wait:         sleep,
	}
}

// Refresh fetches the service set from the registry. On failure the
// previous set stays in place.
func (p *Prober) Refresh(ctx context.Context) error {
	svcs, err := p.registry.Services(ctx)
	if err != nil {
		return fmt.Errorf("prober: fetch services: %w", err)
	}

	next := make([]types.ServiceConfig, len(svcs))
	copy(next, svcs)

	present := make(map[string]struct{}, len(next))
	for _, s := range next {
		present[s.ID] = struct{}{}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.services = next
	for id := range p.lastChecked {
		if _, ok := present[id]; !ok {
			delete(p.lastChecked, id)
		}
	}
	return nil
}

// Services returns a copy of the current service set.
func (p *Prober) Services() []types.ServiceConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.ServiceConfig, len(p.services))
	copy(out, p.services)
	return out
}

// Dispatch starts a check for every enabled service whose interval has
// elapsed and returns how many were started. It never waits for a check.
func (p *Prober) Dispatch(ctx context.Context) int {
	now := p.now()

	p.mu.Lock()
	var due []types.ServiceConfig
	for _, svc := range p.services {
		if !svc.Enabled {
			continue
		}
		last, seen := p.lastChecked[svc.ID]
		if seen && now.Sub(last) < svc.Interval {
			continue
		}
		p.lastChecked[svc.ID] = now
		due = append(due, svc)
	}
	p.mu.Unlock()

	for _, svc := range due {
		p.inflight.Add(1)
		go func(svc types.ServiceConfig) {
			defer p.inflight.Done()
			p.runCheck(ctx, svc)
		}(svc)
	}
	return len(due)
}

// Run alternates Refresh and Dispatch until ctx is cancelled. After a
// failed refresh it waits FetchBackoff instead of PollInterval, and still
// dispatches against the retained set.
func (p *Prober) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		wait := p.pollInterval
		if err := p.Refresh(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.Warn().Err(err).Dur("backoff", p.fetchBackoff).
				Msg("prober: service refresh failed, keeping previous set")
			wait = p.fetchBackoff
		}

		if n := p.Dispatch(ctx); n > 0 {
			p.log.Debug().Int("checks", n).Msg("prober: dispatched")
		}
		if !p.wait(ctx, wait) {
			return
		}
	}
}

// sleep waits for d and reports false if ctx was cancelled first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Wait blocks until every in-flight check has finished.
func (p *Prober) Wait() {
	p.inflight.Wait()
}

// runCheck executes one check with its deadline and pushes the result.
func (p *Prober) runCheck(ctx context.Context, svc types.ServiceConfig) {
	deadline := svc.Timeout
	if svc.Type == types.ServicePing {
		deadline = svc.Timeout * time.Duration(svc.EffectivePacketCount())
	}
	checkCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	res := p.safeCheck(checkCtx, svc)
	res.ServiceID = svc.ID
	res.Timestamp = p.now()

	if ctx.Err() != nil {
		// Shutting down; drop the result.
		return
	}

	p.log.Debug().Str("service", svc.ID).Str("type", string(svc.Type)).
		Str("status", string(res.Status)).Msg("prober: check complete")

	if !p.sink.ReportCheckResult(svc.ID, res) {
		p.log.Warn().Str("service", svc.ID).Msg("prober: sink rejected check result")
	}
}

// safeCheck converts unknown types and checker panics into error results.
func (p *Prober) safeCheck(ctx context.Context, svc types.ServiceConfig) (res types.CheckResult) {
	checker, ok := p.checkers[svc.Type]
	if !ok {
		return errorResult(fmt.Sprintf("Unsupported service type: %s", svc.Type))
	}
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Str("service", svc.ID).Str("panic", fmt.Sprint(r)).
				Msg("prober: checker panicked")
			res = errorResult(fmt.Sprintf("check failed: %v", r))
		}
	}()
	return checker.Check(ctx, svc)
}

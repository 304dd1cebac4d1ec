package shipper

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/host"

	"github.com/linkwatch/linkwatch/pkg/types"
)

const (
	deliverTimeout = 10 * time.Second

	// idlePoll rechecks the queue when no push notification arrived, which
	// picks up envelopes spooled by a previous run.
	idlePoll = 5 * time.Second
)

// ErrPermanent marks a delivery failure that retrying cannot fix. The
// envelope is dropped.
var ErrPermanent = errors.New("permanent delivery failure")

// Transport delivers one envelope to its destination.
type Transport interface {
	Deliver(ctx context.Context, env Envelope) error
	Close() error
}

// Shipper queues reports and delivers them through a Transport.
// The Report* methods never block on delivery; Run must be called in a
// goroutine to drain the queue.
type Shipper struct {
	monitorID string
	queue     Queue
	transport Transport
	log       zerolog.Logger
	notify    chan struct{}

	// Replaced in tests.
	now    func() time.Time
	newID  func() string
	uptime func(ctx context.Context) (uint64, error)
}

// New returns a Shipper for monitorID that buffers in q and delivers via t.
func New(monitorID string, q Queue, t Transport, log zerolog.Logger) *Shipper {
	return &Shipper{
		monitorID: monitorID,
		queue:     q,
		transport: t,
		log:       log,
		notify:    make(chan struct{}, 1),
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
		uptime:    host.UptimeWithContext,
	}
}

// ReportIncidentOpen queues an incident open report.
func (s *Shipper) ReportIncidentOpen(inc types.Incident, metadata map[string]any) bool {
	return s.enqueue(KindIncidentOpen, IncidentOpen{Incident: inc, Metadata: metadata})
}

// ReportIncidentResolve queues an incident resolve report.
func (s *Shipper) ReportIncidentResolve(inc types.Incident, duration time.Duration, resolvedAt time.Time) bool {
	return s.enqueue(KindIncidentResolve, IncidentResolve{
		Incident:        inc,
		DurationSeconds: duration.Seconds(),
		ResolvedAt:      resolvedAt.UTC(),
	})
}

// ReportCheckResult queues a service check result.
func (s *Shipper) ReportCheckResult(serviceID string, res types.CheckResult) bool {
	return s.enqueue(KindCheckResult, CheckResult{ServiceID: serviceID, Result: res})
}

// ReportConnection queues the per-tick connection status.
func (s *Shipper) ReportConnection(sample types.ConnectionSample, score int) bool {
	return s.enqueue(KindConnection, Connection{Sample: sample, Score: score})
}

// QueueDepth returns the number of envelopes awaiting delivery, or -1 if
// the queue cannot be read.
func (s *Shipper) QueueDepth() int {
	n, err := s.queue.Len()
	if err != nil {
		return -1
	}
	return n
}

func (s *Shipper) enqueue(kind Kind, payload any) bool {
	raw, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("kind", string(kind)).Msg("shipper: encode payload failed")
		return false
	}
	env := Envelope{
		ID:        s.newID(),
		Kind:      kind,
		MonitorID: s.monitorID,
		CreatedAt: s.now().UTC(),
		Payload:   raw,
	}
	if err := s.queue.Push(env); err != nil {
		s.log.Error().Err(err).Str("kind", string(kind)).Msg("shipper: enqueue failed")
		return false
	}

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return true
}

// Run drains the queue in FIFO order until ctx is cancelled. A transient
// failure retries the same envelope after backoff; a permanent one drops it.
func (s *Shipper) Run(ctx context.Context) {
	bo := newBackoff()

	for {
		if ctx.Err() != nil {
			return
		}

		env, ok, err := s.queue.Peek()
		if err != nil {
			s.log.Error().Err(err).Msg("shipper: read queue failed")
			if !s.sleep(ctx, bo.next()) {
				return
			}
			continue
		}
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-s.notify:
			case <-time.After(idlePoll):
			}
			continue
		}

		sendCtx, cancel := context.WithTimeout(ctx, deliverTimeout)
		err = s.transport.Deliver(sendCtx, env)
		cancel()

		switch {
		case err == nil:
			s.log.Debug().Str("kind", string(env.Kind)).Str("id", env.ID).Msg("shipper: delivered")
			s.ack(env)
			bo.reset()

		case errors.Is(err, ErrPermanent):
			s.log.Error().Err(err).Str("kind", string(env.Kind)).Str("id", env.ID).
				Msg("shipper: permanent delivery error, discarding envelope")
			s.ack(env)

		default:
			if ctx.Err() != nil {
				return
			}
			wait := bo.next()
			s.log.Warn().Err(err).Str("kind", string(env.Kind)).Dur("retry_in", wait).
				Msg("shipper: delivery failed, will retry")
			if !s.sleep(ctx, wait) {
				return
			}
		}
	}
}

// RunHeartbeat enqueues a heartbeat immediately and then every interval
// until ctx is cancelled.
func (s *Shipper) RunHeartbeat(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.heartbeat(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Shipper) heartbeat(ctx context.Context) bool {
	up, err := s.uptime(ctx)
	if err != nil {
		s.log.Debug().Err(err).Msg("shipper: host uptime unavailable")
	}
	return s.enqueue(KindHeartbeat, Heartbeat{
		Status:    "active",
		UptimeSec: up,
		Timestamp: s.now().UTC(),
	})
}

func (s *Shipper) ack(env Envelope) {
	if err := s.queue.Ack(env.ID); err != nil {
		s.log.Error().Err(err).Str("id", env.ID).Msg("shipper: ack failed")
	}
}

// sleep waits for d and reports false if ctx was cancelled first.
func (s *Shipper) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

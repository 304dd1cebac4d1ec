// Package runner drives the agent's sampling loop.
//
// Every tick takes one connection sample, scores it, feeds it to the
// incident detector and hands the results to the sink and the status
// store. Runner also sits between the prober and the sink so check results
// reach the status API.
package runner

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/linkwatch/linkwatch/agent/internal/compute"
	"github.com/linkwatch/linkwatch/agent/internal/sampler"
	"github.com/linkwatch/linkwatch/agent/internal/status"
	"github.com/linkwatch/linkwatch/pkg/types"
)

// sampleTimeout bounds one Sample call, including the latency ping.
const sampleTimeout = 15 * time.Second

// Sink receives everything the agent reports. *shipper.Shipper satisfies it.
type Sink interface {
	ReportIncidentOpen(inc types.Incident, metadata map[string]any) bool
	ReportIncidentResolve(inc types.Incident, duration time.Duration, resolvedAt time.Time) bool
	ReportCheckResult(serviceID string, res types.CheckResult) bool
	ReportConnection(sample types.ConnectionSample, score int) bool
}

// Runner owns the sample → score → detect pipeline.
type Runner struct {
	source   sampler.Source
	detector *compute.Detector
	sink     Sink
	store    *status.Store
	interval time.Duration
	log      zerolog.Logger

	lastState string
}

// New returns a Runner sampling src every interval. store may be nil when
// the status API is disabled.
func New(src sampler.Source, det *compute.Detector, sink Sink, store *status.Store, interval time.Duration, log zerolog.Logger) *Runner {
	return &Runner{
		source:   src,
		detector: det,
		sink:     sink,
		store:    store,
		interval: interval,
		log:      log,
	}
}

// Run ticks immediately and then every interval until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		r.Tick(ctx)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Tick runs one sampling cycle. A sampling error counts as an absent sample.
func (r *Runner) Tick(ctx context.Context) {
	sctx, cancel := context.WithTimeout(ctx, sampleTimeout)
	sample, err := r.source.Sample(sctx)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.log.Warn().Err(err).Msg("runner: sample failed, treating as absent")
		sample = nil
	}

	score, state := compute.SampleState(sample)

	for _, ev := range r.detector.OnSample(sample) {
		switch ev.Action {
		case types.ActionOpen:
			r.log.Warn().Str("incident_id", ev.Incident.ID).Str("type", string(ev.Incident.Type)).
				Str("ssid", ev.Incident.SSID).Interface("trigger", ev.Incident.Trigger).
				Msg("runner: incident opened")
			r.sink.ReportIncidentOpen(ev.Incident, map[string]any{"stabilityScore": score})
		case types.ActionResolve:
			r.log.Info().Str("incident_id", ev.Incident.ID).Str("type", string(ev.Incident.Type)).
				Dur("duration", ev.Duration).Msg("runner: incident resolved")
			r.sink.ReportIncidentResolve(ev.Incident, ev.Duration, ev.At)
		}
	}

	if sample != nil {
		r.sink.ReportConnection(*sample, score)
	}

	if state != r.lastState {
		r.log.Info().Str("from", r.lastState).Str("to", state).Int("score", score).Msg("runner: link state changed")
		r.lastState = state
	}
	ev := r.log.Debug().Int("score", score).Str("state", state)
	if sample != nil {
		ev = ev.Str("ssid", sample.SSID).Int("signal", sample.Signal).Str("status", string(sample.Status))
	}
	ev.Msg("runner: tick")

	if r.store != nil {
		r.store.PutConnection(sample, score, state)
		r.store.SetIncidents(r.detector.Active())
	}
}

// ReportCheckResult records res in the status store and forwards it to the
// sink. It lets a Runner stand in as the prober's sink.
func (r *Runner) ReportCheckResult(serviceID string, res types.CheckResult) bool {
	if r.store != nil {
		r.store.PutCheckResult(serviceID, res)
	}
	return r.sink.ReportCheckResult(serviceID, res)
}

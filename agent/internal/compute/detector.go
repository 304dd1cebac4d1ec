package compute

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/linkwatch/linkwatch/pkg/types"
)

// Detection thresholds in dBm.
const (
	signalDropDelta     = 15
	signalRecoveryDelta = 10
	criticalSignal      = -80
)

// Trigger threshold labels carried in Incident.Trigger["threshold"].
const (
	TriggerConnectionLost = "connection_lost"
	TriggerSignalDrop     = "signal_degradation_15db"
	TriggerCriticalSignal = "critical_signal_level"
	TriggerCompleteLoss   = "complete_connection_loss"
)

// Detector turns a sequence of connection samples into incident lifecycle
// events. It remembers the previous sample and at most one open incident per
// type.
//
// All exported methods are safe for concurrent use.
type Detector struct {
	mu     sync.Mutex
	log    zerolog.Logger
	prev   *types.ConnectionSample
	active map[types.IncidentType]types.Incident

	// now and newID are replaced in tests.
	now   func() time.Time
	newID func() string
}

// NewDetector returns a Detector with no previous sample and no open incidents.
func NewDetector(log zerolog.Logger) *Detector {
	return &Detector{
		log:    log,
		active: make(map[types.IncidentType]types.Incident),
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

// OnSample evaluates cur against the previous sample and returns the incident
// events it causes, in order. A nil cur is an absent sample.
//
// Evaluation works on a copy of the open incidents and commits only when it
// completes. If evaluation panics the state is left untouched and no events
// are returned.
func (d *Detector) OnSample(cur *types.ConnectionSample) (events []types.IncidentEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Str("panic", fmt.Sprint(r)).Msg("detector: evaluation failed, state unchanged")
			events = nil
		}
	}()

	ev := &evaluation{
		log:    d.log,
		now:    d.now(),
		newID:  d.newID,
		active: make(map[types.IncidentType]types.Incident, len(d.active)),
	}
	for k, v := range d.active {
		ev.active[k] = v.Clone()
	}

	if cur == nil {
		ev.absent(d.prev)
	} else {
		ev.compare(d.prev, cur)
	}

	d.active = ev.active
	if cur != nil {
		c := *cur
		d.prev = &c
	}
	return ev.events
}

// Active returns a copy of the open incidents ordered by start time.
func (d *Detector) Active() []types.Incident {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]types.Incident, 0, len(d.active))
	for _, inc := range d.active {
		out = append(out, inc.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

// Previous returns a copy of the last present sample, or nil if none was seen.
func (d *Detector) Previous() *types.ConnectionSample {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.prev == nil {
		return nil
	}
	c := *d.prev
	return &c
}

// evaluation holds the working state of one OnSample call.
type evaluation struct {
	log    zerolog.Logger
	now    time.Time
	newID  func() string
	active map[types.IncidentType]types.Incident
	events []types.IncidentEvent
}

func (e *evaluation) absent(prev *types.ConnectionSample) {
	trigger := map[string]any{"threshold": TriggerCompleteLoss}
	ssid := ""
	if prev != nil {
		trigger["previous_signal"] = prev.Signal
		ssid = prev.SSID
	}
	e.open(types.IncidentDisconnection, ssid, trigger)
}

func (e *evaluation) compare(prev, cur *types.ConnectionSample) {
	if prev != nil {
		switch {
		case prev.Status == types.StatusConnected && isDown(cur.Status):
			e.open(types.IncidentDisconnection, lastSSID(prev, cur), map[string]any{
				"previous_signal": prev.Signal,
				"current_signal":  cur.Signal,
				"threshold":       TriggerConnectionLost,
			})

		case isDown(prev.Status) && cur.Status == types.StatusConnected:
			e.resolve(types.IncidentDisconnection)

		case prev.Status == types.StatusConnected && cur.Status == types.StatusConnected &&
			cur.Signal < prev.Signal-signalDropDelta:
			e.open(types.IncidentSignalDrop, cur.SSID, map[string]any{
				"threshold":       TriggerSignalDrop,
				"previous_signal": prev.Signal,
				"current_signal":  cur.Signal,
			})

		case cur.Signal > prev.Signal+signalRecoveryDelta && e.isActive(types.IncidentSignalDrop):
			e.resolve(types.IncidentSignalDrop)
		}
	}

	if cur.Status == types.StatusConnected && cur.Signal < criticalSignal &&
		!e.isActive(types.IncidentSignalDrop) {
		e.open(types.IncidentSignalDrop, cur.SSID, map[string]any{
			"threshold":      TriggerCriticalSignal,
			"current_signal": cur.Signal,
		})
	}
}

func (e *evaluation) isActive(t types.IncidentType) bool {
	_, ok := e.active[t]
	return ok
}

func (e *evaluation) open(t types.IncidentType, ssid string, trigger map[string]any) {
	if existing, ok := e.active[t]; ok {
		e.log.Debug().Str("type", string(t)).Str("incident_id", existing.ID).
			Msg("detector: incident already active, ignoring open")
		return
	}
	inc := types.Incident{
		ID:        e.newID(),
		Type:      t,
		SSID:      ssid,
		Trigger:   trigger,
		StartTime: e.now,
	}
	e.active[t] = inc
	e.events = append(e.events, types.IncidentEvent{
		Action:   types.ActionOpen,
		Incident: inc.Clone(),
		At:       e.now,
	})
}

func (e *evaluation) resolve(t types.IncidentType) {
	inc, ok := e.active[t]
	if !ok {
		return
	}
	delete(e.active, t)
	inc.Resolved = true
	e.events = append(e.events, types.IncidentEvent{
		Action:   types.ActionResolve,
		Incident: inc,
		Duration: e.now.Sub(inc.StartTime),
		At:       e.now,
	})
}

// lastSSID prefers the current SSID and falls back to the previous one.
func lastSSID(prev, cur *types.ConnectionSample) string {
	if cur.SSID != "" {
		return cur.SSID
	}
	return prev.SSID
}

// isDown reports whether s counts as lost for the disconnection rules.
func isDown(s types.ConnectionStatus) bool {
	return s == types.StatusDisconnected || s == types.StatusConnecting
}

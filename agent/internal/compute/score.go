package compute

import (
	"github.com/linkwatch/linkwatch/pkg/types"
)

// State constants returned by HealthState.
const (
	StateHealthy  = "healthy"
	StateDegraded = "degraded"
	StateCritical = "critical"
	StateUnknown  = "unknown"
)

// Thresholds that map a score to a health state.
const (
	ThresholdHealthy  = 85
	ThresholdDegraded = 60
)

// FallbackScore is returned when a score cannot be computed.
const FallbackScore = 50

// Sub-score ceilings. They sum to 100.
const (
	maxSignal  = 40
	maxLatency = 20
	maxLoss    = 20
	maxQuality = 20
)

// band is one step of a banded sub-score: values on the passing side of
// limit earn points.
type band struct {
	limit  float64
	points int
}

var (
	// Descending: value >= limit.
	signalBands  = []band{{-50, 40}, {-60, 30}, {-70, 20}, {-80, 10}}
	qualityBands = []band{{80, 20}, {60, 15}, {40, 10}, {20, 5}}

	// Ascending: value <= limit.
	latencyBands = []band{{10, 20}, {20, 15}, {50, 10}, {100, 5}}
	lossBands    = []band{{0, 20}, {1, 15}, {5, 10}, {10, 5}}
)

// StabilityScore computes the 0–100 stability score of a connection sample
// as the sum of four banded sub-scores:
//
//	signal  (max 40)  ≥-50→40  ≥-60→30  ≥-70→20  ≥-80→10
//	latency (max 20)  ≤10→20   ≤20→15   ≤50→10   ≤100→5
//	loss    (max 20)  0→20     ≤1→15    ≤5→10    ≤10→5
//	quality (max 20)  ≥80→20   ≥60→15   ≥40→10   ≥20→5
//
// Missing latency or loss counts as 0. A nil sample or any internal failure
// yields FallbackScore.
func StabilityScore(s *types.ConnectionSample) (score int) {
	if s == nil {
		return FallbackScore
	}
	defer func() {
		if r := recover(); r != nil {
			score = FallbackScore
		}
	}()

	total := scoreAtLeast(float64(s.Signal), signalBands, maxSignal) +
		scoreAtMost(valueOrZero(s.NetworkLatency), latencyBands, maxLatency) +
		scoreAtMost(valueOrZero(s.PacketLoss), lossBands, maxLoss) +
		scoreAtLeast(float64(s.Quality), qualityBands, maxQuality)

	return clamp(total, 0, 100)
}

// HealthState maps a stability score to a named health state.
func HealthState(score int) string {
	switch {
	case score >= ThresholdHealthy:
		return StateHealthy
	case score >= ThresholdDegraded:
		return StateDegraded
	default:
		return StateCritical
	}
}

// SampleState is HealthState for an optional sample; nil maps to StateUnknown.
func SampleState(s *types.ConnectionSample) (int, string) {
	if s == nil {
		return 0, StateUnknown
	}
	score := StabilityScore(s)
	return score, HealthState(score)
}

func scoreAtLeast(v float64, bands []band, ceiling int) int {
	for _, b := range bands {
		if v >= b.limit {
			return clamp(b.points, 0, ceiling)
		}
	}
	return 0
}

func scoreAtMost(v float64, bands []band, ceiling int) int {
	for _, b := range bands {
		if v <= b.limit {
			return clamp(b.points, 0, ceiling)
		}
	}
	return 0
}

func valueOrZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// clamp restricts v to the range [lo, hi].
func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

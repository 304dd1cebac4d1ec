// Package compute derives link health signals from connection samples.
//
// score.go provides the pure StabilityScore function: a 0–100 composite of
// four banded sub-scores (signal 40, latency 20, packet loss 20, quality 20).
// HealthState maps a score to healthy (≥85), degraded (60–84) or critical.
//
// detector.go provides the stateful Detector. It compares each sample with
// the previous one and opens or resolves disconnection and signal_drop
// incidents, keeping at most one open incident per type.
package compute

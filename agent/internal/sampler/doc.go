// Package sampler produces connection samples for the incident detector.
//
// NMCLI (nmcli.go) reads the wireless device state and active access point
// from NetworkManager's terse output, link quality from /proc/net/wireless,
// and optionally latency/loss/jitter from a short ping. Static (static.go)
// replays a fixed sequence for tests and dry runs.
//
// A nil sample, or a non-nil error, means no sample could be taken; the
// detector treats both as a complete connection loss.
package sampler

// Package prober runs reachability and latency checks against remote
// services on independent per-service schedules.
//
// Prober holds the current service set (replaced wholesale by Refresh) and
// the time each service was last checked. Dispatch starts every due check in
// its own goroutine with a deadline of the service timeout (timeout × packet
// count for ping) and pushes the normalized CheckResult to the Sink.
//
// Checkers:
//   - ping:       system ping via the pinger package; mean latency, jitter, loss
//   - http/https: one GET; <400 up, ≥400 down "HTTP <code>"; https adds
//     the leaf certificate's days to expiry
//   - tcp:        connect latency; refused/unreachable is down
//   - udp:        send "test", wait for a reply until the deadline; up unless
//     the dial or send fails
package prober

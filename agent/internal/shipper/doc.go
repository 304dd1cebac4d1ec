// Package shipper delivers agent reports (incident lifecycle, check results,
// connection status, heartbeats) to the monitoring backend.
//
// The Report* methods wrap each report in an Envelope and push it onto a
// Queue without blocking: either the bounded in-memory MemQueue, which
// evicts the oldest entry when full, or a durable SQLite outbox from the
// spool package.
//
// Shipper.Run drains the queue in FIFO order through a Transport, retrying
// transient failures with truncated exponential backoff (1s→60s, ±25%
// jitter). Errors wrapping ErrPermanent discard the envelope.
//
// Two transports are provided: HTTPTransport maps envelopes onto the
// server's REST endpoints; NATSTransport publishes them as JSON on
// {prefix}.{monitor}.{kind}.
package shipper

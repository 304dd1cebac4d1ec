// Package config loads and watches the agent configuration file (config.yaml).
//
// Top-level types:
//   - Config{Log, Agent}: full config tree parsed from YAML
//   - AgentConfig: monitor_id, server_url, interface, sampling and polling
//     cadences, registry (server|file), listen, auth, tls, probe, transport,
//     outbox and the static services list
//   - AuthConfig: mode (mtls|apikey|bearer|basic|none); Key(), Token() and
//     Password() resolve secrets from environment variables
//
// Load(path) reads the YAML file, applies defaults (30s sample, 10s poll,
// 30s fetch backoff, 30s heartbeat, 1000 buffer), fills per-service defaults
// (60s interval, 5s timeout), then validates required fields and enums.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. The agent uses it to hot-reload the
// static service list.
package config

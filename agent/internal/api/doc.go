// Package api serves the agent's local status API.
//
// Routes:
//
//	GET /api/v1/health     overall link state and counts
//	GET /api/v1/incidents  open incidents
//	GET /api/v1/services   latest check result per service
//	GET /api/v1/snapshot   everything above in one document
//	GET /metrics           Prometheus text exposition
//	GET /ws/stream         WebSocket snapshot stream (when a hub is given)
package api

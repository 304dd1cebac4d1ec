// Package registry supplies the service definitions the prober checks.
//
// Server fetches them from GET /api/service-monitors/monitor/{monitorID} and
// converts the server's JSON (seconds, camelCase) to types.ServiceConfig,
// applying per-type defaults and skipping invalid entries. File serves the
// static list from the agent config and is swapped on hot reload.
package registry

package api

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	MonitorID       string `json:"monitor_id"`
	State           string `json:"state"`
	StabilityScore  int    `json:"stability_score"`
	ConnectionState string `json:"connection_status,omitempty"`
	SSID            string `json:"ssid,omitempty"`
	IncidentCount   int    `json:"incident_count"`
	ServicesUp      int    `json:"services_up"`
	ServicesDown    int    `json:"services_down"`
	QueueDepth      int    `json:"queue_depth"`
	LastSample      string `json:"last_sample,omitempty"` // RFC3339
}

type errorResponse struct {
	Error string `json:"error"`
}

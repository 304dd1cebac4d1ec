package api

import (
	"net/http"
	"sort"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/linkwatch/linkwatch/agent/internal/status"
	"github.com/linkwatch/linkwatch/pkg/types"
)

const metricPrefix = "linkwatch_"

// metrics serves GET /metrics in the Prometheus text format.
func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	clients := 0
	if h.stream != nil {
		clients = h.stream.Count()
	}
	families := buildFamilies(h.store.Snapshot(), h.queueDepth(), clients)

	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	w.Header().Set("Content-Type", string(format))
	enc := expfmt.NewEncoder(w, format)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return
		}
	}
}

// buildFamilies converts a snapshot into metric families. Families with no
// samples are omitted.
func buildFamilies(snap status.Snapshot, queueDepth, wsClients int) []*dto.MetricFamily {
	var out []*dto.MetricFamily
	add := func(mf *dto.MetricFamily) {
		if len(mf.Metric) > 0 {
			out = append(out, mf)
		}
	}

	if c := snap.Connection; c != nil {
		add(gaugeFamily("stability_score", "Connection stability score (0-100).", gauge(float64(c.Score))))
		if s := c.Sample; s != nil {
			connected := 0.0
			if s.Status == types.StatusConnected {
				connected = 1
			}
			add(gaugeFamily("connected", "1 when the wireless interface is connected.",
				gauge(connected, "ssid", s.SSID)))
			add(gaugeFamily("signal_dbm", "Received signal strength in dBm.", gauge(float64(s.Signal))))
			add(gaugeFamily("link_quality_percent", "Link quality percentage.", gauge(float64(s.Quality))))
			add(optionalGauge("network_latency_ms", "Round-trip time to the latency target.", s.NetworkLatency))
			add(optionalGauge("packet_loss_percent", "Packet loss to the latency target.", s.PacketLoss))
			add(optionalGauge("jitter_ms", "RTT standard deviation to the latency target.", s.Jitter))
			add(optionalGauge("link_speed_mbps", "Negotiated link rate.", s.LinkSpeed))
		}
	}

	byType := map[string]int{
		string(types.IncidentDisconnection): 0,
		string(types.IncidentSignalDrop):    0,
	}
	for _, inc := range snap.Incidents {
		byType[string(inc.Type)]++
	}
	keys := make([]string, 0, len(byType))
	for k := range byType {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	incidents := make([]*dto.Metric, 0, len(keys))
	for _, k := range keys {
		incidents = append(incidents, gauge(float64(byType[k]), "type", k))
	}
	add(gaugeFamily("active_incidents", "Open incidents by type.", incidents...))

	up := make([]*dto.Metric, 0, len(snap.Services))
	latency := make([]*dto.Metric, 0, len(snap.Services))
	for _, e := range snap.Services {
		v := 0.0
		if e.Result.Status == types.CheckUp {
			v = 1
		}
		up = append(up, gauge(v, "service", e.Result.ServiceID, "status", string(e.Result.Status)))
		if e.Result.Latency != nil {
			latency = append(latency, gauge(*e.Result.Latency, "service", e.Result.ServiceID))
		}
	}
	add(gaugeFamily("service_up", "1 when the last check of the service succeeded.", up...))
	add(gaugeFamily("service_latency_ms", "Latency of the last service check.", latency...))

	add(gaugeFamily("outbox_depth", "Reports waiting for delivery.", gauge(float64(queueDepth))))
	add(gaugeFamily("ws_clients", "Connected WebSocket clients.", gauge(float64(wsClients))))
	return out
}

func gaugeFamily(name, help string, metrics ...*dto.Metric) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   strPtr(metricPrefix + name),
		Help:   strPtr(help),
		Type:   dto.MetricType_GAUGE.Enum(),
		Metric: metrics,
	}
}

func optionalGauge(name, help string, v *float64) *dto.MetricFamily {
	if v == nil {
		return gaugeFamily(name, help)
	}
	return gaugeFamily(name, help, gauge(*v))
}

// gauge builds a gauge sample; labels are name/value pairs.
func gauge(v float64, labels ...string) *dto.Metric {
	m := &dto.Metric{Gauge: &dto.Gauge{Value: &v}}
	for i := 0; i+1 < len(labels); i += 2 {
		m.Label = append(m.Label, &dto.LabelPair{Name: strPtr(labels[i]), Value: strPtr(labels[i+1])})
	}
	return m
}

func strPtr(s string) *string { return &s }

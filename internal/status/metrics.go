package status

import "github.com/prometheus/client_golang/prometheus"

var stateGauge = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "wppdesk_ws_state",
		Help: "1 for the current websocket connection state, 0 otherwise.",
	},
	[]string{"state"},
)

func init() {
	prometheus.MustRegister(stateGauge)
	stateGauge.WithLabelValues(string(Closed)).Set(1)
}

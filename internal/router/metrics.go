package router

import "github.com/prometheus/client_golang/prometheus"

var (
	framesRouted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wppdesk_frames_routed_total",
			Help: "Inbound websocket frames classified and published, by type.",
		},
		[]string{"type"},
	)
	framesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wppdesk_frames_dropped_total",
			Help: "Inbound websocket frames dropped by the router, by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(framesRouted, framesDropped)
}

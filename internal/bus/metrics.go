package bus

import "github.com/prometheus/client_golang/prometheus"

var (
	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wppdesk_bus_events_published_total",
			Help: "Events published on the in-process bus, by namespace.",
		},
		[]string{"namespace"},
	)
	eventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wppdesk_bus_events_dropped_total",
			Help: "Events dropped because a subscriber buffer was full.",
		},
		[]string{"subscriber"},
	)
)

func init() {
	prometheus.MustRegister(eventsPublished, eventsDropped)
}

package outbox

import "github.com/prometheus/client_golang/prometheus"

var (
	sendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wppdesk_outbox_sends_total",
			Help: "Outbound messages submitted, by result.",
		},
		[]string{"result"},
	)
	sendDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "wppdesk_outbox_send_duration_seconds",
		Help:    "Time until the backend accepted or rejected a message.",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(sendsTotal, sendDuration)
}

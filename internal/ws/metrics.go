package ws

import "github.com/prometheus/client_golang/prometheus"

var (
	reconnectsScheduled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wppdesk_ws_reconnects_scheduled_total",
		Help: "Reconnect attempts scheduled after an abnormal close.",
	})
	dialFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wppdesk_ws_dial_failures_total",
		Help: "Websocket dials that failed.",
	})
	heartbeatTimeouts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wppdesk_ws_heartbeat_timeouts_total",
		Help: "Connections force-closed because no pong arrived in time.",
	})
	pingsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wppdesk_ws_pings_sent_total",
		Help: "Heartbeat pings written to the socket.",
	})
	closesByCode = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wppdesk_ws_closes_total",
			Help: "Connection closures, by close code.",
		},
		[]string{"code"},
	)
)

func init() {
	prometheus.MustRegister(reconnectsScheduled, dialFailures, heartbeatTimeouts, pingsSent, closesByCode)
}

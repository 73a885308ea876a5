package bus

import "time"

// Event kinds published on the bus. Subscribers filter by prefix, so the part
// before the dot is the namespace ("chat.", "conn.", ...).
const (
	KindMessageReceived = "chat.message_received"
	KindStatusChanged   = "chat.status_changed"
	KindActionFailed    = "chat.action_failed"

	KindHeartbeatAck = "conn.heartbeat_ack"
	KindStateChanged = "conn.state_changed"
	KindReconnecting = "conn.reconnecting"
	KindExhausted    = "conn.exhausted"
	KindUnhealthy    = "conn.unhealthy"

	KindRosterLoaded = "roster.loaded"
	KindRosterFailed = "roster.load_failed"

	KindSendFailed   = "outbox.send_failed"
	KindSendAccepted = "outbox.send_accepted"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

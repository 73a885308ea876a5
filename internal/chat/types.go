package chat

import "time"

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleHuman     Role = "human"
)

// ParseRole maps a wire role to a Role. An empty role is the assistant, matching
// what the bot backend omits for its own replies.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case "":
		return RoleAssistant, true
	case RoleUser, RoleAssistant, RoleHuman:
		return Role(s), true
	default:
		return "", false
	}
}

// Label is the short author tag shown next to a preview.
func (r Role) Label() string {
	switch r {
	case RoleHuman:
		return "You"
	case RoleAssistant:
		return "Bot"
	default:
		return "User"
	}
}

// DeliveryStatus is the per-message delivery flag.
type DeliveryStatus string

const (
	StatusDelivered DeliveryStatus = "delivered"
	StatusSending   DeliveryStatus = "sending"
	StatusError     DeliveryStatus = "error"
)

// Message is one entry of a chat's log.
type Message struct {
	Content   string
	Role      Role
	Timestamp time.Time
	Status    DeliveryStatus
	ServerID  string
}

// MessageReceived is the payload of bus.KindMessageReceived.
type MessageReceived struct {
	PhoneNumber     string
	Content         string
	Role            Role
	Timestamp       time.Time
	ServerMessageID string
}

// Message converts the notification into a delivered log entry.
func (n MessageReceived) Message() Message {
	return Message{
		Content:   n.Content,
		Role:      n.Role,
		Timestamp: n.Timestamp,
		Status:    StatusDelivered,
		ServerID:  n.ServerMessageID,
	}
}

// StatusChanged is the payload of bus.KindStatusChanged.
type StatusChanged struct {
	PhoneNumber string
	Locked      bool
}

// HeartbeatAck is the payload of bus.KindHeartbeatAck.
type HeartbeatAck struct {
	Timestamp time.Time
}

// ActionFailed is the payload of bus.KindActionFailed.
type ActionFailed struct {
	PhoneNumber string
	Action      string
	Err         error
}

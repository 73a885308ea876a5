package router

import (
	"time"

	"github.com/matheus3301/wppdesk/internal/bus"
	"github.com/matheus3301/wppdesk/internal/chat"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Frame discriminants sent by the backend.
const (
	TypePong         = "pong"
	TypeNewMessage   = "new_message"
	TypeStatusUpdate = "status_update"
)

// Router classifies raw socket frames into bus events. It does not know who
// listens: every classified frame is published and forgotten.
type Router struct {
	bus    *bus.Bus
	logger *zap.Logger
	now    func() time.Time
}

// New creates a router publishing on b.
func New(b *bus.Bus, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		bus:    b,
		logger: logger,
		now:    time.Now,
	}
}

// Route parses frame, publishes the resulting event and returns it. Frames that
// are not JSON, carry an unknown type or miss required fields are dropped and
// reported as ok=false.
func (r *Router) Route(frame []byte) (bus.Event, bool) {
	if !gjson.ValidBytes(frame) {
		r.drop("malformed", frame)
		return bus.Event{}, false
	}
	root := gjson.ParseBytes(frame)
	typ := root.Get("type").String()

	var evt bus.Event
	var ok bool
	switch typ {
	case TypePong:
		evt, ok = r.pong(root)
	case TypeNewMessage:
		evt, ok = r.newMessage(root)
	case TypeStatusUpdate:
		evt, ok = r.statusUpdate(root)
	default:
		r.drop("unknown_type", frame)
		return bus.Event{}, false
	}
	if !ok {
		r.drop("invalid_"+typ, frame)
		return bus.Event{}, false
	}

	framesRouted.WithLabelValues(typ).Inc()
	r.bus.Publish(evt)
	return evt, true
}

func (r *Router) pong(root gjson.Result) (bus.Event, bool) {
	now := r.now()
	ts := r.timestamp(root.Get("timestamp"), now)
	return bus.Event{
		Kind:      bus.KindHeartbeatAck,
		Timestamp: now,
		Payload:   chat.HeartbeatAck{Timestamp: ts},
	}, true
}

func (r *Router) newMessage(root gjson.Result) (bus.Event, bool) {
	phone := root.Get("phone_number").String()
	content := root.Get("data.content").String()
	if phone == "" || content == "" {
		return bus.Event{}, false
	}
	role, ok := chat.ParseRole(root.Get("data.role").String())
	if !ok {
		return bus.Event{}, false
	}
	now := r.now()
	return bus.Event{
		Kind:      bus.KindMessageReceived,
		Timestamp: now,
		Payload: chat.MessageReceived{
			PhoneNumber:     phone,
			Content:         content,
			Role:            role,
			Timestamp:       r.timestamp(root.Get("timestamp"), now),
			ServerMessageID: root.Get("message_id").String(),
		},
	}, true
}

func (r *Router) statusUpdate(root gjson.Result) (bus.Event, bool) {
	phone := root.Get("phone_number").String()
	locked := root.Get("locked")
	if phone == "" || (locked.Type != gjson.True && locked.Type != gjson.False) {
		return bus.Event{}, false
	}
	return bus.Event{
		Kind:      bus.KindStatusChanged,
		Timestamp: r.now(),
		Payload: chat.StatusChanged{
			PhoneNumber: phone,
			Locked:      locked.Bool(),
		},
	}, true
}

// timestamp reads a string or numeric timestamp, falling back to now.
func (r *Router) timestamp(v gjson.Result, now time.Time) time.Time {
	switch v.Type {
	case gjson.Number:
		if v.Float() > 0 {
			return chat.FromEpoch(v.Float())
		}
	case gjson.String:
		if t, ok := chat.ParseTimestamp(v.String()); ok {
			return t
		}
	}
	return now
}

func (r *Router) drop(reason string, frame []byte) {
	framesDropped.WithLabelValues(reason).Inc()
	r.logger.Debug("dropping inbound frame",
		zap.String("reason", reason),
		zap.ByteString("frame", truncate(frame, 256)),
	)
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}

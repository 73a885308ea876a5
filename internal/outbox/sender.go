package outbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/wppdesk/internal/bus"
	"go.uber.org/zap"
)

// ErrEmptyText is returned for a message with no visible characters.
var ErrEmptyText = errors.New("outbox: empty message")

// TextSender is the backend call that delivers a message.
type TextSender interface {
	SendMessage(ctx context.Context, phone, text, requestID string) error
}

// SendFailed is the payload of bus.KindSendFailed.
type SendFailed struct {
	RequestID   string
	PhoneNumber string
	Err         error
}

// SendAccepted is the payload of bus.KindSendAccepted.
type SendAccepted struct {
	RequestID   string
	PhoneNumber string
}

// Sender submits outbound messages. It never touches chat state: a sent
// message appears in the log only when the backend echoes it back over the
// socket.
type Sender struct {
	sender   TextSender
	bus      *bus.Bus
	logger   *zap.Logger
	inFlight atomic.Int64
}

// NewSender creates a new outbox sender.
func NewSender(sender TextSender, b *bus.Bus, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{
		sender: sender,
		bus:    b,
		logger: logger.Named("outbox"),
	}
}

// Send delivers text to phone and returns the request id used. On failure the
// error is also published as bus.KindSendFailed.
func (s *Sender) Send(ctx context.Context, phone, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyText
	}
	requestID := uuid.NewString()

	s.inFlight.Add(1)
	defer s.inFlight.Add(-1)

	start := time.Now()
	err := s.sender.SendMessage(ctx, phone, text, requestID)
	sendDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		sendsTotal.WithLabelValues("failed").Inc()
		s.logger.Error("failed to send message",
			zap.Error(err),
			zap.String("request_id", requestID),
			zap.String("phone", phone),
		)
		s.publish(bus.KindSendFailed, SendFailed{RequestID: requestID, PhoneNumber: phone, Err: err})
		return requestID, fmt.Errorf("send message to %s: %w", phone, err)
	}

	sendsTotal.WithLabelValues("accepted").Inc()
	s.logger.Info("message accepted", zap.String("request_id", requestID), zap.String("phone", phone))
	s.publish(bus.KindSendAccepted, SendAccepted{RequestID: requestID, PhoneNumber: phone})
	return requestID, nil
}

// InFlight returns the number of sends awaiting the backend's answer.
func (s *Sender) InFlight() int {
	return int(s.inFlight.Load())
}

func (s *Sender) publish(kind string, payload any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(bus.Event{
		Kind:      kind,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}

package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/wppdesk/internal/bus"
	"go.uber.org/zap"
)

// mockSender records calls and returns configurable results.
type mockSender struct {
	mu    sync.Mutex
	calls []sendCall
	err   error
	delay time.Duration
}

type sendCall struct {
	Phone     string
	Text      string
	RequestID string
}

func (m *mockSender) SendMessage(_ context.Context, phone, text, requestID string) error {
	m.mu.Lock()
	m.calls = append(m.calls, sendCall{Phone: phone, Text: text, RequestID: requestID})
	m.mu.Unlock()
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	return m.err
}

func TestSenderAccepted(t *testing.T) {
	b := bus.New()
	mock := &mockSender{}
	s := NewSender(mock, b, zap.NewNop())

	ch, unsub := b.Subscribe("outbox.", 10)
	defer unsub()

	id, err := s.Send(context.Background(), "569", "  hola  ")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("request id %q is not a uuid", id)
	}

	if len(mock.calls) != 1 {
		t.Fatalf("got %d send calls, want 1", len(mock.calls))
	}
	if got := mock.calls[0]; got.Phone != "569" || got.Text != "hola" || got.RequestID != id {
		t.Errorf("call = %+v", got)
	}

	select {
	case evt := <-ch:
		if evt.Kind != bus.KindSendAccepted {
			t.Errorf("event kind = %q, want %s", evt.Kind, bus.KindSendAccepted)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for send_accepted event")
	}
}

func TestSenderFailure(t *testing.T) {
	b := bus.New()
	cause := fmt.Errorf("network error")
	s := NewSender(&mockSender{err: cause}, b, zap.NewNop())

	ch, unsub := b.Subscribe(bus.KindSendFailed, 10)
	defer unsub()

	_, err := s.Send(context.Background(), "569", "hola")
	if !errors.Is(err, cause) {
		t.Fatalf("Send() error = %v, want wrapped cause", err)
	}

	select {
	case evt := <-ch:
		p, ok := evt.Payload.(SendFailed)
		if !ok {
			t.Fatalf("payload type = %T", evt.Payload)
		}
		if p.PhoneNumber != "569" || !errors.Is(p.Err, cause) {
			t.Errorf("payload = %+v", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for send_failed event")
	}
}

func TestSenderRejectsBlank(t *testing.T) {
	mock := &mockSender{}
	s := NewSender(mock, bus.New(), zap.NewNop())

	for _, text := range []string{"", "   ", "\n\t"} {
		if _, err := s.Send(context.Background(), "569", text); !errors.Is(err, ErrEmptyText) {
			t.Errorf("Send(%q) error = %v, want ErrEmptyText", text, err)
		}
	}
	if len(mock.calls) != 0 {
		t.Errorf("blank input reached the backend %d times", len(mock.calls))
	}
}

func TestSenderInFlight(t *testing.T) {
	mock := &mockSender{delay: 200 * time.Millisecond}
	s := NewSender(mock, bus.New(), zap.NewNop())

	done := make(chan struct{})
	go func() {
		s.Send(context.Background(), "569", "hola")
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for s.InFlight() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.InFlight() != 1 {
		t.Errorf("InFlight() = %d during send, want 1", s.InFlight())
	}
	<-done
	if s.InFlight() != 0 {
		t.Errorf("InFlight() = %d after send, want 0", s.InFlight())
	}
}

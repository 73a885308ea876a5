package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/wppdesk/internal/bus"
	"github.com/matheus3301/wppdesk/internal/chat"
	"github.com/matheus3301/wppdesk/internal/roster"
	"go.uber.org/zap"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type fakeBackend struct {
	mu      sync.Mutex
	chats   []*chat.Summary
	sends   []string
	sendErr error
	lockErr error
	locks   []string
}

func (f *fakeBackend) ListChats(context.Context) ([]*chat.Summary, error) { return f.chats, nil }
func (f *fakeBackend) MarkViewed(context.Context, string) error           { return nil }

func (f *fakeBackend) Send(_ context.Context, phone, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, phone+":"+text)
	return "req-1", f.sendErr
}

func (f *fakeBackend) Lock(_ context.Context, phone string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locks = append(f.locks, "lock:"+phone)
	return f.lockErr
}

func (f *fakeBackend) Unlock(_ context.Context, phone string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locks = append(f.locks, "unlock:"+phone)
	return f.lockErr
}

func setup(t *testing.T, be *fakeBackend) (*View, *roster.Projection, *bus.Bus) {
	t.Helper()
	b := bus.New()
	r := roster.New(be, b, zap.NewNop())
	r.Start(context.Background())
	t.Cleanup(r.Stop)
	if err := r.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	v := New(r, be, be, b, zap.NewNop())
	v.Start(context.Background())
	t.Cleanup(v.Stop)
	return v, r, b
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", msg)
}

func received(phone, content string, at time.Duration, role chat.Role) bus.Event {
	return bus.Event{
		Kind: bus.KindMessageReceived,
		Payload: chat.MessageReceived{
			PhoneNumber: phone,
			Content:     content,
			Role:        role,
			Timestamp:   t0.Add(at),
		},
	}
}

func TestOpenSelectsAndScrolls(t *testing.T) {
	v, r, _ := setup(t, &fakeBackend{chats: []*chat.Summary{chat.NewSummary("111")}})

	if err := v.Open(context.Background(), "111"); err != nil {
		t.Fatal(err)
	}
	if r.Selected() != "111" || v.Phone() != "111" {
		t.Errorf("selected = %q phone = %q", r.Selected(), v.Phone())
	}
	select {
	case <-v.ScrollRequests():
	default:
		t.Error("Open did not request a scroll to latest")
	}
}

func TestMessagesAreLive(t *testing.T) {
	v, _, b := setup(t, &fakeBackend{chats: []*chat.Summary{chat.NewSummary("111")}})
	v.Open(context.Background(), "111")
	<-v.ScrollRequests()

	b.Publish(received("111", "hola", 0, chat.RoleUser))
	b.Publish(received("222", "otro chat", 0, chat.RoleUser))
	b.Publish(received("111", "sigue", time.Second, chat.RoleUser))

	waitFor(t, func() bool { return len(v.Messages()) == 2 }, "two messages in the open chat")
	msgs := v.Messages()
	if msgs[0].Content != "hola" || msgs[1].Content != "sigue" {
		t.Errorf("messages = %+v", msgs)
	}
	sum, _ := v.Summary()
	if sum.UnseenCount != 0 {
		t.Errorf("unseen on the open chat = %d", sum.UnseenCount)
	}
	select {
	case <-v.ScrollRequests():
	case <-time.After(time.Second):
		t.Error("new message did not request a scroll")
	}
}

func TestDuplicateFrameDoesNotScroll(t *testing.T) {
	v, _, b := setup(t, &fakeBackend{chats: []*chat.Summary{chat.NewSummary("111")}})
	v.Open(context.Background(), "111")
	<-v.ScrollRequests()

	msg := received("111", "hola", 0, chat.RoleUser)
	b.Publish(msg)
	select {
	case <-v.ScrollRequests():
	case <-time.After(time.Second):
		t.Fatal("new message did not request a scroll")
	}

	b.Publish(msg)
	b.Publish(received("222", "otro chat", 0, chat.RoleUser))
	select {
	case <-v.ScrollRequests():
		t.Error("re-delivered message requested a scroll")
	case <-time.After(100 * time.Millisecond):
	}
	if n := len(v.Messages()); n != 1 {
		t.Errorf("log has %d entries, want 1", n)
	}
}

func TestSendHasNoLocalEcho(t *testing.T) {
	be := &fakeBackend{chats: []*chat.Summary{chat.NewSummary("111")}}
	v, _, b := setup(t, be)
	v.Open(context.Background(), "111")
	v.SetDraft("hola")

	if err := v.Send(context.Background(), v.Draft()); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if v.Draft() != "" {
		t.Errorf("draft = %q after send, want cleared", v.Draft())
	}
	if len(be.sends) != 1 || be.sends[0] != "111:hola" {
		t.Errorf("sends = %v", be.sends)
	}
	if n := len(v.Messages()); n != 0 {
		t.Fatalf("log has %d entries before the echo, want 0", n)
	}

	echo := received("111", "hola", 0, chat.RoleHuman)
	b.Publish(echo)
	b.Publish(echo)
	waitFor(t, func() bool { return len(v.Messages()) == 1 }, "echo applied")
	time.Sleep(50 * time.Millisecond)
	if n := len(v.Messages()); n != 1 {
		t.Errorf("log has %d entries after a doubled echo, want 1", n)
	}
}

func TestSendFailureLeavesLogUntouched(t *testing.T) {
	cause := errors.New("502")
	v, _, _ := setup(t, &fakeBackend{chats: []*chat.Summary{chat.NewSummary("111")}, sendErr: cause})
	v.Open(context.Background(), "111")

	if err := v.Send(context.Background(), "hola"); !errors.Is(err, cause) {
		t.Fatalf("Send() error = %v", err)
	}
	if len(v.Messages()) != 0 {
		t.Error("failed send changed the log")
	}
}

func TestSendValidation(t *testing.T) {
	be := &fakeBackend{chats: []*chat.Summary{chat.NewSummary("111")}}
	v, _, _ := setup(t, be)

	if err := v.Send(context.Background(), "hola"); !errors.Is(err, ErrNoChat) {
		t.Errorf("Send() without chat error = %v, want ErrNoChat", err)
	}
	v.Open(context.Background(), "111")
	v.SetDraft("  ")
	if err := v.Send(context.Background(), "  "); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("Send(blank) error = %v, want ErrEmptyMessage", err)
	}
	if v.Draft() != "  " {
		t.Error("blank send cleared the draft")
	}
	if len(be.sends) != 0 {
		t.Errorf("blank input reached the backend: %v", be.sends)
	}
}

func TestLockRoundTrip(t *testing.T) {
	v, r, b := setup(t, &fakeBackend{chats: []*chat.Summary{chat.NewSummary("111")}})
	v.Open(context.Background(), "111")

	if err := v.Lock(context.Background()); err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	sum, _ := v.Summary()
	if !sum.Locked {
		t.Fatal("Locked = false after a successful lock")
	}

	// The server confirms with a status_update; nothing changes.
	b.Publish(bus.Event{Kind: bus.KindStatusChanged, Payload: chat.StatusChanged{PhoneNumber: "111", Locked: true}})
	time.Sleep(50 * time.Millisecond)
	sum, _ = v.Summary()
	if !sum.Locked {
		t.Error("status_update flipped the lock")
	}
	if r.SetLocked("111", true) {
		t.Error("repeated lock reported a change")
	}

	if err := v.Unlock(context.Background()); err != nil {
		t.Fatal(err)
	}
	sum, _ = v.Summary()
	if sum.Locked {
		t.Error("Locked = true after unlock")
	}
}

func TestLockFailureKeepsFlag(t *testing.T) {
	cause := errors.New("forbidden")
	v, _, b := setup(t, &fakeBackend{chats: []*chat.Summary{chat.NewSummary("111")}, lockErr: cause})
	failed, unsub := b.Subscribe(bus.KindActionFailed, 1)
	defer unsub()
	v.Open(context.Background(), "111")

	if err := v.Lock(context.Background()); !errors.Is(err, cause) {
		t.Fatalf("Lock() error = %v", err)
	}
	sum, _ := v.Summary()
	if sum.Locked {
		t.Error("Locked = true after a failed lock")
	}
	select {
	case evt := <-failed:
		af := evt.Payload.(chat.ActionFailed)
		if af.Action != ActionLock || af.PhoneNumber != "111" {
			t.Errorf("action failed = %+v", af)
		}
	case <-time.After(time.Second):
		t.Fatal("no chat.action_failed event")
	}
}

func TestLockWithoutChat(t *testing.T) {
	v, _, _ := setup(t, &fakeBackend{})
	if err := v.Lock(context.Background()); !errors.Is(err, ErrNoChat) {
		t.Errorf("Lock() error = %v, want ErrNoChat", err)
	}
}

func TestOpenSwitchClearsDraft(t *testing.T) {
	v, r, _ := setup(t, &fakeBackend{chats: []*chat.Summary{chat.NewSummary("111"), chat.NewSummary("222")}})
	v.Open(context.Background(), "111")
	v.SetDraft("a medio escribir")
	v.Open(context.Background(), "111")
	if v.Draft() == "" {
		t.Error("reopening the same chat cleared the draft")
	}
	v.Open(context.Background(), "222")
	if v.Draft() != "" {
		t.Error("switching chats kept the draft")
	}
	v.Close()
	if v.Phone() != "" || r.Selected() != "" {
		t.Errorf("after Close phone = %q selected = %q", v.Phone(), r.Selected())
	}
}

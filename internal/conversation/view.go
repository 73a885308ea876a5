package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/matheus3301/wppdesk/internal/bus"
	"github.com/matheus3301/wppdesk/internal/chat"
	"github.com/matheus3301/wppdesk/internal/roster"
	"go.uber.org/zap"
)

var (
	// ErrEmptyMessage is returned by Send for blank input.
	ErrEmptyMessage = errors.New("conversation: empty message")
	// ErrNoChat is returned when no chat is open.
	ErrNoChat = errors.New("conversation: no chat open")
)

// Action names used in chat.ActionFailed.
const (
	ActionLock   = "lock"
	ActionUnlock = "unlock"
)

// Sender submits an outbound message.
type Sender interface {
	Send(ctx context.Context, phone, text string) (string, error)
}

// Locker toggles who handles a chat.
type Locker interface {
	Lock(ctx context.Context, phone string) error
	Unlock(ctx context.Context, phone string) error
}

// View is the open conversation. It holds only the phone number: messages
// and flags are always read from the roster's live summary.
type View struct {
	roster *roster.Projection
	sender Sender
	locker Locker
	bus    *bus.Bus
	logger *zap.Logger

	mu    sync.RWMutex
	phone string
	draft string
	// shown is the log length the thread last scrolled for.
	shown int

	scrollCh chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a view over r with nothing open.
func New(r *roster.Projection, sender Sender, locker Locker, b *bus.Bus, logger *zap.Logger) *View {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &View{
		roster:   r,
		sender:   sender,
		locker:   locker,
		bus:      b,
		logger:   logger.Named("conversation"),
		scrollCh: make(chan struct{}, 1),
	}
}

// Start subscribes to inbound messages for the open chat.
func (v *View) Start(ctx context.Context) {
	ctx, v.cancel = context.WithCancel(ctx)
	ch, unsub := v.bus.Subscribe(bus.KindMessageReceived, 256)

	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		defer unsub()
		for {
			select {
			case evt := <-ch:
				v.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the subscription.
func (v *View) Stop() {
	if v.cancel != nil {
		v.cancel()
	}
	v.wg.Wait()
}

// ScrollRequests signals when the thread should jump to the latest message:
// on open and whenever a new message lands in the open chat.
func (v *View) ScrollRequests() <-chan struct{} {
	return v.scrollCh
}

// Open binds the view to phone and selects it in the roster. The view is
// open even if marking the chat viewed fails; that error is returned.
func (v *View) Open(ctx context.Context, phone string) error {
	v.mu.Lock()
	if v.phone != phone {
		v.draft = ""
	}
	v.phone = phone
	v.shown = 0
	if sum, ok := v.roster.Summary(phone); ok {
		v.shown = len(sum.Messages)
	}
	v.mu.Unlock()

	v.requestScroll()
	return v.roster.Select(ctx, phone)
}

// Close unbinds the view.
func (v *View) Close() {
	v.mu.Lock()
	v.phone = ""
	v.draft = ""
	v.shown = 0
	v.mu.Unlock()
	v.roster.Deselect()
}

// Phone returns the open chat's phone, or "".
func (v *View) Phone() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.phone
}

// Summary returns the open chat's current summary.
func (v *View) Summary() (chat.Summary, bool) {
	phone := v.Phone()
	if phone == "" {
		return chat.Summary{}, false
	}
	return v.roster.Summary(phone)
}

// Messages returns the open chat's log as it is now.
func (v *View) Messages() []chat.Message {
	sum, ok := v.Summary()
	if !ok {
		return nil
	}
	return sum.Messages
}

// Draft returns the composer text.
func (v *View) Draft() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.draft
}

// SetDraft replaces the composer text.
func (v *View) SetDraft(text string) {
	v.mu.Lock()
	v.draft = text
	v.mu.Unlock()
}

// Send submits text to the open chat and clears the draft. Nothing is added
// to the log here: the message appears when the backend echoes it.
func (v *View) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	v.mu.Lock()
	phone := v.phone
	if phone == "" {
		v.mu.Unlock()
		return ErrNoChat
	}
	if text == "" {
		v.mu.Unlock()
		return ErrEmptyMessage
	}
	v.draft = ""
	v.mu.Unlock()

	if _, err := v.sender.Send(ctx, phone, text); err != nil {
		return err
	}
	return nil
}

// Lock hands the open chat to the operator.
func (v *View) Lock(ctx context.Context) error {
	return v.setLocked(ctx, true)
}

// Unlock returns the open chat to the bot.
func (v *View) Unlock(ctx context.Context) error {
	return v.setLocked(ctx, false)
}

func (v *View) setLocked(ctx context.Context, locked bool) error {
	phone := v.Phone()
	if phone == "" {
		return ErrNoChat
	}

	action, call := ActionUnlock, v.locker.Unlock
	if locked {
		action, call = ActionLock, v.locker.Lock
	}
	if err := call(ctx, phone); err != nil {
		v.logger.Warn("chat action failed",
			zap.String("action", action),
			zap.String("phone", phone),
			zap.Error(err),
		)
		v.publish(bus.KindActionFailed, chat.ActionFailed{PhoneNumber: phone, Action: action, Err: err})
		return fmt.Errorf("%s %s: %w", action, phone, err)
	}

	// A later status_update with the same value is a no-op.
	v.roster.SetLocked(phone, locked)
	v.logger.Info("chat "+action+"ed", zap.String("phone", phone))
	return nil
}

func (v *View) handleEvent(evt bus.Event) {
	n, ok := evt.Payload.(chat.MessageReceived)
	if !ok || n.PhoneNumber != v.Phone() {
		return
	}
	v.roster.ApplyMessage(n)
	// The roster's own consumer may have merged it first, so compare the log
	// length instead of trusting ApplyMessage. A duplicate changes nothing.
	sum, ok := v.roster.Summary(n.PhoneNumber)
	if !ok {
		return
	}
	v.mu.Lock()
	grew := v.phone == n.PhoneNumber && len(sum.Messages) > v.shown
	if grew {
		v.shown = len(sum.Messages)
	}
	v.mu.Unlock()
	if grew {
		v.requestScroll()
	}
}

func (v *View) requestScroll() {
	select {
	case v.scrollCh <- struct{}{}:
	default:
	}
}

func (v *View) publish(kind string, payload any) {
	if v.bus == nil {
		return
	}
	v.bus.Publish(bus.Event{
		Kind:      kind,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}

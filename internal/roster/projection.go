package roster

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/matheus3301/wppdesk/internal/bus"
	"github.com/matheus3301/wppdesk/internal/chat"
	"go.uber.org/zap"
)

// Backend is what the roster needs from the REST collaborator.
type Backend interface {
	ListChats(ctx context.Context) ([]*chat.Summary, error)
	MarkViewed(ctx context.Context, phone string) error
}

// Loaded is the payload of bus.KindRosterLoaded.
type Loaded struct {
	Count int
}

// LoadFailed is the payload of bus.KindRosterFailed.
type LoadFailed struct {
	Err error
}

// ActionMarkViewed names the mark-viewed call in chat.ActionFailed.
const ActionMarkViewed = "mark_viewed"

// Projection is the live roster shared by every view. It consumes chat
// events from the bus through its own subscription, and owns the summaries
// the conversation view reads.
type Projection struct {
	mu      sync.RWMutex
	state   *State
	loadErr error
	loaded  bool

	backend Backend
	bus     *bus.Bus
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	refreshCh chan struct{}
}

// New creates an empty projection. Call Start to begin consuming events.
func New(backend Backend, b *bus.Bus, logger *zap.Logger) *Projection {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Projection{
		state:     NewState(),
		backend:   backend,
		bus:       b,
		logger:    logger.Named("roster"),
		ctx:       ctx,
		cancel:    cancel,
		refreshCh: make(chan struct{}, 1),
	}
}

// Start subscribes to chat events on the bus.
func (p *Projection) Start(ctx context.Context) {
	ch, unsub := p.bus.Subscribe("chat.", 256)
	stop := context.AfterFunc(ctx, p.cancel)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer stop()
		defer unsub()
		for {
			select {
			case evt := <-ch:
				p.handleEvent(evt)
			case <-p.ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the subscription and waits for background calls to return.
func (p *Projection) Stop() {
	p.cancel()
	p.wg.Wait()
}

// Changed signals that the roster changed. Signals coalesce.
func (p *Projection) Changed() <-chan struct{} {
	return p.refreshCh
}

// Load fetches the roster once. On failure the roster stays as it is, the
// error is kept for LoadErr and bus.KindRosterFailed is published.
func (p *Projection) Load(ctx context.Context) error {
	chats, err := p.backend.ListChats(ctx)
	if err != nil {
		p.mu.Lock()
		p.loadErr = err
		p.mu.Unlock()
		p.logger.Error("failed to load roster", zap.Error(err))
		p.publish(bus.KindRosterFailed, LoadFailed{Err: err})
		p.signalRefresh()
		return fmt.Errorf("load roster: %w", err)
	}

	p.mu.Lock()
	p.state.Reset(chats)
	p.loadErr = nil
	p.loaded = true
	n := p.state.Len()
	p.mu.Unlock()

	p.logger.Info("roster loaded", zap.Int("chats", n))
	p.publish(bus.KindRosterLoaded, Loaded{Count: n})
	p.signalRefresh()
	return nil
}

// LoadErr returns the last load failure, nil after a successful load.
func (p *Projection) LoadErr() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loadErr
}

// Loaded reports whether a fetch has succeeded.
func (p *Projection) Loaded() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loaded
}

// Select opens phone: its unseen counter drops to zero at once, and the
// backend is told once if there was anything unseen. If that call fails the
// previous count is added back and bus.KindActionFailed is published.
func (p *Projection) Select(ctx context.Context, phone string) error {
	p.mu.Lock()
	prev := p.state.Select(phone)
	p.mu.Unlock()
	p.signalRefresh()

	if prev <= 0 {
		return nil
	}
	if err := p.backend.MarkViewed(ctx, phone); err != nil {
		p.mu.Lock()
		p.state.AddUnseen(phone, prev)
		p.mu.Unlock()
		p.signalRefresh()
		p.logger.Warn("failed to mark chat viewed", zap.String("phone", phone), zap.Error(err))
		p.publish(bus.KindActionFailed, chat.ActionFailed{PhoneNumber: phone, Action: ActionMarkViewed, Err: err})
		return fmt.Errorf("mark %s viewed: %w", phone, err)
	}
	return nil
}

// Deselect clears the selection.
func (p *Projection) Deselect() {
	p.mu.Lock()
	p.state.Select("")
	p.mu.Unlock()
	p.signalRefresh()
}

// Selected returns the selected phone, or "".
func (p *Projection) Selected() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.Selected()
}

// List returns the summaries visible under q. It never mutates the roster.
func (p *Projection) List(q chat.Query) []chat.Summary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.List(q)
}

// Summary returns a copy of phone's current summary.
func (p *Projection) Summary(phone string) (chat.Summary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	sum, ok := p.state.Get(phone)
	if !ok {
		return chat.Summary{}, false
	}
	return sum.Clone(), true
}

// ApplyMessage merges n into the roster. Both projections call it for the
// same event; the second call finds a duplicate and changes nothing.
func (p *Projection) ApplyMessage(n chat.MessageReceived) bool {
	p.mu.Lock()
	changed := p.state.ApplyMessage(n)
	markViewed := false
	if changed && n.Role == chat.RoleUser && n.PhoneNumber == p.state.Selected() {
		if sum, ok := p.state.Get(n.PhoneNumber); ok && sum.Locked {
			markViewed = true
		}
	}
	p.mu.Unlock()

	if changed {
		p.signalRefresh()
	}
	if markViewed {
		p.markViewedAsync(n.PhoneNumber)
	}
	return changed
}

// SetLocked sets the lock flag on a known chat.
func (p *Projection) SetLocked(phone string, locked bool) bool {
	p.mu.Lock()
	changed := p.state.SetLocked(phone, locked)
	p.mu.Unlock()
	if changed {
		p.signalRefresh()
	}
	return changed
}

func (p *Projection) handleEvent(evt bus.Event) {
	switch n := evt.Payload.(type) {
	case chat.MessageReceived:
		p.ApplyMessage(n)
	case chat.StatusChanged:
		p.SetLocked(n.PhoneNumber, n.Locked)
	}
}

// markViewedAsync keeps the backend counter at zero while an operator has a
// locked chat open.
func (p *Projection) markViewedAsync(phone string) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(p.ctx, 10*time.Second)
		defer cancel()
		if err := p.backend.MarkViewed(ctx, phone); err != nil {
			p.logger.Warn("background mark viewed failed", zap.String("phone", phone), zap.Error(err))
			p.publish(bus.KindActionFailed, chat.ActionFailed{PhoneNumber: phone, Action: ActionMarkViewed, Err: err})
		}
	}()
}

func (p *Projection) signalRefresh() {
	select {
	case p.refreshCh <- struct{}{}:
	default:
	}
}

func (p *Projection) publish(kind string, payload any) {
	if p.bus == nil {
		return
	}
	p.bus.Publish(bus.Event{
		Kind:      kind,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}

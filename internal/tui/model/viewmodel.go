package model

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/matheus3301/wppdesk/internal/bus"
	"github.com/matheus3301/wppdesk/internal/chat"
	"github.com/matheus3301/wppdesk/internal/conversation"
	"github.com/matheus3301/wppdesk/internal/roster"
	"github.com/matheus3301/wppdesk/internal/status"
	"go.uber.org/zap"
)

// Connection is the part of the connection manager the screen reads.
type Connection interface {
	State() status.State
	Attempt() int
	Healthy() bool
	Exhausted() bool
	LastHeartbeatAck() time.Time
	Retry(ctx context.Context) error
}

// InFlighter reports sends awaiting the backend.
type InFlighter interface {
	InFlight() int
}

// ConnInfo is a snapshot of the connection for the header.
type ConnInfo struct {
	State     status.State
	Attempt   int
	Healthy   bool
	Exhausted bool
	LastAck   time.Time
}

// ViewModel turns projection changes and bus events into screen refreshes and
// flash notices. It owns the roster query; everything else is read live from
// the projections.
type ViewModel struct {
	profile string
	roster  *roster.Projection
	view    *conversation.View
	conn    Connection
	outbox  InFlighter
	bus     *bus.Bus
	flash   Flasher
	logger  *zap.Logger

	mu     sync.RWMutex
	query  chat.Query
	scroll bool

	refreshCh chan struct{}
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewViewModel creates a view model over the mounted console.
func NewViewModel(profile string, r *roster.Projection, v *conversation.View, conn Connection, out InFlighter, b *bus.Bus, flash Flasher, logger *zap.Logger) *ViewModel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViewModel{
		profile:   profile,
		roster:    r,
		view:      v,
		conn:      conn,
		outbox:    out,
		bus:       b,
		flash:     flash,
		logger:    logger.Named("tui"),
		refreshCh: make(chan struct{}, 1),
	}
}

// Start listens to the bus and the projections until Stop.
func (vm *ViewModel) Start(ctx context.Context) {
	ctx, vm.cancel = context.WithCancel(ctx)
	events, unsub := vm.bus.Subscribe("", 256)

	vm.wg.Add(1)
	go func() {
		defer vm.wg.Done()
		defer unsub()
		for {
			select {
			case evt := <-events:
				if n, ok := NoticeFor(evt); ok && vm.flash != nil {
					n.Show(vm.flash)
				}
				vm.signalRefresh()
			case <-vm.roster.Changed():
				vm.signalRefresh()
			case <-vm.view.ScrollRequests():
				vm.mu.Lock()
				vm.scroll = true
				vm.mu.Unlock()
				vm.signalRefresh()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the listener.
func (vm *ViewModel) Stop() {
	if vm.cancel != nil {
		vm.cancel()
	}
	vm.wg.Wait()
}

// RefreshCh returns the channel that signals UI refresh.
func (vm *ViewModel) RefreshCh() <-chan struct{} {
	return vm.refreshCh
}

func (vm *ViewModel) signalRefresh() {
	select {
	case vm.refreshCh <- struct{}{}:
	default:
	}
}

// TakeScroll reports whether the thread should jump to its newest message,
// and clears the request.
func (vm *ViewModel) TakeScroll() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	s := vm.scroll
	vm.scroll = false
	return s
}

// Profile returns the active profile name.
func (vm *ViewModel) Profile() string { return vm.profile }

// Query returns the current roster query.
func (vm *ViewModel) Query() chat.Query {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.query
}

// CycleFilter advances all -> bot -> human.
func (vm *ViewModel) CycleFilter() chat.Filter {
	vm.mu.Lock()
	vm.query.Filter = vm.query.Filter.Next()
	f := vm.query.Filter
	vm.mu.Unlock()
	vm.signalRefresh()
	return f
}

// SetFilter selects a roster filter.
func (vm *ViewModel) SetFilter(f chat.Filter) {
	vm.mu.Lock()
	vm.query.Filter = f
	vm.mu.Unlock()
	vm.signalRefresh()
}

// SetSearch sets the roster search term.
func (vm *ViewModel) SetSearch(term string) {
	vm.mu.Lock()
	vm.query.Search = term
	vm.mu.Unlock()
	vm.signalRefresh()
}

// Chats returns the roster under the current query.
func (vm *ViewModel) Chats() []chat.Summary {
	return vm.roster.List(vm.Query())
}

// Totals returns the number of chats and the unseen messages across them.
func (vm *ViewModel) Totals() (chats, unseen int) {
	all := vm.roster.List(chat.Query{})
	for _, s := range all {
		unseen += s.UnseenCount
	}
	return len(all), unseen
}

// LoadErr returns the roster load failure to show in place of the list.
func (vm *ViewModel) LoadErr() error {
	return vm.roster.LoadErr()
}

// Reload fetches the roster again.
func (vm *ViewModel) Reload(ctx context.Context) error {
	return vm.roster.Load(ctx)
}

// Open opens phone's conversation. Backend failures are already reported on
// the bus.
func (vm *ViewModel) Open(ctx context.Context, phone string) error {
	return vm.view.Open(ctx, phone)
}

// Close leaves the conversation.
func (vm *ViewModel) Close() {
	vm.view.Close()
}

// Thread returns the open conversation.
func (vm *ViewModel) Thread() (chat.Summary, bool) {
	return vm.view.Summary()
}

// Draft returns the composer text kept for the open chat.
func (vm *ViewModel) Draft() string { return vm.view.Draft() }

// SetDraft keeps the composer text for the open chat.
func (vm *ViewModel) SetDraft(text string) { vm.view.SetDraft(text) }

// Send submits text to the open chat. Input errors are flashed here; backend
// failures arrive through the bus.
func (vm *ViewModel) Send(ctx context.Context, text string) error {
	err := vm.view.Send(ctx, text)
	vm.flashInputErr(err)
	return err
}

// Lock hands the open chat to the operator.
func (vm *ViewModel) Lock(ctx context.Context) error {
	err := vm.view.Lock(ctx)
	vm.flashInputErr(err)
	return err
}

// Unlock returns the open chat to the bot.
func (vm *ViewModel) Unlock(ctx context.Context) error {
	err := vm.view.Unlock(ctx)
	vm.flashInputErr(err)
	return err
}

// Retry starts a new round of connection attempts.
func (vm *ViewModel) Retry(ctx context.Context) error {
	err := vm.conn.Retry(ctx)
	if err != nil && vm.flash != nil {
		vm.flash.Err(err)
	}
	return err
}

// Connection returns the connection snapshot.
func (vm *ViewModel) Connection() ConnInfo {
	return ConnInfo{
		State:     vm.conn.State(),
		Attempt:   vm.conn.Attempt(),
		Healthy:   vm.conn.Healthy(),
		Exhausted: vm.conn.Exhausted(),
		LastAck:   vm.conn.LastHeartbeatAck(),
	}
}

// InFlight returns the number of sends awaiting the backend.
func (vm *ViewModel) InFlight() int {
	if vm.outbox == nil {
		return 0
	}
	return vm.outbox.InFlight()
}

func (vm *ViewModel) flashInputErr(err error) {
	if vm.flash == nil {
		return
	}
	switch {
	case errors.Is(err, conversation.ErrNoChat):
		vm.flash.Warn("Open a chat first")
	case errors.Is(err, conversation.ErrEmptyMessage):
		vm.flash.Warn("Nothing to send")
	}
}

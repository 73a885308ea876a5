package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/matheus3301/wppdesk/internal/bus"
	"github.com/matheus3301/wppdesk/internal/status"
	"go.uber.org/zap"
)

// Close codes used by the manager.
const (
	CodeNormal           = 1000
	CodeAbnormal         = 1006
	CodeHeartbeatTimeout = 4000
)

// ErrTornDown is returned by Connect and Retry after Disconnect.
var ErrTornDown = errors.New("ws: connection manager torn down")

// CloseError reports the close frame a socket read ended with.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("websocket closed: %d %s", e.Code, e.Reason)
}

// Socket is one open websocket.
type Socket interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close(code int, reason string) error
}

// Dialer opens sockets.
type Dialer interface {
	Dial(ctx context.Context, url string) (Socket, error)
}

// Router classifies inbound frames. Heartbeat acks must be returned so the
// manager can clear its watchdog.
type Router interface {
	Route(frame []byte) (bus.Event, bool)
}

// Options configures the manager. Zero fields take the defaults.
type Options struct {
	URL               string
	HeartbeatInterval time.Duration
	WatchdogTimeout   time.Duration
	MaxAttempts       int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
}

func (o Options) withDefaults() Options {
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = 60 * time.Second
	}
	if o.WatchdogTimeout <= 0 {
		o.WatchdogTimeout = 5 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = time.Second
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 30 * time.Second
	}
	return o
}

// Reconnecting is the payload of bus.KindReconnecting.
type Reconnecting struct {
	Attempt int
	Delay   time.Duration
	Code    int
}

// Exhausted is the payload of bus.KindExhausted.
type Exhausted struct {
	Attempts int
}

// Unhealthy is the payload of bus.KindUnhealthy.
type Unhealthy struct {
	Err error
}

type pingFrame struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// Manager owns the single websocket of the session: it dials, keeps the
// connection alive with pings, and reconnects with exponential backoff after
// abnormal closes until Disconnect.
//
// Every socket and timer callback captures the generation it was created
// for; any change of socket bumps the generation so stale callbacks return
// without effect.
type Manager struct {
	opts   Options
	dialer Dialer
	router Router
	bus    *bus.Bus
	state  *status.Machine
	clock  Clock
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	sock      Socket
	gen       uint64
	attempt   int
	lastAck   time.Time
	lastPing  time.Time
	healthy   bool
	torndown  bool
	exhausted bool

	heartbeat Timer
	watchdog  Timer
	reconnect Timer
}

// NewManager creates a manager in the Closed state. Nothing is dialed until
// Connect.
func NewManager(opts Options, dialer Dialer, router Router, b *bus.Bus, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		opts:   opts.withDefaults(),
		dialer: dialer,
		router: router,
		bus:    b,
		state:  status.NewMachine(b),
		clock:  realClock{},
		logger: logger.Named("ws"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Connect dials the backend. It is a no-op while a connection is in flight or
// open. A failed dial is handled like an abnormal close: a reconnect is
// scheduled and the dial error is returned.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.torndown {
		m.mu.Unlock()
		return ErrTornDown
	}
	if m.state.Active() {
		m.mu.Unlock()
		return nil
	}
	return m.dialLocked(ctx)
}

// Retry starts a fresh round of attempts after the previous round was
// exhausted.
func (m *Manager) Retry(ctx context.Context) error {
	m.mu.Lock()
	if m.torndown {
		m.mu.Unlock()
		return ErrTornDown
	}
	if m.state.Active() {
		m.mu.Unlock()
		return nil
	}
	m.attempt = 0
	m.exhausted = false
	stopTimer(&m.reconnect)
	m.logger.Info("retrying connection")
	return m.dialLocked(ctx)
}

// Disconnect closes the connection with a normal close and stops every
// timer. It is final: no reconnect is ever scheduled afterwards.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.torndown {
		m.mu.Unlock()
		return
	}
	m.torndown = true
	m.cancel()
	m.gen++
	m.stopTimersLocked()
	sock := m.sock
	m.sock = nil
	m.healthy = false
	switch m.state.Current() {
	case status.Open:
		m.transition(status.Closing)
		m.transition(status.Closed)
	case status.Connecting, status.Closing:
		m.transition(status.Closed)
	}
	m.mu.Unlock()

	if sock != nil {
		closesByCode.WithLabelValues(strconv.Itoa(CodeNormal)).Inc()
		if err := sock.Close(CodeNormal, "client teardown"); err != nil {
			m.logger.Debug("close socket", zap.Error(err))
		}
	}
	m.logger.Info("connection manager torn down")
}

// State returns the connection state.
func (m *Manager) State() status.State { return m.state.Current() }

// Attempt returns the number of reconnects scheduled since the last open.
func (m *Manager) Attempt() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempt
}

// Healthy reports whether the open socket has had no write failure since the
// last ack.
func (m *Manager) Healthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthy
}

// Exhausted reports whether reconnection gave up.
func (m *Manager) Exhausted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exhausted
}

// LastHeartbeatAck returns when the last pong (or the open) was observed.
func (m *Manager) LastHeartbeatAck() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastAck
}

// dialLocked must be called with m.mu held; it returns with m.mu released.
func (m *Manager) dialLocked(ctx context.Context) error {
	if err := m.state.Transition(status.Connecting); err != nil {
		m.mu.Unlock()
		return err
	}
	stopTimer(&m.reconnect)
	m.gen++
	gen := m.gen
	url := m.opts.URL

	dctx, cancel := context.WithCancel(m.ctx)
	stop := context.AfterFunc(ctx, cancel)
	m.mu.Unlock()

	m.logger.Debug("dialing", zap.String("url", url), zap.Uint64("gen", gen))
	sock, err := m.dialer.Dial(dctx, url)
	stop()
	cancel()

	m.mu.Lock()
	if gen != m.gen || m.torndown {
		torndown := m.torndown
		m.mu.Unlock()
		if sock != nil {
			sock.Close(CodeNormal, "superseded")
		}
		if torndown {
			return ErrTornDown
		}
		return nil
	}
	if err != nil {
		dialFailures.Inc()
		m.logger.Warn("dial failed", zap.String("url", url), zap.Error(err))
		m.handleCloseLocked(gen, CodeAbnormal, err.Error())
		m.mu.Unlock()
		return fmt.Errorf("connect: %w", err)
	}

	m.sock = sock
	m.attempt = 0
	m.exhausted = false
	m.healthy = true
	m.lastAck = m.clock.Now()
	m.transition(status.Open)
	m.heartbeat = m.clock.AfterFunc(m.opts.HeartbeatInterval, func() { m.beat(gen) })
	m.mu.Unlock()

	m.logger.Info("connected", zap.String("url", url))
	go m.readLoop(gen, sock)
	return nil
}

func (m *Manager) readLoop(gen uint64, sock Socket) {
	for {
		frame, err := sock.ReadMessage()
		if err != nil {
			code, reason := CodeAbnormal, err.Error()
			var ce *CloseError
			if errors.As(err, &ce) {
				code, reason = ce.Code, ce.Reason
			}

			m.mu.Lock()
			current := gen == m.gen
			m.handleCloseLocked(gen, code, reason)
			m.mu.Unlock()

			if current {
				m.logger.Info("connection closed", zap.Int("code", code), zap.String("reason", reason))
				sock.Close(code, reason)
			}
			return
		}

		evt, ok := m.router.Route(frame)
		if ok && evt.Kind == bus.KindHeartbeatAck {
			m.ack(gen)
		}
	}
}

func (m *Manager) beat(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.sock == nil {
		m.mu.Unlock()
		return
	}
	sock := m.sock
	now := m.clock.Now()
	m.lastPing = now
	stopTimer(&m.watchdog)
	m.watchdog = m.clock.AfterFunc(m.opts.WatchdogTimeout, func() { m.checkHeartbeat(gen) })
	m.heartbeat = m.clock.AfterFunc(m.opts.HeartbeatInterval, func() { m.beat(gen) })
	m.mu.Unlock()

	frame, err := json.Marshal(pingFrame{Type: "ping", Timestamp: now.UnixMilli()})
	if err == nil {
		err = sock.WriteMessage(frame)
	}
	if err != nil {
		m.markUnhealthy(gen, err)
		return
	}
	pingsSent.Inc()
}

func (m *Manager) ack(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return
	}
	m.lastAck = m.clock.Now()
	m.healthy = true
	stopTimer(&m.watchdog)
}

func (m *Manager) checkHeartbeat(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.sock == nil {
		m.mu.Unlock()
		return
	}
	m.watchdog = nil
	// The pong for the latest ping raced the watchdog and won.
	if !m.lastAck.Before(m.lastPing) {
		m.mu.Unlock()
		return
	}
	since := m.clock.Now().Sub(m.lastAck)

	heartbeatTimeouts.Inc()
	m.logger.Warn("heartbeat timeout", zap.Duration("since_last_ack", since))
	sock := m.sock
	m.transition(status.Closing)
	m.handleCloseLocked(gen, CodeHeartbeatTimeout, "heartbeat timeout")
	m.mu.Unlock()

	sock.Close(CodeHeartbeatTimeout, "heartbeat timeout")
}

func (m *Manager) markUnhealthy(gen uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return
	}
	m.healthy = false
	m.logger.Warn("socket write failed", zap.Error(err))
	m.publish(bus.KindUnhealthy, Unhealthy{Err: err})
}

// handleCloseLocked retires socket generation gen and decides whether to
// reconnect. Must be called with m.mu held.
func (m *Manager) handleCloseLocked(gen uint64, code int, reason string) {
	if gen != m.gen {
		return
	}
	m.gen++
	m.stopTimersLocked()
	m.sock = nil
	m.healthy = false
	if m.state.Current() != status.Closed {
		m.transition(status.Closed)
	}
	closesByCode.WithLabelValues(strconv.Itoa(code)).Inc()

	if code == CodeNormal || m.torndown {
		return
	}
	if m.attempt >= m.opts.MaxAttempts {
		m.exhausted = true
		m.logger.Error("reconnect attempts exhausted",
			zap.Int("attempts", m.attempt),
			zap.Int("code", code),
			zap.String("reason", reason),
		)
		m.publish(bus.KindExhausted, Exhausted{Attempts: m.attempt})
		return
	}

	delay := Backoff(m.attempt, m.opts.BaseDelay, m.opts.MaxDelay)
	m.attempt++
	reconnectsScheduled.Inc()
	m.logger.Info("scheduling reconnect",
		zap.Int("attempt", m.attempt),
		zap.Duration("delay", delay),
		zap.Int("code", code),
	)
	m.publish(bus.KindReconnecting, Reconnecting{Attempt: m.attempt, Delay: delay, Code: code})
	rgen := m.gen
	m.reconnect = m.clock.AfterFunc(delay, func() { m.reconnectNow(rgen) })
}

func (m *Manager) reconnectNow(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.torndown || m.state.Active() {
		m.mu.Unlock()
		return
	}
	m.reconnect = nil
	if err := m.dialLocked(m.ctx); err != nil && !errors.Is(err, ErrTornDown) {
		m.logger.Debug("reconnect failed", zap.Error(err))
	}
}

func (m *Manager) stopTimersLocked() {
	stopTimer(&m.heartbeat)
	stopTimer(&m.watchdog)
	stopTimer(&m.reconnect)
}

func (m *Manager) transition(to status.State) {
	if err := m.state.Transition(to); err != nil {
		m.logger.Warn("state transition rejected", zap.Error(err))
	}
}

func (m *Manager) publish(kind string, payload any) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(bus.Event{
		Kind:      kind,
		Timestamp: m.clock.Now(),
		Payload:   payload,
	})
}

func stopTimer(t *Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

package console

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/matheus3301/wppdesk/internal/backend"
	"github.com/matheus3301/wppdesk/internal/bus"
	"github.com/matheus3301/wppdesk/internal/chat"
	"github.com/matheus3301/wppdesk/internal/config"
	"github.com/matheus3301/wppdesk/internal/conversation"
	"github.com/matheus3301/wppdesk/internal/roster"
	"github.com/matheus3301/wppdesk/internal/status"
	"github.com/matheus3301/wppdesk/internal/ws"
	"go.uber.org/fx"
)

// fakeBot serves the chat endpoints and the websocket of the bot backend.
type fakeBot struct {
	srv    *httptest.Server
	conns  chan *websocket.Conn
	mu     sync.Mutex
	viewed []string
	keys   []string
}

func newFakeBot(t *testing.T, roster string) *fakeBot {
	t.Helper()
	fb := &fakeBot{conns: make(chan *websocket.Conn, 4)}
	upgrader := websocket.Upgrader{}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /bot-whatsapp/chats/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(roster))
	})
	mux.HandleFunc("PUT /bot-whatsapp/update-chat/{phone}", func(w http.ResponseWriter, r *http.Request) {
		fb.mu.Lock()
		fb.viewed = append(fb.viewed, r.PathValue("phone"))
		fb.mu.Unlock()
		_, _ = w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/ws/", func(w http.ResponseWriter, r *http.Request) {
		fb.mu.Lock()
		fb.keys = append(fb.keys, r.Header.Get(backend.APIKeyHeader))
		fb.mu.Unlock()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		fb.conns <- conn
	})
	fb.srv = httptest.NewServer(mux)
	t.Cleanup(fb.srv.Close)
	return fb
}

func (fb *fakeBot) config() *config.Config {
	cfg := config.Default()
	cfg.Backend.BaseURL = fb.srv.URL
	cfg.Backend.APIKey = "k-123"
	return cfg
}

func (fb *fakeBot) conn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case c := <-fb.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("console never opened the websocket")
		return nil
	}
}

func (fb *fakeBot) viewedCalls() []string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]string(nil), fb.viewed...)
}

func (fb *fakeBot) handshakeKeys() []string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]string(nil), fb.keys...)
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

type mounted struct {
	app     *fx.App
	roster  *roster.Projection
	view    *conversation.View
	manager *ws.Manager
	bus     *bus.Bus
}

func mount(t *testing.T, cfg *config.Config) *mounted {
	t.Helper()
	var m mounted
	m.app = fx.New(
		Module(Params{Profile: "test", Config: cfg}),
		fx.Populate(&m.roster, &m.view, &m.manager, &m.bus),
	)
	if err := m.app.Err(); err != nil {
		t.Fatalf("fx.New() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.app.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return &m
}

func (m *mounted) unmount(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.app.Stop(ctx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestMountReceiveOpen(t *testing.T) {
	t.Setenv("WPPDESK_HOME", t.TempDir())
	fb := newFakeBot(t, `{"chats":[{"phone_number":"56911112222","name":"Ana","locked":false,"messages":[]}]}`)

	m := mount(t, fb.config())
	defer m.unmount(t)

	if !m.roster.Loaded() {
		t.Fatal("roster not loaded on mount")
	}
	conn := fb.conn(t)
	waitFor(t, func() bool { return m.manager.State() == status.Open }, "connection open")
	if keys := fb.handshakeKeys(); len(keys) != 1 || keys[0] != "k-123" {
		t.Errorf("handshake api keys = %v", keys)
	}

	frame := `{"type":"new_message","phone_number":"56911112222","data":{"content":"Hola","role":"user"},"timestamp":"2026-03-01T10:00:00Z"}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		sum, _ := m.roster.Summary("56911112222")
		return sum.UnseenCount == 1
	}, "unseen count from the live message")
	sum, _ := m.roster.Summary("56911112222")
	if sum.LastMessagePreview != "Hola" {
		t.Errorf("preview = %q, want Hola", sum.LastMessagePreview)
	}

	if err := m.view.Open(context.Background(), "56911112222"); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	sum, _ = m.view.Summary()
	if sum.UnseenCount != 0 {
		t.Errorf("unseen after open = %d, want 0", sum.UnseenCount)
	}
	msgs := m.view.Messages()
	if len(msgs) != 1 || msgs[0].Content != "Hola" || msgs[0].Role != chat.RoleUser {
		t.Errorf("messages = %+v", msgs)
	}
	if calls := fb.viewedCalls(); len(calls) != 1 || calls[0] != "56911112222" {
		t.Errorf("mark viewed calls = %v", calls)
	}
}

func TestUnmountClosesNormally(t *testing.T) {
	t.Setenv("WPPDESK_HOME", t.TempDir())
	fb := newFakeBot(t, `{"chats":[]}`)

	m := mount(t, fb.config())
	conn := fb.conn(t)
	m.unmount(t)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	var ce *websocket.CloseError
	if !errors.As(err, &ce) || ce.Code != websocket.CloseNormalClosure {
		t.Fatalf("server read after unmount = %v, want close 1000", err)
	}
	if err := m.manager.Connect(context.Background()); !errors.Is(err, ws.ErrTornDown) {
		t.Errorf("Connect() after unmount = %v, want ErrTornDown", err)
	}
}

func TestRosterLoadFailureDoesNotBlockMount(t *testing.T) {
	t.Setenv("WPPDESK_HOME", t.TempDir())
	fb := newFakeBot(t, `not json`)

	m := mount(t, fb.config())
	defer m.unmount(t)

	if m.roster.LoadErr() == nil {
		t.Error("LoadErr() = nil for an invalid roster response")
	}
	fb.conn(t)
}

func TestSecondConsoleOnProfileFails(t *testing.T) {
	t.Setenv("WPPDESK_HOME", t.TempDir())
	fb := newFakeBot(t, `{"chats":[]}`)

	m := mount(t, fb.config())
	defer m.unmount(t)

	app := fx.New(Module(Params{Profile: "test", Config: fb.config()}))
	err := app.Err()
	if err == nil || !strings.Contains(err.Error(), "profile in use") {
		t.Fatalf("second console error = %v, want the profile lock to be held", err)
	}
}

func TestInvalidConfigFailsWiring(t *testing.T) {
	t.Setenv("WPPDESK_HOME", t.TempDir())
	app := fx.New(Module(Params{Profile: "test", Config: config.Default()}))
	if app.Err() == nil {
		t.Error("fx.New() accepted a config without a backend")
	}
}

func TestHeadlessStreamsFrames(t *testing.T) {
	t.Setenv("WPPDESK_HOME", t.TempDir())
	fb := newFakeBot(t, `{"chats":[]}`)

	var b *bus.Bus
	app := fx.New(Headless(Params{Profile: "test", Config: fb.config()}), fx.Populate(&b))
	if err := app.Err(); err != nil {
		t.Fatal(err)
	}
	ch, unsub := b.Subscribe("chat.", 4)
	defer unsub()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = app.Stop(ctx) }()

	conn := fb.conn(t)
	frame := `{"type":"status_update","phone_number":"111","locked":true}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatal(err)
	}
	select {
	case evt := <-ch:
		sc, ok := evt.Payload.(chat.StatusChanged)
		if !ok || sc.PhoneNumber != "111" || !sc.Locked {
			t.Errorf("event = %+v", evt)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no status event from the headless connection")
	}
}

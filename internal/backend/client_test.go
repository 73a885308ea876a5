package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/wppdesk/internal/chat"
	"go.uber.org/zap"
)

type recordedRequest struct {
	Method    string
	Path      string
	APIKey    string
	RequestID string
	Body      string
}

func testServer(t *testing.T, status int, response string) (*Client, <-chan recordedRequest) {
	t.Helper()
	reqs := make(chan recordedRequest, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		reqs <- recordedRequest{
			Method:    r.Method,
			Path:      r.URL.EscapedPath(),
			APIKey:    r.Header.Get(APIKeyHeader),
			RequestID: r.Header.Get(RequestIDHeader),
			Body:      string(body),
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", "secret", srv.Client(), zap.NewNop()), reqs
}

func TestListChats(t *testing.T) {
	const body = `{"chats":[
		{"phone_number":"56911112222","name":"Ana","locked":true,"self_count_not_viewed":3,
		 "messages":[
			{"content":"Hola","role":"user","timestamp":"2026-03-01T10:00:00Z"},
			{"content":"Hola, ¿en qué te ayudo?","role":"assistant","date":"2026-03-01T10:00:05"},
			{"content":"Hola","role":"user","timestamp":"2026-03-01T10:00:00Z"}
		 ]},
		{"phone_number":56933334444,"messages":[]},
		{"name":"no phone"}
	]}`
	c, reqs := testServer(t, http.StatusOK, body)

	chats, err := c.ListChats(context.Background())
	if err != nil {
		t.Fatalf("ListChats() error = %v", err)
	}
	req := <-reqs
	if req.Method != http.MethodGet || req.Path != "/bot-whatsapp/chats/" {
		t.Errorf("request = %s %s", req.Method, req.Path)
	}
	if req.APIKey != "secret" {
		t.Errorf("api key header = %q", req.APIKey)
	}

	if len(chats) != 2 {
		t.Fatalf("got %d chats, want 2", len(chats))
	}
	ana := chats[0]
	if ana.PhoneNumber != "56911112222" || ana.Name != "Ana" || !ana.Locked || ana.UnseenCount != 3 {
		t.Errorf("first chat = %+v", ana)
	}
	if len(ana.Messages) != 2 {
		t.Fatalf("messages = %d, want 2 (duplicate collapsed)", len(ana.Messages))
	}
	if ana.Messages[1].Role != chat.RoleAssistant {
		t.Errorf("second message role = %q", ana.Messages[1].Role)
	}
	want := time.Date(2026, 3, 1, 10, 0, 5, 0, time.UTC)
	if !ana.LastMessageAt.Equal(want) {
		t.Errorf("LastMessageAt = %v, want %v", ana.LastMessageAt, want)
	}
	if ana.LastMessagePreview != "Hola, ¿en qué te ayudo?" {
		t.Errorf("preview = %q", ana.LastMessagePreview)
	}

	second := chats[1]
	if second.PhoneNumber != "56933334444" || second.Name != "+56933334444" {
		t.Errorf("second chat = %+v", second)
	}
}

func TestSendMessage(t *testing.T) {
	c, reqs := testServer(t, http.StatusOK, `{"status":"queued"}`)

	if err := c.SendMessage(context.Background(), "569", "hola", "req-1"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	req := <-reqs
	if req.Method != http.MethodPost || req.Path != "/webhook/whatsapp/send-message" {
		t.Errorf("request = %s %s", req.Method, req.Path)
	}
	if req.RequestID != "req-1" {
		t.Errorf("request id = %q", req.RequestID)
	}
	var payload map[string]string
	if err := json.Unmarshal([]byte(req.Body), &payload); err != nil {
		t.Fatal(err)
	}
	if payload["phone_number"] != "569" || payload["message"] != "hola" {
		t.Errorf("body = %v", payload)
	}
}

func TestChatActions(t *testing.T) {
	tests := []struct {
		name   string
		call   func(*Client) error
		method string
		path   string
	}{
		{"mark viewed", func(c *Client) error { return c.MarkViewed(context.Background(), "569") }, http.MethodPut, "/bot-whatsapp/update-chat/569"},
		{"lock", func(c *Client) error { return c.Lock(context.Background(), "569") }, http.MethodPost, "/bot-whatsapp/chats/569/lock"},
		{"unlock", func(c *Client) error { return c.Unlock(context.Background(), "569") }, http.MethodPost, "/bot-whatsapp/chats/569/unlock"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, reqs := testServer(t, http.StatusOK, `{}`)
			if err := tt.call(c); err != nil {
				t.Fatalf("error = %v", err)
			}
			req := <-reqs
			if req.Method != tt.method || req.Path != tt.path {
				t.Errorf("request = %s %s, want %s %s", req.Method, req.Path, tt.method, tt.path)
			}
			if req.APIKey != "secret" {
				t.Errorf("api key header = %q", req.APIKey)
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	const body = `{"detail":[{"loc":["body","phone_number"],"msg":"field required","type":"value_error.missing"},{"loc":["body",0],"msg":"bad","type":"x"}]}`
	c, _ := testServer(t, http.StatusUnprocessableEntity, body)

	err := c.SendMessage(context.Background(), "", "hola", "")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v (%T), want *ValidationError", err, err)
	}
	if len(ve.Fields) != 2 {
		t.Fatalf("fields = %d, want 2", len(ve.Fields))
	}
	if got := strings.Join(ve.Fields[0].Loc, "."); got != "body.phone_number" {
		t.Errorf("loc = %q", got)
	}
	if got := strings.Join(ve.Fields[1].Loc, "."); got != "body.0" {
		t.Errorf("loc = %q", got)
	}
	if !strings.Contains(ve.Error(), "body.phone_number: field required") {
		t.Errorf("Error() = %q", ve.Error())
	}
}

func TestAPIError(t *testing.T) {
	c, _ := testServer(t, http.StatusInternalServerError, `boom`)

	err := c.Lock(context.Background(), "569")
	var ae *APIError
	if !errors.As(err, &ae) {
		t.Fatalf("error = %v (%T), want *APIError", err, err)
	}
	if ae.StatusCode != http.StatusInternalServerError || ae.Body != "boom" {
		t.Errorf("APIError = %+v", ae)
	}
}

func TestListChatsInvalidJSON(t *testing.T) {
	c, _ := testServer(t, http.StatusOK, `<html>`)
	if _, err := c.ListChats(context.Background()); err == nil {
		t.Fatal("ListChats() error = nil for a non-JSON body")
	}
}

func TestAuthHeader(t *testing.T) {
	if h := AuthHeader(""); len(h) != 0 {
		t.Errorf("AuthHeader(\"\") = %v, want empty", h)
	}
	if got := AuthHeader("k").Get(APIKeyHeader); got != "k" {
		t.Errorf("AuthHeader(k) = %q", got)
	}
}

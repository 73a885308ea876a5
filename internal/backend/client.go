package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/matheus3301/wppdesk/internal/chat"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Header names sent on every request.
const (
	APIKeyHeader    = "api-key-auth"
	RequestIDHeader = "X-Request-ID"
)

const maxBody = 8 << 20

// Client talks to the bot backend's REST endpoints.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

// New creates a client. A nil httpClient uses a client with a 15s timeout.
func New(baseURL, apiKey string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    httpClient,
		logger:  logger.Named("backend"),
	}
}

// AuthHeader returns the header set that authenticates against the backend,
// for transports other than this client (the websocket handshake).
func AuthHeader(apiKey string) http.Header {
	h := http.Header{}
	if apiKey != "" {
		h.Set(APIKeyHeader, apiKey)
	}
	return h
}

// ListChats fetches the roster in the order the backend returns it.
func (c *Client) ListChats(ctx context.Context) ([]*chat.Summary, error) {
	data, err := c.do(ctx, "list_chats", http.MethodGet, "/bot-whatsapp/chats/", nil, "")
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("list chats: invalid JSON response")
	}

	var out []*chat.Summary
	gjson.GetBytes(data, "chats").ForEach(func(_, v gjson.Result) bool {
		if s := decodeSummary(v); s != nil {
			out = append(out, s)
		}
		return true
	})
	return out, nil
}

// SendMessage asks the backend to deliver text to phone. The message shows up
// later as an inbound new_message frame.
func (c *Client) SendMessage(ctx context.Context, phone, text, requestID string) error {
	body := map[string]string{
		"phone_number": phone,
		"message":      text,
	}
	_, err := c.do(ctx, "send_message", http.MethodPost, "/webhook/whatsapp/send-message", body, requestID)
	return err
}

// MarkViewed resets the backend's unseen counter for phone.
func (c *Client) MarkViewed(ctx context.Context, phone string) error {
	_, err := c.do(ctx, "mark_viewed", http.MethodPut, "/bot-whatsapp/update-chat/"+url.PathEscape(phone), struct{}{}, "")
	return err
}

// Lock hands the chat to a human operator; the bot stops replying.
func (c *Client) Lock(ctx context.Context, phone string) error {
	_, err := c.do(ctx, "lock", http.MethodPost, "/bot-whatsapp/chats/"+url.PathEscape(phone)+"/lock", struct{}{}, "")
	return err
}

// Unlock returns the chat to the bot.
func (c *Client) Unlock(ctx context.Context, phone string) error {
	_, err := c.do(ctx, "unlock", http.MethodPost, "/bot-whatsapp/chats/"+url.PathEscape(phone)+"/unlock", struct{}{}, "")
	return err
}

func (c *Client) do(ctx context.Context, op, method, path string, body any, requestID string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set(APIKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if requestID != "" {
		req.Header.Set(RequestIDHeader, requestID)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	requestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		requestsTotal.WithLabelValues(op, "error").Inc()
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		requestsTotal.WithLabelValues(op, "error").Inc()
		return nil, fmt.Errorf("read %s response: %w", op, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity:
		requestsTotal.WithLabelValues(op, "invalid").Inc()
		return nil, decodeValidation(method, path, data)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		requestsTotal.WithLabelValues(op, "error").Inc()
		c.logger.Warn("backend request failed",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
		)
		return nil, &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(truncate(data, 512))),
		}
	}
	requestsTotal.WithLabelValues(op, "ok").Inc()
	c.logger.Debug("backend request",
		zap.String("op", op),
		zap.Duration("took", time.Since(start)),
	)
	return data, nil
}

func decodeValidation(method, path string, data []byte) *ValidationError {
	ve := &ValidationError{Method: method, Path: path}
	gjson.GetBytes(data, "detail").ForEach(func(_, d gjson.Result) bool {
		f := FieldError{
			Msg:  d.Get("msg").String(),
			Type: d.Get("type").String(),
		}
		d.Get("loc").ForEach(func(_, l gjson.Result) bool {
			f.Loc = append(f.Loc, l.String())
			return true
		})
		ve.Fields = append(ve.Fields, f)
		return true
	})
	return ve
}

// decodeSummary builds a summary from one roster entry. Entries without a
// phone number are skipped.
func decodeSummary(v gjson.Result) *chat.Summary {
	phone := v.Get("phone_number").String()
	if phone == "" {
		return nil
	}
	s := chat.NewSummary(phone)
	if name := v.Get("name").String(); name != "" {
		s.Name = name
	}
	s.Locked = v.Get("locked").Bool()

	v.Get("messages").ForEach(func(_, m gjson.Result) bool {
		role, ok := chat.ParseRole(m.Get("role").String())
		if !ok {
			return true
		}
		ts := m.Get("timestamp")
		if !ts.Exists() {
			ts = m.Get("date")
		}
		s.Append(chat.Message{
			Content:   m.Get("content").String(),
			Role:      role,
			Timestamp: parseTime(ts),
			Status:    chat.StatusDelivered,
			ServerID:  m.Get("message_id").String(),
		})
		return true
	})

	if at := parseTime(v.Get("timestamp")); !at.IsZero() && at.After(s.LastMessageAt) {
		s.LastMessageAt = at
	}
	// Counters are owned by the backend at load time.
	s.UnseenCount = int(v.Get("self_count_not_viewed").Int())
	return s
}

func parseTime(v gjson.Result) time.Time {
	switch v.Type {
	case gjson.Number:
		return chat.FromEpoch(v.Float())
	case gjson.String:
		if t, ok := chat.ParseTimestamp(v.String()); ok {
			return t
		}
	}
	return time.Time{}
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}

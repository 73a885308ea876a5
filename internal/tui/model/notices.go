package model

import (
	"errors"
	"fmt"

	"github.com/matheus3301/wppdesk/internal/bus"
	"github.com/matheus3301/wppdesk/internal/chat"
	"github.com/matheus3301/wppdesk/internal/conversation"
	"github.com/matheus3301/wppdesk/internal/outbox"
	"github.com/matheus3301/wppdesk/internal/roster"
	"github.com/matheus3301/wppdesk/internal/status"
	"github.com/matheus3301/wppdesk/internal/ws"
)

// Flasher shows transient notices to the operator.
type Flasher interface {
	Info(msg string)
	Warn(msg string)
	Err(err error)
}

// Level is the severity of a notice.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelErr
)

// Notice is a user-facing rendering of a bus event.
type Notice struct {
	Level Level
	Text  string
	Err   error
}

// NoticeFor maps a bus event to the notice shown for it. Events the operator
// does not need to hear about return false.
func NoticeFor(evt bus.Event) (Notice, bool) {
	switch p := evt.Payload.(type) {
	case chat.ActionFailed:
		return Notice{Level: LevelErr, Err: fmt.Errorf("%s %s failed: %w", actionLabel(p.Action), phoneLabel(p.PhoneNumber), p.Err)}, true
	case outbox.SendFailed:
		return Notice{Level: LevelErr, Err: fmt.Errorf("message to %s not sent: %w", phoneLabel(p.PhoneNumber), p.Err)}, true
	case outbox.SendAccepted:
		return Notice{Level: LevelInfo, Text: "Message sent to " + phoneLabel(p.PhoneNumber)}, true
	case ws.Reconnecting:
		return Notice{Level: LevelWarn, Text: fmt.Sprintf("Connection lost (%d), reconnecting in %s (attempt %d)", p.Code, p.Delay, p.Attempt)}, true
	case ws.Exhausted:
		return Notice{Level: LevelErr, Err: fmt.Errorf("connection lost after %d attempts; press r to retry or restart", p.Attempts)}, true
	case ws.Unhealthy:
		return Notice{Level: LevelWarn, Text: "Connection unhealthy: " + errText(p.Err)}, true
	case roster.LoadFailed:
		return Notice{Level: LevelErr, Err: fmt.Errorf("could not load chats: %w", p.Err)}, true
	case status.StatusChange:
		if p.To == status.Open && p.From == status.Connecting {
			return Notice{Level: LevelInfo, Text: "Connected"}, true
		}
	}
	return Notice{}, false
}

// Show delivers n to f.
func (n Notice) Show(f Flasher) {
	switch n.Level {
	case LevelErr:
		err := n.Err
		if err == nil {
			err = errors.New(n.Text)
		}
		f.Err(err)
	case LevelWarn:
		f.Warn(n.Text)
	default:
		f.Info(n.Text)
	}
}

func actionLabel(action string) string {
	switch action {
	case roster.ActionMarkViewed:
		return "Mark viewed for"
	case conversation.ActionLock:
		return "Lock of"
	case conversation.ActionUnlock:
		return "Unlock of"
	}
	return action
}

func phoneLabel(phone string) string {
	if phone == "" {
		return "chat"
	}
	return "+" + phone
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

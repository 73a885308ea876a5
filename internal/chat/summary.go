package chat

import (
	"time"
	"unicode/utf8"
)

// PreviewLen caps the preview shown in the roster.
const PreviewLen = 100

// Summary is the roster entry for one counterpart phone number.
type Summary struct {
	PhoneNumber        string
	Name               string
	Locked             bool
	LastMessagePreview string
	LastMessageAt      time.Time
	UnseenCount        int
	Messages           []Message
}

// NewSummary creates an empty summary for phone.
func NewSummary(phone string) *Summary {
	return &Summary{
		PhoneNumber: phone,
		Name:        "+" + phone,
	}
}

// DisplayName returns the name, falling back to the phone number.
func (s *Summary) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return "+" + s.PhoneNumber
}

// Append adds m to the log unless an equivalent entry is already present.
// Two entries are equivalent when content and timestamp match, or when both
// carry the same server message id. A match that lacks a server id adopts the
// incoming one and is marked delivered. Returns true if m was appended.
func (s *Summary) Append(m Message) bool {
	for i := range s.Messages {
		existing := &s.Messages[i]
		if !existing.sameAs(m) {
			continue
		}
		if existing.ServerID == "" && m.ServerID != "" {
			existing.ServerID = m.ServerID
			existing.Status = StatusDelivered
		}
		return false
	}
	if m.Status == "" {
		m.Status = StatusDelivered
	}
	s.Messages = append(s.Messages, m)
	s.LastMessagePreview = truncate(m.Content, PreviewLen)
	s.LastMessageAt = m.Timestamp
	return true
}

// LastMessage returns the newest log entry, if any.
func (s *Summary) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// Clone returns a deep copy safe to hand to readers outside the owner's lock.
func (s *Summary) Clone() Summary {
	c := *s
	c.Messages = make([]Message, len(s.Messages))
	copy(c.Messages, s.Messages)
	return c
}

func (m *Message) sameAs(o Message) bool {
	if m.ServerID != "" && m.ServerID == o.ServerID {
		return true
	}
	return m.Content == o.Content && m.Timestamp.Equal(o.Timestamp)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

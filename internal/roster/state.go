package roster

import (
	"slices"

	"github.com/matheus3301/wppdesk/internal/bus"
	"github.com/matheus3301/wppdesk/internal/chat"
)

// State is the roster without locking or I/O: an ordered set of summaries,
// most recent activity first, plus the selected phone.
type State struct {
	order    []string
	chats    map[string]*chat.Summary
	selected string
}

// NewState returns an empty roster.
func NewState() *State {
	return &State{chats: make(map[string]*chat.Summary)}
}

// Apply folds a bus event into the roster. Returns true if anything changed.
func (s *State) Apply(evt bus.Event) bool {
	switch p := evt.Payload.(type) {
	case chat.MessageReceived:
		return s.ApplyMessage(p)
	case chat.StatusChanged:
		return s.SetLocked(p.PhoneNumber, p.Locked)
	}
	return false
}

// ApplyMessage merges an inbound message. A new entry moves its chat to the
// front and counts as unseen unless the chat is selected. Unknown phones get
// a fresh summary.
func (s *State) ApplyMessage(n chat.MessageReceived) bool {
	sum, ok := s.chats[n.PhoneNumber]
	if !ok {
		sum = chat.NewSummary(n.PhoneNumber)
		s.chats[n.PhoneNumber] = sum
		s.order = append(s.order, n.PhoneNumber)
	}
	if !sum.Append(n.Message()) {
		return false
	}
	s.moveToFront(n.PhoneNumber)
	if n.PhoneNumber != s.selected {
		sum.UnseenCount++
	}
	return true
}

// SetLocked sets the lock flag of a known chat. Unknown phones are ignored.
func (s *State) SetLocked(phone string, locked bool) bool {
	sum, ok := s.chats[phone]
	if !ok || sum.Locked == locked {
		return false
	}
	sum.Locked = locked
	return true
}

// Reset replaces the roster with a fetched list, keeping the fetched order.
// Chats learned from the socket before the fetch completed stay in front, and
// their messages are merged into the fetched summaries.
func (s *State) Reset(fetched []*chat.Summary) {
	prev := s.chats
	prevOrder := s.order

	s.chats = make(map[string]*chat.Summary, len(fetched)+len(prev))
	s.order = make([]string, 0, len(fetched)+len(prev))
	for _, f := range fetched {
		if _, dup := s.chats[f.PhoneNumber]; dup {
			continue
		}
		s.chats[f.PhoneNumber] = f
		s.order = append(s.order, f.PhoneNumber)
	}

	var live []string
	for _, phone := range prevOrder {
		old := prev[phone]
		if f, ok := s.chats[phone]; ok {
			for _, m := range old.Messages {
				if f.Append(m) && phone != s.selected {
					f.UnseenCount++
				}
			}
			continue
		}
		s.chats[phone] = old
		live = append(live, phone)
	}
	s.order = append(live, s.order...)
}

// Select marks phone as the open chat, zeroes its unseen counter and returns
// the previous count. An unknown phone gets an empty summary.
func (s *State) Select(phone string) int {
	s.selected = phone
	if phone == "" {
		return 0
	}
	sum, ok := s.chats[phone]
	if !ok {
		sum = chat.NewSummary(phone)
		s.chats[phone] = sum
		s.order = append([]string{phone}, s.order...)
	}
	prev := sum.UnseenCount
	sum.UnseenCount = 0
	return prev
}

// AddUnseen adds n back to phone's counter.
func (s *State) AddUnseen(phone string, n int) {
	if sum, ok := s.chats[phone]; ok {
		sum.UnseenCount += n
	}
}

// Selected returns the open chat's phone, or "".
func (s *State) Selected() string {
	return s.selected
}

// Get returns the live summary for phone.
func (s *State) Get(phone string) (*chat.Summary, bool) {
	sum, ok := s.chats[phone]
	return sum, ok
}

// List returns copies of the summaries visible under q, in roster order.
func (s *State) List(q chat.Query) []chat.Summary {
	out := make([]chat.Summary, 0, len(s.order))
	for _, phone := range s.order {
		sum := s.chats[phone]
		if q.Matches(sum) {
			out = append(out, sum.Clone())
		}
	}
	return out
}

// Len returns the number of chats.
func (s *State) Len() int {
	return len(s.order)
}

func (s *State) moveToFront(phone string) {
	i := slices.Index(s.order, phone)
	if i <= 0 {
		return
	}
	copy(s.order[1:i+1], s.order[:i])
	s.order[0] = phone
}

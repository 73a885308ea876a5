package chat

import (
	"strings"
	"unicode"
)

// Filter narrows the roster by who controls the chat.
type Filter int

const (
	FilterAll Filter = iota
	FilterBot
	FilterHuman
)

// String returns the filter label.
func (f Filter) String() string {
	switch f {
	case FilterBot:
		return "bot"
	case FilterHuman:
		return "human"
	default:
		return "all"
	}
}

// Next cycles all -> bot -> human -> all.
func (f Filter) Next() Filter {
	return (f + 1) % 3
}

// ParseFilter maps a label to a Filter.
func ParseFilter(s string) (Filter, bool) {
	switch strings.ToLower(s) {
	case "", "all":
		return FilterAll, true
	case "bot":
		return FilterBot, true
	case "human":
		return FilterHuman, true
	default:
		return FilterAll, false
	}
}

// Query is a read-side roster projection.
type Query struct {
	Filter Filter
	Search string
}

// Matches reports whether s is visible under q. The search term matches the
// display name case-insensitively, or the phone number by its digits.
func (q Query) Matches(s *Summary) bool {
	switch q.Filter {
	case FilterBot:
		if s.Locked {
			return false
		}
	case FilterHuman:
		if !s.Locked {
			return false
		}
	}

	term := strings.TrimSpace(q.Search)
	if term == "" {
		return true
	}
	if strings.Contains(strings.ToLower(s.DisplayName()), strings.ToLower(term)) {
		return true
	}
	digits := digitsOnly(term)
	return digits != "" && strings.Contains(s.PhoneNumber, digits)
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

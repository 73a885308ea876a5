package ui

import (
	"fmt"
	"time"

	"github.com/rivo/tview"
)

// ConnData holds what the header shows about the profile and its connection.
type ConnData struct {
	Profile   string
	State     string
	Healthy   bool
	Exhausted bool
	Attempt   int
	LastAck   time.Time
	Chats     int
	Unseen    int
	InFlight  int
	Filter    string
}

// ConnInfo displays profile and connection metadata in the header.
type ConnInfo struct {
	*tview.TextView
	theme *Theme
}

// NewConnInfo creates a new connection info panel.
func NewConnInfo(theme *Theme) *ConnInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)

	return &ConnInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the panel. now is used for the heartbeat age.
func (ci *ConnInfo) Update(data ConnData, now time.Time) {
	ci.Clear()
	fg := colorName(ci.theme.FgColor)
	val := colorName(ci.theme.CounterColor)

	_, _ = fmt.Fprintf(ci,
		"[%s::b]Profile:[-:-:-]  [%s]%s[-]\n"+
			"[%s::b]Socket:[-:-:-]   %s\n"+
			"[%s::b]Pong:[-:-:-]     [%s]%s[-]\n"+
			"[%s::b]Chats:[-:-:-]    [%s]%d[-] ([%s]%d[-] unseen)\n"+
			"[%s::b]Filter:[-:-:-]   [%s]%s[-]  [%s::b]Sending:[-:-:-] [%s]%d[-]",
		fg, val, tview.Escape(data.Profile),
		fg, ci.state(data),
		fg, val, ackAge(data.LastAck, now),
		fg, val, data.Chats, colorName(ci.theme.UnseenColor), data.Unseen,
		fg, val, data.Filter, fg, val, data.InFlight,
	)
}

func (ci *ConnInfo) state(data ConnData) string {
	switch {
	case data.Exhausted:
		return fmt.Sprintf("[%s::b]DISCONNECTED[-:-:-] (r to retry)", colorName(ci.theme.ConnErrColor))
	case data.State == "OPEN" && data.Healthy:
		return fmt.Sprintf("[%s::b]OPEN[-:-:-]", colorName(ci.theme.ConnOKColor))
	case data.State == "OPEN":
		return fmt.Sprintf("[%s::b]OPEN (unhealthy)[-:-:-]", colorName(ci.theme.ConnWarnColor))
	case data.Attempt > 0:
		return fmt.Sprintf("[%s::b]%s[-:-:-] (attempt %d)", colorName(ci.theme.ConnWarnColor), data.State, data.Attempt)
	default:
		return fmt.Sprintf("[%s::b]%s[-:-:-]", colorName(ci.theme.ConnWarnColor), data.State)
	}
}

func ackAge(at, now time.Time) string {
	if at.IsZero() {
		return "-"
	}
	d := now.Sub(at).Truncate(time.Second)
	if d < time.Second {
		return "just now"
	}
	return d.String() + " ago"
}

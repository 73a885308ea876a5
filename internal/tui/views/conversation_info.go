package views

import (
	"fmt"
	"time"

	"github.com/matheus3301/wppdesk/internal/chat"
	"github.com/matheus3301/wppdesk/internal/tui/ui"
	"github.com/rivo/tview"
)

// ConversationInfo displays detailed information about the open chat.
type ConversationInfo struct {
	*tview.TextView
	theme *ui.Theme
}

// NewConversationInfo creates a new conversation info view.
func NewConversationInfo(theme *ui.Theme) *ConversationInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Chat Details ")
	tv.SetTitleColor(theme.TitleColor)

	return &ConversationInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Name implements ui.Component.
func (ci *ConversationInfo) Name() string { return "Details" }

// Update renders the chat's details.
func (ci *ConversationInfo) Update(sum chat.Summary, now time.Time) {
	ci.Clear()

	fg := ui.Tag(ci.theme.FgColor)
	ct := ui.Tag(ci.theme.CounterColor)

	handler := "Bot (unlocked)"
	if sum.Locked {
		handler = "Human operator (locked)"
	}
	lastActive := formatTimestamp(sum.LastMessageAt, now)
	if lastActive == "" {
		lastActive = "-"
	}

	var user, bot, human int
	for _, m := range sum.Messages {
		switch m.Role {
		case chat.RoleUser:
			user++
		case chat.RoleAssistant:
			bot++
		case chat.RoleHuman:
			human++
		}
	}

	_, _ = fmt.Fprintf(ci,
		"\n [%s::b]Name:[-:-:-]         [%s]%s[-]\n"+
			" [%s::b]Phone:[-:-:-]        [%s]+%s[-]\n"+
			" [%s::b]Handled by:[-:-:-]   [%s]%s[-]\n"+
			" [%s::b]Unseen:[-:-:-]       [%s]%d[-]\n"+
			" [%s::b]Last active:[-:-:-]  [%s]%s[-]\n"+
			" [%s::b]Messages:[-:-:-]     [%s]%d[-] (user %d, bot %d, operator %d)\n"+
			" [%s::b]Last message:[-:-:-] [%s]%s[-]",
		fg, ct, oneLine(sum.DisplayName()),
		fg, ct, sum.PhoneNumber,
		fg, ct, handler,
		fg, ct, sum.UnseenCount,
		fg, ct, lastActive,
		fg, ct, len(sum.Messages), user, bot, human,
		fg, ct, oneLine(sum.LastMessagePreview),
	)
	ci.SetTitle(fmt.Sprintf(" %s Details ", oneLine(sum.DisplayName())))
}

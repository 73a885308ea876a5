package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/wppdesk/internal/chat"
	"github.com/matheus3301/wppdesk/internal/tui/ui"
	"github.com/rivo/tview"
)

// MessageThread displays the open chat's log above a composer.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	composer *tview.InputField
	chatName string
	onSend   func(text string)
	onDraft  func(text string)
}

// NewMessageThread creates a new message thread view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Messages ")
	messages.SetTitleColor(theme.TitleColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Reply (i to focus, Enter to send) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		composer: composer,
	}

	composer.SetChangedFunc(func(text string) {
		if mt.onDraft != nil {
			mt.onDraft(text)
		}
	})
	composer.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter || mt.onSend == nil {
			return
		}
		text := composer.GetText()
		// Cleared before the send so the same text cannot go out twice.
		if strings.TrimSpace(text) != "" {
			composer.SetText("")
		}
		mt.onSend(text)
	})

	return mt
}

// Name implements ui.Component.
func (mt *MessageThread) Name() string {
	if mt.chatName != "" {
		return mt.chatName
	}
	return "Messages"
}

// SetOnSend sets the callback for Enter in the composer. The composer is
// already empty when it runs, unless the text was blank.
func (mt *MessageThread) SetOnSend(fn func(text string)) {
	mt.onSend = fn
}

// SetOnDraft sets the callback for composer edits.
func (mt *MessageThread) SetOnDraft(fn func(text string)) {
	mt.onDraft = fn
}

// SetDraft replaces the composer text without firing the draft callback.
func (mt *MessageThread) SetDraft(text string) {
	if mt.composer.GetText() == text {
		return
	}
	fn := mt.onDraft
	mt.onDraft = nil
	mt.composer.SetText(text)
	mt.onDraft = fn
}

// Update redraws the thread for sum. The view only jumps to the newest
// message when scroll is set, so an operator reading history is not moved.
func (mt *MessageThread) Update(sum chat.Summary, scroll bool, now time.Time) {
	mt.chatName = sum.DisplayName()

	handler, color := "bot", mt.theme.BotColor
	if sum.Locked {
		handler, color = "you", mt.theme.HumanColor
	}
	mt.messages.SetTitle(fmt.Sprintf(" %s  +%s  [%s::b]%s[-:-:-] ",
		oneLine(mt.chatName), sum.PhoneNumber, ui.Tag(color), handler))

	if sum.Locked {
		mt.composer.SetPlaceholder("")
	} else {
		mt.composer.SetPlaceholder("the bot is answering this chat; L to take over")
	}

	row, col := mt.messages.GetScrollOffset()
	mt.messages.SetText(mt.render(sum.Messages, now))
	if scroll {
		mt.messages.ScrollToEnd()
	} else {
		mt.messages.ScrollTo(row, col)
	}
}

func (mt *MessageThread) render(msgs []chat.Message, now time.Time) string {
	if len(msgs) == 0 {
		return fmt.Sprintf("\n  [%s]No messages yet.[-]", ui.Tag(mt.theme.FgColor))
	}
	var b strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&b, "[%s::b]%s[-:-:-] [::d]%s[-:-:-]", ui.Tag(mt.roleColor(m.Role)), m.Role.Label(), formatTimestamp(m.Timestamp, now))
		switch m.Status {
		case chat.StatusSending:
			b.WriteString(" [::d](sending)[-:-:-]")
		case chat.StatusError:
			fmt.Fprintf(&b, " [%s](not sent)[-]", ui.Tag(mt.theme.FlashErrColor))
		}
		b.WriteString("\n")
		b.WriteString(clean(m.Content))
		b.WriteString("\n\n")
	}
	return b.String()
}

func (mt *MessageThread) roleColor(r chat.Role) tcell.Color {
	switch r {
	case chat.RoleHuman:
		return mt.theme.HumanColor
	case chat.RoleAssistant:
		return mt.theme.BotColor
	default:
		return mt.theme.UserColor
	}
}

// Messages returns the messages text view (for focus management).
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

// Composer returns the composer input field (for focus management).
func (mt *MessageThread) Composer() *tview.InputField {
	return mt.composer
}

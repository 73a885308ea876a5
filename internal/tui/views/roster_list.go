package views

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/wppdesk/internal/chat"
	"github.com/matheus3301/wppdesk/internal/tui/ui"
	"github.com/rivo/tview"
)

// RosterList is the chat roster table. The selection follows the chat, not
// the row, when live messages reorder the list.
type RosterList struct {
	*tview.Table
	theme *ui.Theme
	chats []chat.Summary
}

// NewRosterList creates a new roster table.
func NewRosterList(theme *ui.Theme) *RosterList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(" Chats ")
	table.SetTitleColor(theme.TitleColor)

	return &RosterList{
		Table: table,
		theme: theme,
	}
}

// Name implements ui.Component.
func (rl *RosterList) Name() string { return "Chats" }

// Update redraws the table. loadErr is shown in place of an empty list.
func (rl *RosterList) Update(chats []chat.Summary, q chat.Query, total int, loadErr error, now time.Time) {
	selected := rl.SelectedPhone()
	rl.chats = chats
	rl.Clear()

	headers := []struct {
		text string
		exp  int
	}{
		{" ", 0},
		{" NAME", 1},
		{" PHONE", 0},
		{" LAST MESSAGE", 3},
		{" TIME", 0},
		{" HANDLER", 0},
	}
	for col, h := range headers {
		rl.SetCell(0, col, tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(rl.theme.TableHeaderFg).
			SetBackgroundColor(rl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp))
	}

	if len(chats) == 0 {
		msg, color := " No chats", rl.theme.FgColor
		switch {
		case loadErr != nil:
			msg, color = " Could not load chats: "+loadErr.Error()+" (:reload to try again)", rl.theme.FlashErrColor
		case total > 0:
			msg = " No chats match the filter"
		}
		rl.SetCell(1, 1, tview.NewTableCell(tview.Escape(msg)).
			SetSelectable(false).
			SetTextColor(color).
			SetExpansion(1))
	}

	for i, s := range chats {
		row := i + 1
		fg := rl.theme.FgColor

		badge := ""
		if s.UnseenCount > 0 {
			badge = fmt.Sprintf("%d", s.UnseenCount)
		}

		handler, handlerColor := "BOT", rl.theme.BotColor
		if s.Locked {
			handler, handlerColor = "HUMAN", rl.theme.HumanColor
		}

		rl.SetCell(row, 0, tview.NewTableCell(badge).SetTextColor(rl.theme.UnseenColor).SetAttributes(tcell.AttrBold).SetAlign(tview.AlignRight))
		rl.SetCell(row, 1, tview.NewTableCell(" "+oneLine(s.DisplayName())).SetExpansion(1).SetMaxWidth(28).SetTextColor(fg))
		rl.SetCell(row, 2, tview.NewTableCell(" +"+s.PhoneNumber).SetTextColor(fg))
		rl.SetCell(row, 3, tview.NewTableCell(" "+preview(s)).SetExpansion(3).SetMaxWidth(60).SetTextColor(fg))
		rl.SetCell(row, 4, tview.NewTableCell(" "+formatTimestamp(s.LastMessageAt, now)).SetTextColor(fg).SetAlign(tview.AlignRight))
		rl.SetCell(row, 5, tview.NewTableCell(" "+handler).SetTextColor(handlerColor))
	}

	title := fmt.Sprintf(" Chats (%d) ", total)
	if len(chats) != total || q.Search != "" || q.Filter != chat.FilterAll {
		title = fmt.Sprintf(" Chats (%d/%d) [%s]", len(chats), total, q.Filter)
		if q.Search != "" {
			title += " /" + q.Search
		}
		title += " "
	}
	rl.SetTitle(tview.Escape(title))

	rl.reselect(selected)
}

func (rl *RosterList) reselect(phone string) {
	row := 1
	for i, s := range rl.chats {
		if s.PhoneNumber == phone {
			row = i + 1
			break
		}
	}
	rl.Select(row, 0)
}

// SelectedPhone returns the phone of the highlighted chat.
func (rl *RosterList) SelectedPhone() string {
	row, _ := rl.GetSelection()
	return rl.PhoneAt(row)
}

// PhoneAt returns the phone shown on row (1-based, the header is row 0).
func (rl *RosterList) PhoneAt(row int) string {
	idx := row - 1
	if idx < 0 || idx >= len(rl.chats) {
		return ""
	}
	return rl.chats[idx].PhoneNumber
}

func preview(s chat.Summary) string {
	last, ok := s.LastMessage()
	if !ok {
		return oneLine(s.LastMessagePreview)
	}
	return last.Role.Label() + ": " + oneLine(s.LastMessagePreview)
}

package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/wppdesk/internal/chat"
	"github.com/matheus3301/wppdesk/internal/tui/keys"
	"github.com/matheus3301/wppdesk/internal/tui/model"
	"github.com/matheus3301/wppdesk/internal/tui/ui"
	"github.com/matheus3301/wppdesk/internal/tui/views"
	"github.com/rivo/tview"
)

// Page names.
const (
	pageChats   = "chats"
	pageChat    = "chat"
	pageDetails = "details"
	pageHelp    = "help"
)

const headerHeight = 6

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	theme    *ui.Theme
	vm       *model.ViewModel
	flash    *ui.FlashModel
	registry *keys.Registry

	root     *tview.Flex
	pages    *ui.Pages
	connInfo *ui.ConnInfo
	menu     *ui.Menu
	logo     *ui.Logo
	crumbs   *ui.Crumbs
	prompt   *ui.Prompt
	flashBar *ui.FlashBar

	roster  *views.RosterList
	thread  *views.MessageThread
	details *views.ConversationInfo
	help    *views.HelpView

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI over vm. flash must be the Flasher vm reports to.
func NewApp(vm *model.ViewModel, flash *ui.FlashModel) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:      tview.NewApplication(),
		theme:    theme,
		vm:       vm,
		flash:    flash,
		registry: keys.NewRegistry(),
		pages:    ui.NewPages(),
		connInfo: ui.NewConnInfo(theme),
		menu:     ui.NewMenu(theme, headerHeight),
		logo:     ui.NewLogo(theme),
		crumbs:   ui.NewCrumbs(theme),
		prompt:   ui.NewPrompt(theme),
		flashBar: ui.NewFlashBar(theme),
		roster:   views.NewRosterList(theme),
		thread:   views.NewMessageThread(theme),
		details:  views.NewConversationInfo(theme),
		help:     views.NewHelpView(theme),
		ctx:      ctx,
		cancel:   cancel,
	}

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: ':',
		Description: "Command",
		Handler:     func() { a.showPrompt(ui.PromptCommand, "") },
	})
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: 'r',
		Description: "Retry connection",
		Handler:     a.retry,
	})
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: '?',
		Description: "Help",
		Handler:     func() { a.push(pageHelp) },
	})
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: 'q',
		Description: "Quit",
		Handler:     a.Stop,
	})

	a.registry.AddView(pageChats, &keys.Action{
		Key: tcell.KeyEnter, Label: "enter",
		Description: "Open chat",
		Handler: func() {
			if phone := a.roster.SelectedPhone(); phone != "" {
				a.openChat(phone)
			}
		},
	})
	a.registry.AddView(pageChats, &keys.Action{
		Key: tcell.KeyRune, Rune: '/',
		Description: "Search",
		Handler:     func() { a.showPrompt(ui.PromptSearch, a.vm.Query().Search) },
	})
	a.registry.AddView(pageChats, &keys.Action{
		Key: tcell.KeyRune, Rune: 'f',
		Description: "Cycle filter",
		Handler: func() {
			f := a.vm.CycleFilter()
			a.flash.Info("Showing " + f.String() + " chats")
		},
	})
	a.registry.AddView(pageChats, &keys.Action{
		Key: tcell.KeyRune, Rune: 'R',
		Description: "Reload chats",
		Handler:     a.reload,
	})
	a.registry.AddView(pageChats, &keys.Action{
		Key: tcell.KeyEscape, Label: "esc",
		Description: "Clear search",
		Handler:     func() { a.vm.SetSearch("") },
	})

	a.registry.AddView(pageChat, &keys.Action{
		Key: tcell.KeyRune, Rune: 'i',
		Description: "Write reply",
		Handler:     func() { a.app.SetFocus(a.thread.Composer()) },
	})
	a.registry.AddView(pageChat, &keys.Action{
		Key: tcell.KeyRune, Rune: 'L',
		Description: "Take over",
		Handler:     func() { a.async(a.vm.Lock) },
	})
	a.registry.AddView(pageChat, &keys.Action{
		Key: tcell.KeyRune, Rune: 'U',
		Description: "Hand to bot",
		Handler:     func() { a.async(a.vm.Unlock) },
	})
	a.registry.AddView(pageChat, &keys.Action{
		Key: tcell.KeyRune, Rune: 'd',
		Description: "Details",
		Handler:     func() { a.push(pageDetails) },
	})
	a.registry.AddView(pageChat, &keys.Action{
		Key: tcell.KeyEscape, Label: "esc",
		Description: "Back to chats",
		Handler:     a.back,
	})

	for _, page := range []string{pageDetails, pageHelp} {
		a.registry.AddView(page, &keys.Action{
			Key: tcell.KeyEscape, Label: "esc",
			Description: "Back",
			Handler:     a.back,
		})
	}
}

func (a *App) setupCallbacks() {
	a.thread.SetOnDraft(a.vm.SetDraft)
	a.thread.SetOnSend(func(text string) {
		// Failures are flashed; the text is not restored.
		a.async(func(ctx context.Context) error { return a.vm.Send(ctx, text) })
	})

	a.prompt.SetOnChange(func(mode ui.PromptMode, text string) {
		a.vm.SetSearch(text)
	})
	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		if mode == ui.PromptCommand {
			a.runCommand(text)
		}
	})
	a.prompt.SetOnCancel(func(mode ui.PromptMode) {
		if mode == ui.PromptSearch {
			a.vm.SetSearch("")
		}
		a.hidePrompt()
	})

	a.pages.SetOnChange(func(stack []string) {
		a.crumbs.Update(a.crumbLabels(stack))
		a.menu.Update(a.registry.Hints(a.pages.Current()))
	})
}

func (a *App) setupLayout() {
	a.pages.AddPage(pageChats, a.roster, true, false)
	a.pages.AddPage(pageChat, a.thread, true, false)
	a.pages.AddPage(pageDetails, a.details, true, false)
	a.pages.AddPage(pageHelp, a.help, true, false)

	header := tview.NewFlex().
		AddItem(a.connInfo, 46, 0, false).
		AddItem(a.menu, 0, 1, false).
		AddItem(a.logo, 24, 0, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, headerHeight, 0, false).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.flashBar, 1, 0, false)

	a.help.Update(a.helpSections())
	a.pages.Reset(pageChats)
	a.app.SetRoot(a.root, true)
	a.app.SetFocus(a.roster)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch a.app.GetFocus() {
		case a.prompt.InputField:
			return event
		case a.thread.Composer():
			if event.Key() == tcell.KeyEscape {
				a.app.SetFocus(a.thread.Messages())
				return nil
			}
			return event
		}
		if a.registry.HandleEvent(a.pages.Current(), event) {
			return nil
		}
		return event
	})
}

func (a *App) crumbLabels(stack []string) []string {
	labels := make([]string, 0, len(stack))
	for _, name := range stack {
		switch name {
		case pageChats:
			labels = append(labels, a.roster.Name())
		case pageChat:
			labels = append(labels, a.thread.Name())
		case pageDetails:
			labels = append(labels, a.details.Name())
		case pageHelp:
			labels = append(labels, a.help.Name())
		}
	}
	return labels
}

func (a *App) helpSections() []views.HelpSection {
	return []views.HelpSection{
		{Title: "Chats", Hints: a.registry.Hints(pageChats)},
		{Title: "Conversation", Hints: a.registry.Hints(pageChat)},
		{Title: "Commands", Hints: []ui.MenuHint{
			{Key: ":open <phone>", Description: "Open a chat by phone number"},
			{Key: ":filter all|bot|human", Description: "Filter chats by handler"},
			{Key: ":search <text>", Description: "Search chats by name or phone"},
			{Key: ":lock / :unlock", Description: "Take over or hand back the open chat"},
			{Key: ":reload", Description: "Fetch the chat list again"},
			{Key: ":retry", Description: "Reconnect after giving up"},
			{Key: ":quit", Description: "Leave the console"},
		}},
	}
}

// push shows a page and focuses its primitive.
func (a *App) push(page string) {
	a.pages.Push(page)
	a.focusPage()
	a.render()
}

func (a *App) back() {
	if a.pages.Pop() == pageChat {
		a.vm.Close()
	}
	a.focusPage()
	a.render()
}

func (a *App) focusPage() {
	switch a.pages.Current() {
	case pageChats:
		a.app.SetFocus(a.roster)
	case pageChat:
		a.app.SetFocus(a.thread.Messages())
	case pageDetails:
		a.app.SetFocus(a.details)
	case pageHelp:
		a.app.SetFocus(a.help)
	}
}

func (a *App) openChat(phone string) {
	go func() {
		// A mark-viewed failure is reported on the bus and the chat opens anyway.
		_ = a.vm.Open(a.ctx, phone)
		a.app.QueueUpdateDraw(func() {
			a.thread.SetDraft(a.vm.Draft())
			a.pages.Reset(pageChats)
			a.push(pageChat)
		})
	}()
}

func (a *App) showPrompt(mode ui.PromptMode, text string) {
	a.prompt.Activate(mode, text)
	a.root.ResizeItem(a.prompt, 3, 0)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.root.ResizeItem(a.prompt, 0, 0)
	a.focusPage()
}

// async runs a backend call off the draw loop. Errors are flashed by the
// view model or arrive on the bus.
func (a *App) async(fn func(context.Context) error) {
	go func() { _ = fn(a.ctx) }()
}

func (a *App) retry() {
	a.async(a.vm.Retry)
}

func (a *App) reload() {
	go func() {
		if err := a.vm.Reload(a.ctx); err == nil {
			a.flash.Info("Chats reloaded")
		}
	}()
}

func (a *App) runCommand(input string) {
	cmd, err := ParseCommand(input)
	if err != nil {
		a.flash.Err(err)
		return
	}

	switch cmd.Name {
	case "open":
		a.openChat(cmd.Args)
	case "filter":
		f, ok := chat.ParseFilter(cmd.Args)
		if !ok {
			a.flash.Err(fmt.Errorf("unknown filter %q (all, bot, human)", cmd.Args))
			return
		}
		a.vm.SetFilter(f)
	case "search":
		a.vm.SetSearch(cmd.Args)
	case "lock":
		a.async(a.vm.Lock)
	case "unlock":
		a.async(a.vm.Unlock)
	case "retry":
		a.retry()
	case "reload":
		a.reload()
	case "details":
		if a.pages.Current() == pageChat {
			a.push(pageDetails)
		}
	case "help":
		a.push(pageHelp)
	case "quit":
		a.Stop()
	}
}

// render redraws every view from the view model. It must run on the draw
// loop.
func (a *App) render() {
	now := time.Now()
	q := a.vm.Query()
	total, unseen := a.vm.Totals()
	conn := a.vm.Connection()

	a.connInfo.Update(ui.ConnData{
		Profile:   a.vm.Profile(),
		State:     string(conn.State),
		Healthy:   conn.Healthy,
		Exhausted: conn.Exhausted,
		Attempt:   conn.Attempt,
		LastAck:   conn.LastAck,
		Chats:     total,
		Unseen:    unseen,
		InFlight:  a.vm.InFlight(),
		Filter:    q.Filter.String(),
	}, now)
	a.roster.Update(a.vm.Chats(), q, total, a.vm.LoadErr(), now)

	if sum, ok := a.vm.Thread(); ok {
		a.thread.Update(sum, a.vm.TakeScroll(), now)
		a.details.Update(sum, now)
	}
	a.crumbs.Update(a.crumbLabels(a.pages.Stack()))
	a.menu.Update(a.registry.Hints(a.pages.Current()))
	a.flashBar.Update(a.flash.Current())
}

func (a *App) refreshLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-a.vm.RefreshCh():
		case <-a.flash.Changed():
		case <-ticker.C:
		case <-a.ctx.Done():
			return
		}
		a.app.QueueUpdateDraw(a.render)
	}
}

// Run starts the view model and blocks until the TUI exits.
func (a *App) Run() error {
	a.vm.Start(a.ctx)
	defer a.vm.Stop()

	a.render()
	go a.refreshLoop()

	err := a.app.Run()
	a.cancel()
	return err
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}

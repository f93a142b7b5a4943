// Package tui is the terminal front-end of crewchat.
package tui

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/crewchat/internal/composer"
	"github.com/matheus3301/crewchat/internal/feed"
	"github.com/matheus3301/crewchat/internal/identity"
	"github.com/matheus3301/crewchat/internal/message"
	"github.com/matheus3301/crewchat/internal/tui/keys"
	"github.com/matheus3301/crewchat/internal/tui/model"
	"github.com/matheus3301/crewchat/internal/tui/ui"
	"github.com/matheus3301/crewchat/internal/tui/views"
	"github.com/rivo/tview"
)

// Page names.
const (
	pageConversations = "conversations"
	pageThread        = "thread"
	pageSearch        = "search"
	pageDetails       = "details"
	pageInvite        = "invite"
	pageHelp          = "help"
)

// PollInterval is how often the conversation list and status are reloaded.
var PollInterval = 5 * time.Second

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	theme    *ui.Theme
	vm       *model.ViewModel
	registry *keys.Registry
	session  string
	me       identity.Identity

	pages    *ui.Pages
	body     *tview.Flex
	prompt   *ui.Prompt
	prompted bool
	info     *ui.SessionInfo
	menu     *ui.Menu
	crumbs   *ui.Crumbs
	flash    *ui.FlashModel
	flashBar *ui.FlashBar

	list    *views.ConversationList
	thread  *views.MessageThread
	search  *views.SearchView
	details *views.ConversationInfo
	invite  *views.InviteView
	help    *views.HelpView

	components map[string]ui.Component

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application for user me.
func NewApp(d model.Daemon, sessionName string, me identity.Identity, opts feed.Options) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:      tview.NewApplication(),
		theme:    theme,
		vm:       model.NewViewModel(d, opts),
		registry: keys.NewRegistry(),
		session:  sessionName,
		me:       me,
		pages:    ui.NewPages(),
		prompt:   ui.NewPrompt(theme),
		info:     ui.NewSessionInfo(theme),
		menu:     ui.NewMenu(theme),
		crumbs:   ui.NewCrumbs(theme),
		flash:    ui.NewFlashModel(),
		flashBar: ui.NewFlashBar(theme),
		list:     views.NewConversationList(theme),
		thread:   views.NewMessageThread(theme),
		search:   views.NewSearchView(theme),
		details:  views.NewConversationInfo(theme),
		invite:   views.NewInviteView(theme),
		help:     views.NewHelpView(theme),
		ctx:      ctx,
		cancel:   cancel,
	}
	a.components = map[string]ui.Component{
		pageConversations: a.list,
		pageThread:        a.thread,
		pageSearch:        a.search,
		pageDetails:       a.details,
		pageInvite:        a.invite,
		pageHelp:          a.help,
	}

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	return a
}

func (a *App) setupBindings() {
	r := a.registry
	r.Rune(keys.Global, ':', "Command", func() { a.showPrompt(ui.PromptCommand) })
	r.Rune(keys.Global, '?', "Help", func() { a.push(pageHelp) })
	r.Rune(keys.Global, 'q', "Quit/Back", a.back)
	r.Key(keys.Global, tcell.KeyEscape, "", func() {
		if len(a.pages.Stack()) > 1 {
			a.back()
		}
	})

	r.Rune(pageConversations, '/', "Filter", func() { a.showPrompt(ui.PromptFilter) })
	r.Rune(pageConversations, '0', "Clear filter", func() { a.list.SetFilter("") })
	r.Rune(pageConversations, 'S', "Search", a.showSearch)

	r.Rune(pageThread, 'i', "Compose", func() { a.app.SetFocus(a.thread.Composer()) })
	r.Rune(pageThread, 'r', "Retry", a.retry)
	r.Rune(pageThread, 't', "Day separators", a.toggleSeparators)
	r.Rune(pageThread, 'd', "Details", a.showDetails)
}

func (a *App) setupCallbacks() {
	a.pages.SetOnChange(func(stack []string) {
		names := make([]string, len(stack))
		for i, p := range stack {
			names[i] = a.components[p].Title()
		}
		a.crumbs.Update(names)
		a.menu.Update(a.hints(stack[len(stack)-1]))
	})

	a.list.SetSelectedFunc(func(int, int) {
		if conv, ok := a.list.Selected(); ok {
			a.open(conv)
		}
	})

	a.thread.SetOnSend(a.send)
	a.thread.Composer().SetChangedFunc(func(text string) {
		if c := a.vm.Composer(); c != nil {
			c.SetText(text)
		}
	})

	a.search.SetOnQuery(a.runSearch)
	a.search.Results().SetSelectedFunc(func(int, int) {
		id := a.search.SelectedConversation()
		if conv, ok := a.vm.FindConversation(id); ok {
			a.open(conv)
		}
	})

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		if mode == ui.PromptFilter {
			a.list.SetFilter(text)
			return
		}
		a.runCommand(ParseCommand(text))
	})
	a.prompt.SetOnCancel(a.hidePrompt)

	a.vm.SetOnError(func(err error) {
		a.app.QueueUpdateDraw(func() {
			a.flash.Err(err)
			a.flashBar.Update(a.flash.Current())
		})
	})
}

func (a *App) setupLayout() {
	a.pages.AddPage(pageConversations, a.list, true, false)
	a.pages.AddPage(pageThread, a.thread, true, false)
	a.pages.AddPage(pageSearch, a.search, true, false)
	a.pages.AddPage(pageDetails, a.details, true, false)
	a.pages.AddPage(pageInvite, a.invite, true, false)
	a.pages.AddPage(pageHelp, a.help, true, false)

	header := tview.NewFlex().
		AddItem(a.info, 0, 2, false).
		AddItem(a.menu, 0, 2, false).
		AddItem(ui.NewLogo(a.theme), 16, 0, false)

	a.body = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, 6, 0, false).
		AddItem(a.body, 0, 1, true).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.flashBar, 1, 0, false)

	a.app.SetRoot(root, true)
	a.pages.Reset(pageConversations)

	a.app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		focus := a.app.GetFocus()
		if ev.Key() == tcell.KeyEscape {
			switch focus {
			case a.thread.Composer():
				a.app.SetFocus(a.thread.Messages())
				return nil
			case a.search.Input():
				a.back()
				return nil
			}
		}
		if a.typing(focus) {
			return ev
		}
		if a.registry.HandleEvent(a.pages.Current(), ev) {
			return nil
		}
		return ev
	})
}

// typing reports whether focus is a text input that owns every key.
func (a *App) typing(focus tview.Primitive) bool {
	return focus == a.prompt ||
		focus == a.thread.Composer() ||
		focus == a.search.Input()
}

func (a *App) hints(page string) []ui.MenuHint {
	hints := slices.Clone(a.components[page].Hints())
	for _, b := range a.registry.Bindings(page) {
		if !slices.ContainsFunc(hints, func(h ui.MenuHint) bool { return h.Key == b.Name() }) {
			hints = append(hints, ui.MenuHint{Key: b.Name(), Description: b.Label})
		}
	}
	return hints
}

func (a *App) push(page string) {
	a.pages.Push(page)
	a.focusPage()
}

// back pops the current page. On the conversation list it quits.
func (a *App) back() {
	switch a.pages.Pop() {
	case "":
		a.Stop()
		return
	case pageThread:
		a.leave()
	}
	a.focusPage()
	a.render()
}

func (a *App) focusPage() {
	switch a.pages.Current() {
	case pageConversations:
		a.app.SetFocus(a.list)
	case pageThread:
		a.app.SetFocus(a.thread.Messages())
	case pageSearch:
		a.app.SetFocus(a.search.Input())
	case pageDetails:
		a.app.SetFocus(a.details)
	case pageInvite:
		a.app.SetFocus(a.invite)
	case pageHelp:
		a.app.SetFocus(a.help)
	}
}

func (a *App) showPrompt(mode ui.PromptMode) {
	if !a.prompted {
		a.body.AddItem(a.prompt, 3, 0, false)
		a.prompted = true
	}
	a.prompt.Activate(mode)
	if mode == ui.PromptFilter {
		a.prompt.SetText(a.list.Filter())
	}
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	if a.prompted {
		a.body.RemoveItem(a.prompt)
		a.prompted = false
	}
	a.focusPage()
}

func (a *App) showSearch() {
	a.push(pageSearch)
}

func (a *App) showDetails() {
	active := a.vm.Active()
	if active == nil {
		return
	}
	a.details.Update(*active, a.vm.Members())
	a.push(pageDetails)
}

// open switches to conv and marks the user online in its crew.
func (a *App) open(conv message.Conversation) {
	if prev := a.vm.Active(); prev != nil && prev.ID != conv.ID {
		a.leave()
	}
	a.vm.Open(a.ctx, conv)
	a.thread.SetConversation(conv)
	a.pages.Reset(pageConversations)
	a.push(pageThread)
	a.render()

	go func() {
		if err := a.vm.SetOnline(a.ctx, true); err != nil {
			a.app.QueueUpdateDraw(func() {
				a.flash.Err(err)
				a.render()
			})
		}
	}()
}

// leave closes the active conversation and marks the user offline in its
// crew.
func (a *App) leave() {
	active := a.vm.Active()
	if active == nil {
		return
	}
	a.vm.Close()
	if active.Kind == message.KindCrew {
		go a.goOffline(active.CrewID)
	}
}

func (a *App) goOffline(crewID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(a.ctx), 2*time.Second)
	defer cancel()
	_ = a.vm.SetCrewPresence(ctx, crewID, false)
}

// send submits the composer text. The input keeps the text until the
// daemon confirms the message.
func (a *App) send(text string) {
	go func() {
		_, err := a.vm.Submit(a.ctx, text)
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.flash.Err(err)
			} else if a.thread.Composer().GetText() == text {
				a.thread.SetComposerText("")
			}
			a.render()
		})
	}()
}

// retry re-sends the composer's failed message, or else the newest failed
// message of the thread.
func (a *App) retry() {
	c := a.vm.Composer()
	if c != nil && c.State() == composer.Failed {
		text := c.Text()
		go func() {
			_, err := a.vm.Retry(a.ctx)
			a.app.QueueUpdateDraw(func() {
				if err != nil {
					a.flash.Err(err)
				} else if a.thread.Composer().GetText() == text {
					a.thread.SetComposerText("")
				}
				a.render()
			})
		}()
		return
	}

	failed := a.vm.FailedMessages()
	if len(failed) == 0 {
		a.flash.Info("Nothing to retry")
		a.render()
		return
	}
	key := failed[len(failed)-1].IdempotencyKey
	go func() {
		err := a.vm.RetryMessage(a.ctx, key)
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.flash.Err(err)
			}
			a.render()
		})
	}()
}

func (a *App) toggleSeparators() {
	if a.vm.SeparatorMode() == feed.SeparatorCalendarDay {
		a.vm.SetSeparatorMode(feed.SeparatorElapsed)
		a.flash.Info("Separators: quiet periods")
	} else {
		a.vm.SetSeparatorMode(feed.SeparatorCalendarDay)
		a.flash.Info("Separators: calendar days")
	}
	a.render()
}

// runCommand executes a ':' command.
func (a *App) runCommand(cmd Command) {
	switch cmd.Name {
	case "open":
		crew, channel := cmd.Arg(0), cmd.Arg(1)
		if crew == "" {
			a.flash.Warn("usage: :open <crew> [channel]")
			break
		}
		a.openAsync(func(ctx context.Context) (message.Conversation, error) {
			return a.vm.OpenCrewChannel(ctx, crew, channel)
		})
	case "dm":
		if cmd.Args == "" {
			a.flash.Warn("usage: :dm <user>")
			break
		}
		a.openAsync(func(ctx context.Context) (message.Conversation, error) {
			return a.vm.OpenDirect(ctx, cmd.Args)
		})
	case "join":
		if cmd.Args == "" {
			a.flash.Warn("usage: :join <token>")
			break
		}
		a.openAsync(func(ctx context.Context) (message.Conversation, error) {
			return a.vm.JoinCrew(ctx, cmd.Args)
		})
	case "invite":
		a.createInvite()
	case "search", "s":
		a.showSearch()
		if cmd.Args != "" {
			a.search.Input().SetText(cmd.Args)
			a.runSearch(cmd.Args)
		}
	case "online", "offline":
		online := cmd.Name == "online"
		go func() {
			err := a.vm.SetOnline(a.ctx, online)
			a.app.QueueUpdateDraw(func() {
				if err != nil {
					a.flash.Err(err)
				} else {
					a.flash.Info("Presence: " + cmd.Name)
				}
				a.render()
			})
		}()
	case "day":
		a.toggleSeparators()
	case "help", "h":
		a.push(pageHelp)
	case "quit", "q":
		a.Stop()
	default:
		a.flash.Warn(fmt.Sprintf("unknown command: %s", cmd.Name))
	}
	a.render()
}

func (a *App) runSearch(query string) {
	go func() {
		results, err := a.vm.Search(a.ctx, query)
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.flash.Err(err)
				a.render()
				return
			}
			a.search.Update(results)
			a.app.SetFocus(a.search.Results())
		})
	}()
}

// openAsync resolves a conversation off the UI goroutine, then opens it.
func (a *App) openAsync(resolve func(context.Context) (message.Conversation, error)) {
	go func() {
		conv, err := resolve(a.ctx)
		if err == nil {
			_ = a.vm.LoadConversations(a.ctx)
		}
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.flash.Err(err)
				a.render()
				return
			}
			a.open(conv)
		})
	}()
}

func (a *App) createInvite() {
	active := a.vm.Active()
	if active == nil || active.Kind != message.KindCrew {
		a.flash.Warn("open a crew channel first")
		return
	}
	a.invite.ShowMessage("Creating invite...")
	a.push(pageInvite)
	crewID := active.CrewID
	go func() {
		resp, err := a.vm.CreateInvite(a.ctx)
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.invite.ShowMessage("Invite failed: " + err.Error())
				a.flash.Err(err)
				a.render()
				return
			}
			a.invite.Show(crewID, resp.Token, resp.ExpiresAt)
		})
	}()
}

// render copies view model state into the views. It must run on the UI
// goroutine.
func (a *App) render() {
	now := time.Now()
	if st := a.vm.Status(); st != nil {
		user := st.User
		if user == "" {
			user = a.me.UID
		}
		a.info.Update(&ui.SessionData{
			Session:       st.Session,
			User:          user,
			Status:        st.Status,
			Reason:        st.Reason,
			Conversations: st.Conversations,
			Messages:      st.Messages,
			Uptime:        time.Duration(st.UptimeMs) * time.Millisecond,
		})
	} else {
		a.info.Update(&ui.SessionData{Session: a.session, User: a.me.UID, Status: "CONNECTING"})
	}

	a.list.Update(a.vm.Conversations())

	if a.vm.Active() != nil {
		a.thread.Update(a.vm.Feed(now), a.me.UID)
		a.thread.SetMembers(a.vm.Members())
		if c := a.vm.Composer(); c != nil {
			a.thread.SetComposerState(c.State(), c.Err())
		}
	}

	a.menu.Update(a.hints(a.pages.Current()))
	a.flashBar.Update(a.flash.Current())
}

func (a *App) load() {
	if err := a.vm.LoadStatus(a.ctx); err != nil && a.ctx.Err() == nil {
		a.flash.Err(err)
	}
	if err := a.vm.LoadConversations(a.ctx); err != nil && a.ctx.Err() == nil {
		a.flash.Err(err)
	}
}

func (a *App) refreshLoop() {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-a.vm.RefreshCh():
		case <-ticker.C:
			a.load()
		case <-a.ctx.Done():
			return
		}
		a.app.QueueUpdateDraw(a.render)
	}
}

// Run starts the TUI application and blocks until it exits.
func (a *App) Run() error {
	go func() {
		a.load()
		a.app.QueueUpdateDraw(func() {
			a.render()
			a.list.Select(1, 0)
			a.focusPage()
		})
		a.refreshLoop()
	}()

	err := a.app.Run()
	if active := a.vm.Active(); active != nil {
		a.vm.Close()
		if active.Kind == message.KindCrew {
			a.goOffline(active.CrewID)
		}
	}
	a.cancel()
	return err
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.app.Stop()
}

package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/carpool-client/internal/keys"
	"github.com/nhle/carpool-client/internal/model"
	"github.com/nhle/carpool-client/internal/notification"
	"github.com/nhle/carpool-client/internal/realtime"
	"github.com/nhle/carpool-client/internal/session"
	"github.com/nhle/carpool-client/internal/ui"
	helpview "github.com/nhle/carpool-client/internal/ui/help"
	"github.com/nhle/carpool-client/internal/ui/login"
	"github.com/nhle/carpool-client/internal/ui/notelist"
)

// statePollInterval is how often the header refreshes the channel state.
const statePollInterval = time.Second

// Session is the login state the UI drives.
type Session interface {
	Login(ctx context.Context, email, password string) (*model.User, error)
	Logout(ctx context.Context) error
	IsAuthenticated() bool
	Profile(ctx context.Context) (*model.User, error)
}

// Notifications is the notification state the UI renders.
type Notifications interface {
	Subscribe() (<-chan notification.Snapshot, func())
	MarkAsRead(ctx context.Context, id int64) error
	MarkAllAsRead(ctx context.Context) error
}

// Channel reports the state of the push-event connection.
type Channel interface {
	State() realtime.State
}

type snapshotMsg notification.Snapshot

type loginResultMsg struct {
	user *model.User
	err  error
}

type logoutResultMsg struct {
	err error
}

type profileLoadedMsg struct {
	user *model.User
}

type markResultMsg struct {
	err error
}

type stateTickMsg struct{}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewLogin ViewState = iota
	ViewList
	ViewHelp
)

// subscription outlives Model copies.
type subscription struct {
	ch          <-chan notification.Snapshot
	unsubscribe func()
}

// Model is the root Bubble Tea model that manages view routing and the
// header badge.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap

	session Session
	notes   Notifications
	channel Channel
	sub     *subscription

	loginView login.Model
	listView  notelist.Model
	helpView  helpview.Model

	ready     bool
	user      *model.User
	unread    int
	connState realtime.State
	status    string
}

// New creates the root model and subscribes it to notification updates.
// Call Close once the program has exited.
func New(s Session, n Notifications, c Channel) Model {
	k := keys.DefaultKeyMap()
	ch, unsubscribe := n.Subscribe()

	m := Model{
		currentView: ViewLogin,
		keys:        k,
		session:     s,
		notes:       n,
		channel:     c,
		sub:         &subscription{ch: ch, unsubscribe: unsubscribe},
		loginView:   login.New(80, 24),
		listView:    notelist.New(k, 80, 24),
		helpView:    helpview.New(k, 80, 24),
	}
	if s.IsAuthenticated() {
		m.currentView = ViewList
	}
	return m
}

// Close releases the notification subscription.
func (m Model) Close() {
	m.sub.unsubscribe()
}

// Init starts listening for snapshots and opens the first view.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.waitForSnapshot(), tickState()}
	if m.currentView == ViewLogin {
		cmds = append(cmds, m.loginView.Start())
	} else {
		cmds = append(cmds, m.loadProfile())
	}
	return tea.Batch(cmds...)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		h := m.layout.ContentHeight()
		m.loginView.SetSize(msg.Width, h)
		m.listView.SetSize(msg.Width, h)
		m.helpView.SetSize(msg.Width, h)
		return m.updateActiveView(msg)

	case snapshotMsg:
		m.unread = msg.Unread
		cmd := m.listView.SetNotifications(msg.Items)
		return m, tea.Batch(cmd, m.waitForSnapshot())

	case stateTickMsg:
		if m.channel != nil {
			m.connState = m.channel.State()
		}
		return m, tickState()

	case login.SubmitMsg:
		return m, m.login(msg.Email, msg.Password)

	case loginResultMsg:
		if msg.err != nil {
			var loginErr *session.LoginError
			text := session.FallbackLoginMessage
			if errors.As(msg.err, &loginErr) {
				text = loginErr.Message
			}
			return m, m.loginView.SetError(text)
		}
		m.user = msg.user
		m.status = ""
		m.currentView = ViewList
		return m, nil

	case profileLoadedMsg:
		m.user = msg.user
		return m, nil

	case logoutResultMsg:
		m.user = nil
		m.status = ""
		if msg.err != nil {
			m.status = "logged out; some local data could not be removed"
		}
		m.currentView = ViewLogin
		return m, m.loginView.Start()

	case notelist.MarkReadMsg:
		return m, m.markRead(msg.ID)

	case notelist.MarkAllReadMsg:
		return m, m.markAllRead()

	case markResultMsg:
		m.status = ""
		if msg.err != nil {
			m.status = "could not update notifications, try again"
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.currentView == ViewLogin {
			break
		}

		switch {
		case key.Matches(msg, m.keys.Help):
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewHelp
			return m, nil

		case key.Matches(msg, m.keys.Back):
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}

		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Logout):
			if m.currentView == ViewList {
				return m, m.logout()
			}
		}
	}

	return m.updateActiveView(msg)
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewLogin:
		m.loginView, cmd = m.loginView.Update(msg)
	case ViewList:
		m.listView, cmd = m.listView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(m.title(), m.badge(), m.connState.String())
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, m.renderContent(), statusBar)
}

func (m Model) renderContent() string {
	switch m.currentView {
	case ViewLogin:
		return m.loginView.View()
	case ViewHelp:
		return m.helpView.View()
	default:
		return m.listView.View()
	}
}

func (m Model) title() string {
	if m.user == nil {
		return "Carpool"
	}
	return "Carpool · Hi, " + m.user.FirstName()
}

// badge is empty when nothing is unread or nobody is logged in.
func (m Model) badge() string {
	if m.unread == 0 || m.currentView == ViewLogin {
		return ""
	}
	return fmt.Sprintf("%d new", m.unread)
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	if m.status != "" {
		return m.status
	}

	switch m.currentView {
	case ViewLogin:
		return "enter submit | ctrl+c quit"
	case ViewHelp:
		return "? close help | esc back"
	default:
		return "enter read | M read all | L log out | ? help | q quit"
	}
}

func (m Model) waitForSnapshot() tea.Cmd {
	ch := m.sub.ch
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return snapshotMsg(s)
	}
}

func tickState() tea.Cmd {
	return tea.Tick(statePollInterval, func(time.Time) tea.Msg { return stateTickMsg{} })
}

func (m Model) login(email, password string) tea.Cmd {
	s := m.session
	return func() tea.Msg {
		user, err := s.Login(context.Background(), email, password)
		return loginResultMsg{user: user, err: err}
	}
}

func (m Model) logout() tea.Cmd {
	s := m.session
	return func() tea.Msg {
		return logoutResultMsg{err: s.Logout(context.Background())}
	}
}

func (m Model) loadProfile() tea.Cmd {
	s := m.session
	return func() tea.Msg {
		user, err := s.Profile(context.Background())
		if err != nil {
			return nil
		}
		return profileLoadedMsg{user: user}
	}
}

func (m Model) markRead(id int64) tea.Cmd {
	n := m.notes
	return func() tea.Msg {
		return markResultMsg{err: n.MarkAsRead(context.Background(), id)}
	}
}

func (m Model) markAllRead() tea.Cmd {
	n := m.notes
	return func() tea.Msg {
		return markResultMsg{err: n.MarkAllAsRead(context.Background())}
	}
}

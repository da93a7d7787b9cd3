package notelist

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/carpool-client/internal/keys"
	"github.com/nhle/carpool-client/internal/model"
	"github.com/nhle/carpool-client/internal/theme"
)

// MarkReadMsg asks the app to mark one notification as read.
type MarkReadMsg struct {
	ID int64
}

// MarkAllReadMsg asks the app to mark every notification as read.
type MarkAllReadMsg struct{}

// Model is the notification list view.
type Model struct {
	list   list.Model
	keys   *keys.KeyMap
	width  int
	height int
}

// New creates a new notification list model.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, itemDelegate{now: time.Now}, width, height)
	l.Title = "Notifications"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	return Model{list: l, keys: k, width: width, height: height}
}

// SetNotifications replaces the displayed list, keeping the cursor on
// the same notification when it is still present.
func (m *Model) SetNotifications(items []model.Notification) tea.Cmd {
	selected, hadSelection := m.Selected()

	listItems := make([]list.Item, len(items))
	cursor := 0
	for i, n := range items {
		listItems[i] = Item{Notification: n}
		if hadSelection && n.ID == selected.ID {
			cursor = i
		}
	}
	cmd := m.list.SetItems(listItems)
	m.list.Select(cursor)
	return cmd
}

// Selected returns the focused notification.
func (m Model) Selected() (model.Notification, bool) {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return model.Notification{}, false
	}
	return it.Notification, true
}

// Update handles messages for the list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.MarkRead):
			n, ok := m.Selected()
			if !ok || n.IsRead {
				return m, nil
			}
			return m, func() tea.Msg { return MarkReadMsg{ID: n.ID} }

		case key.Matches(msg, m.keys.MarkAll):
			if len(m.list.Items()) == 0 {
				return m, nil
			}
			return m, func() tea.Msg { return MarkAllReadMsg{} }
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the notification list.
func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No notifications yet.")
	}
	return m.list.View()
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height)
}

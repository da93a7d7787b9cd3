package notelist

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/carpool-client/internal/model"
	"github.com/nhle/carpool-client/internal/theme"
)

// Item wraps a model.Notification so it can be used in a bubbles/list.
type Item struct {
	Notification model.Notification
}

// FilterValue returns the string used for fuzzy filtering.
func (i Item) FilterValue() string { return i.Notification.Title }

// Title returns the notification title.
func (i Item) Title() string { return i.Notification.Title }

// Description returns the notification body.
func (i Item) Description() string { return i.Notification.Message }

// itemDelegate renders one notification per line.
type itemDelegate struct {
	now func() time.Time
}

func (d itemDelegate) Height() int                             { return 1 }
func (d itemDelegate) Spacing() int                            { return 0 }
func (d itemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

// Render draws a single list item line.
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(Item)
	if !ok {
		return
	}
	n := it.Notification

	marker := "●"
	title := theme.UnreadStyle.Render(n.Title)
	if n.IsRead {
		marker = " "
		title = theme.ReadStyle.Render(n.Title)
	}

	kind := ""
	if n.Type != "" {
		kind = theme.TypeStyle(n.Type).Render(n.Type)
	}

	age := theme.HelpStyle.Render(relativeTime(d.now(), n.CreatedAt))
	line := fmt.Sprintf("%s %s%s %s  %s", marker, kind, title, theme.ReadStyle.Render(n.Message), age)

	if index == m.Index() {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = lipgloss.NewStyle().PaddingLeft(2).Render(line)
	}

	fmt.Fprint(w, line)
}

// relativeTime returns a human-friendly age for an RFC 3339 timestamp,
// or "" when stamp does not parse.
func relativeTime(now time.Time, stamp string) string {
	t, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return ""
	}

	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return fmt.Sprintf("%dw ago", int(d.Hours()/24/7))
	}
}

package theme

import "github.com/charmbracelet/lipgloss"

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue   = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen  = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite  = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// palette is the set of colors the styles are built from.
type palette struct {
	accent lipgloss.TerminalColor
	text   lipgloss.TerminalColor
	muted  lipgloss.TerminalColor
	subtle lipgloss.TerminalColor
	border lipgloss.TerminalColor
	alert  lipgloss.TerminalColor
	ok     lipgloss.TerminalColor
}

var palettes = map[string]palette{
	"default": {
		accent: ColorBlue,
		text:   ColorWhite,
		muted:  ColorGray,
		subtle: ColorSubtle,
		border: ColorBorder,
		alert:  ColorRed,
		ok:     ColorGreen,
	},
	"mono": {
		accent: ColorWhite,
		text:   ColorWhite,
		muted:  ColorGray,
		subtle: ColorSubtle,
		border: ColorBorder,
		alert:  ColorWhite,
		ok:     ColorGray,
	},
}

// Styles shared by the views. They are rebuilt by Apply.
var (
	// HeaderStyle is used for the top bar and the application title.
	HeaderStyle lipgloss.Style
	// StatusBarStyle is used for the bottom status bar.
	StatusBarStyle lipgloss.Style
	// PanelStyle wraps overlay content such as help and the login form.
	PanelStyle lipgloss.Style
	// BadgeStyle renders the "N new" counter in the header.
	BadgeStyle lipgloss.Style
	// UnreadStyle and ReadStyle render notification titles.
	UnreadStyle lipgloss.Style
	ReadStyle   lipgloss.Style
	// SelectedItemStyle highlights the focused list row.
	SelectedItemStyle lipgloss.Style
	// HelpStyle is used for keyboard hints and secondary text.
	HelpStyle lipgloss.Style
	// ErrorStyle renders user-facing error messages.
	ErrorStyle lipgloss.Style
	// TitleStyle renders view titles.
	TitleStyle lipgloss.Style
)

func init() {
	Apply("default")
}

// Apply rebuilds the styles from the named palette. Unknown names fall
// back to "default". It reports whether name was known.
func Apply(name string) bool {
	p, ok := palettes[name]
	if !ok {
		p = palettes["default"]
	}

	HeaderStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(p.text).
		Background(p.accent).
		Padding(0, 1)

	StatusBarStyle = lipgloss.NewStyle().
		Foreground(p.text).
		Background(p.subtle).
		Padding(0, 1)

	PanelStyle = lipgloss.NewStyle().
		Padding(1, 2).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(p.border)

	BadgeStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(p.text).
		Background(p.alert).
		Padding(0, 1)

	UnreadStyle = lipgloss.NewStyle().Bold(true).Foreground(p.text)
	ReadStyle = lipgloss.NewStyle().Foreground(p.muted)

	SelectedItemStyle = lipgloss.NewStyle().
		PaddingLeft(1).
		Bold(true).
		Foreground(p.accent).
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(p.accent)

	HelpStyle = lipgloss.NewStyle().
		Foreground(p.muted).
		Italic(true)

	ErrorStyle = lipgloss.NewStyle().Bold(true).Foreground(p.alert)

	TitleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(p.text).
		MarginBottom(1)

	return ok
}

// TypeStyle returns a color-coded style for a notification type.
func TypeStyle(kind string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch kind {
	case "ride_request", "request":
		return base.Foreground(ColorYellow)
	case "ride_accepted", "accepted":
		return base.Foreground(ColorGreen)
	case "ride_cancelled", "cancelled", "ride_rejected", "rejected":
		return base.Foreground(ColorRed)
	default:
		return base.Foreground(ColorBlue)
	}
}

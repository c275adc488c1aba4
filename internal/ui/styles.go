package ui

import (
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Theme names the active color scheme.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

var currentTheme = ThemeDark

// palette is one complete set of UI colors.
type palette struct {
	Bg, Surface, Border, Text, TextDim lipgloss.Color
	Accent, Purple, Cyan, Green        lipgloss.Color
	Yellow, Red, Comment               lipgloss.Color
}

// Tokyo Night.
var darkColors = palette{
	Bg:      lipgloss.Color("#1a1b26"),
	Surface: lipgloss.Color("#24283b"),
	Border:  lipgloss.Color("#414868"),
	Text:    lipgloss.Color("#c0caf5"),
	TextDim: lipgloss.Color("#787fa0"),
	Accent:  lipgloss.Color("#7aa2f7"),
	Purple:  lipgloss.Color("#bb9af7"),
	Cyan:    lipgloss.Color("#7dcfff"),
	Green:   lipgloss.Color("#9ece6a"),
	Yellow:  lipgloss.Color("#e0af68"),
	Red:     lipgloss.Color("#f7768e"),
	Comment: lipgloss.Color("#787fa0"),
}

// Tokyo Night Light.
var lightColors = palette{
	Bg:      lipgloss.Color("#d5d6db"),
	Surface: lipgloss.Color("#e9e9ec"),
	Border:  lipgloss.Color("#9699a3"),
	Text:    lipgloss.Color("#343b58"),
	TextDim: lipgloss.Color("#6a6d7c"),
	Accent:  lipgloss.Color("#34548a"),
	Purple:  lipgloss.Color("#7847bd"),
	Cyan:    lipgloss.Color("#166775"),
	Green:   lipgloss.Color("#485e30"),
	Yellow:  lipgloss.Color("#8f5e15"),
	Red:     lipgloss.Color("#8c4351"),
	Comment: lipgloss.Color("#6a6d7c"),
}

// Active colors, assigned by InitTheme. Rendering code reads these through
// the style variables below; direct use is fine for one-off styling.
var (
	ColorBg      lipgloss.Color
	ColorSurface lipgloss.Color
	ColorBorder  lipgloss.Color
	ColorText    lipgloss.Color
	ColorTextDim lipgloss.Color
	ColorAccent  lipgloss.Color
	ColorPurple  lipgloss.Color
	ColorCyan    lipgloss.Color
	ColorGreen   lipgloss.Color
	ColorYellow  lipgloss.Color
	ColorRed     lipgloss.Color
	ColorComment lipgloss.Color
)

// themeMu guards the color and style variables during live theme switches.
var themeMu sync.RWMutex

// InitTheme activates the named palette and rebuilds every style. Must run
// before any rendering; calling it again performs a live theme switch.
func InitTheme(theme string) {
	themeMu.Lock()
	defer themeMu.Unlock()
	p := darkColors
	currentTheme = ThemeDark
	if theme == "light" {
		p = lightColors
		currentTheme = ThemeLight
	}
	ColorBg = p.Bg
	ColorSurface = p.Surface
	ColorBorder = p.Border
	ColorText = p.Text
	ColorTextDim = p.TextDim
	ColorAccent = p.Accent
	ColorPurple = p.Purple
	ColorCyan = p.Cyan
	ColorGreen = p.Green
	ColorYellow = p.Yellow
	ColorRed = p.Red
	ColorComment = p.Comment
	initStyles()
}

// GetCurrentTheme returns the active theme.
func GetCurrentTheme() Theme {
	return currentTheme
}

func init() {
	InitTheme("dark")
}

// Base Styles
var (
	TitleStyle   lipgloss.Style
	DimStyle     lipgloss.Style
	ErrorStyle   lipgloss.Style
	SuccessStyle lipgloss.Style
)

// Search Styles
var (
	SearchBoxStyle      lipgloss.Style
	ResultItemStyle     lipgloss.Style
	SelectedResultStyle lipgloss.Style
	MatchLineStyle      lipgloss.Style
)

// Message Rendering Styles
var (
	SenderStyle    lipgloss.Style
	SenderSelStyle lipgloss.Style
	TimeStyle      lipgloss.Style
	ChannelStyle   lipgloss.Style
)

// Preview Pane Styles
var (
	PreviewPanelStyle lipgloss.Style
	PreviewTitleStyle lipgloss.Style
	PreviewMetaStyle  lipgloss.Style
)

// Overlay / Dialog Styles
var (
	OverlayStyle     lipgloss.Style
	OverlayTitle     lipgloss.Style
	PickerItemStyle  lipgloss.Style
	PickerSelStyle   lipgloss.Style
	PickerCountStyle lipgloss.Style
)

// Status Bar Styles
var (
	StatusBarStyle lipgloss.Style
	KeyStyle       lipgloss.Style
	KeyDescStyle   lipgloss.Style
	KeySepStyle    lipgloss.Style
)

// initStyles rebuilds the style variables from the active colors. Called by
// InitTheme with the write lock held.
func initStyles() {
	TitleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorAccent)

	DimStyle = lipgloss.NewStyle().
		Foreground(ColorComment)

	ErrorStyle = lipgloss.NewStyle().
		Foreground(ColorRed).
		Bold(true)

	SuccessStyle = lipgloss.NewStyle().
		Foreground(ColorGreen).
		Bold(true)

	SearchBoxStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorAccent).
		Padding(0, 1)

	ResultItemStyle = lipgloss.NewStyle().
		Foreground(ColorText).
		PaddingLeft(2)

	SelectedResultStyle = lipgloss.NewStyle().
		Foreground(ColorBg).
		Background(ColorAccent).
		Bold(true)

	MatchLineStyle = lipgloss.NewStyle().
		Background(ColorYellow).
		Foreground(ColorBg).
		Bold(true)

	SenderStyle = lipgloss.NewStyle().
		Foreground(ColorPurple).
		Bold(true)

	SenderSelStyle = lipgloss.NewStyle().
		Foreground(ColorBg).
		Background(ColorAccent).
		Bold(true)

	TimeStyle = lipgloss.NewStyle().
		Foreground(ColorComment)

	ChannelStyle = lipgloss.NewStyle().
		Foreground(ColorCyan).
		Bold(true)

	PreviewPanelStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Padding(0, 1)

	PreviewTitleStyle = lipgloss.NewStyle().
		Foreground(ColorCyan).
		Bold(true).
		Underline(true)

	PreviewMetaStyle = lipgloss.NewStyle().
		Foreground(ColorComment).
		Italic(true)

	OverlayStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorPurple).
		Padding(1, 2)

	OverlayTitle = lipgloss.NewStyle().
		Foreground(ColorPurple).
		Bold(true)

	PickerItemStyle = lipgloss.NewStyle().
		Padding(0, 2)

	PickerSelStyle = lipgloss.NewStyle().
		Padding(0, 2).
		Background(ColorAccent).
		Foreground(ColorBg)

	PickerCountStyle = lipgloss.NewStyle().
		Foreground(ColorTextDim)

	StatusBarStyle = lipgloss.NewStyle().
		Background(ColorSurface).
		Foreground(ColorText).
		Padding(0, 1)

	KeyStyle = lipgloss.NewStyle().
		Foreground(ColorAccent).
		Bold(true)

	KeyDescStyle = lipgloss.NewStyle().
		Foreground(ColorText)

	KeySepStyle = lipgloss.NewStyle().
		Foreground(ColorBorder)
}

// KeyHint renders one "key description" pair for the status bar.
func KeyHint(key, description string) string {
	return KeyStyle.Render(key) + " " + KeyDescStyle.Render(description)
}

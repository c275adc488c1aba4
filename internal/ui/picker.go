package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"

	"github.com/slacksift/slacksift/internal/store"
)

// maxPickerResults caps the list rendered inside the overlay.
const maxPickerResults = 10

// convSource implements fuzzy.Source over conversation names.
type convSource struct {
	items []store.ConversationAggregate
}

func (s convSource) String(i int) string {
	return s.items[i].ConversationName
}

func (s convSource) Len() int {
	return len(s.items)
}

// Picker is the conversation picker overlay. Typing narrows the list with
// fuzzy matching on conversation names; enter hands the choice back to the
// parent model via Chosen.
type Picker struct {
	input    textinput.Model
	allItems []store.ConversationAggregate
	results  []store.ConversationAggregate
	cursor   int
	width    int
	height   int
	visible  bool
	chosen   *store.ConversationAggregate
}

// NewPicker creates a hidden conversation picker.
func NewPicker() *Picker {
	ti := textinput.New()
	ti.Placeholder = "Jump to conversation..."
	ti.CharLimit = 80
	ti.Width = 40

	return &Picker{
		input:   ti,
		results: []store.ConversationAggregate{},
	}
}

// SetItems sets the conversations available for picking.
func (p *Picker) SetItems(items []store.ConversationAggregate) {
	p.allItems = items
	p.updateResults()
}

// SetSize sets the dimensions used for centering the overlay.
func (p *Picker) SetSize(width, height int) {
	p.width = width
	p.height = height
}

// Show opens the overlay with a cleared query.
func (p *Picker) Show() {
	p.visible = true
	p.input.SetValue("")
	p.input.Focus()
	p.chosen = nil
	p.updateResults()
}

// Hide closes the overlay.
func (p *Picker) Hide() {
	p.visible = false
	p.input.Blur()
}

// IsVisible reports whether the overlay is open.
func (p *Picker) IsVisible() bool {
	return p.visible
}

// Selected returns the conversation under the cursor.
func (p *Picker) Selected() *store.ConversationAggregate {
	if len(p.results) == 0 {
		return nil
	}
	if p.cursor >= len(p.results) {
		p.cursor = len(p.results) - 1
	}
	return &p.results[p.cursor]
}

// Chosen returns the conversation confirmed with enter, once. The parent
// polls this after forwarding a message.
func (p *Picker) Chosen() *store.ConversationAggregate {
	c := p.chosen
	p.chosen = nil
	return c
}

// Update handles messages while the overlay is open.
func (p *Picker) Update(msg tea.Msg) (*Picker, tea.Cmd) {
	if !p.visible {
		return p, nil
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			p.Hide()
			return p, nil

		case "enter":
			if sel := p.Selected(); sel != nil {
				p.chosen = sel
				p.Hide()
			}
			return p, nil

		case "up", "ctrl+k":
			if p.cursor > 0 {
				p.cursor--
			}
			return p, nil

		case "down", "ctrl+j":
			if p.cursor < len(p.results)-1 {
				p.cursor++
			}
			return p, nil

		default:
			var cmd tea.Cmd
			p.input, cmd = p.input.Update(msg)
			p.updateResults()
			return p, cmd
		}
	}

	return p, nil
}

// updateResults filters conversations against the current query.
func (p *Picker) updateResults() {
	query := strings.TrimSpace(p.input.Value())
	p.cursor = 0
	if query == "" {
		p.results = p.allItems
		return
	}
	matches := fuzzy.FindFrom(query, convSource{items: p.allItems})
	results := make([]store.ConversationAggregate, 0, len(matches))
	for _, match := range matches {
		results = append(results, p.allItems[match.Index])
	}
	p.results = results
}

// View renders the picker overlay centered on screen.
func (p *Picker) View() string {
	if !p.visible {
		return ""
	}

	header := OverlayTitle.Render("Conversations")
	searchBox := SearchBoxStyle.Render(p.input.View())

	shown := p.results
	if len(shown) > maxPickerResults {
		shown = shown[:maxPickerResults]
	}

	var rows strings.Builder
	for i, conv := range shown {
		label := fmt.Sprintf("%s  (%d msgs, %s)", conv.ConversationName, conv.MessageCount, formatWhen(conv.LastTimestamp))
		if i == p.cursor {
			rows.WriteString(PickerSelStyle.Render("› " + label))
		} else {
			rows.WriteString(PickerItemStyle.Render("  " + label))
		}
		if i < len(shown)-1 {
			rows.WriteString("\n")
		}
	}

	count := PickerCountStyle.Render("  " + formatCount(len(p.results)))
	keysHint := DimStyle.Render("  [Enter] Open  [↑↓] Navigate  [Esc] Cancel")

	content := header + "\n\n" + searchBox + "\n\n" + rows.String() + "\n" + count + "\n" + keysHint

	overlayWidth := 56
	if p.width > 0 && p.width < overlayWidth+10 {
		overlayWidth = p.width - 10
		if overlayWidth < 30 {
			overlayWidth = 30
		}
	}
	overlay := OverlayStyle.Width(overlayWidth).Render(content)

	return centerInScreen(overlay, p.width, p.height)
}

// centerInScreen centers content in the terminal
func centerInScreen(content string, screenWidth, screenHeight int) string {
	lines := strings.Split(content, "\n")
	contentHeight := len(lines)
	contentWidth := 0
	for _, line := range lines {
		if w := len(line); w > contentWidth {
			contentWidth = w
		}
	}

	verticalPad := (screenHeight - contentHeight) / 2
	if verticalPad < 0 {
		verticalPad = 0
	}
	horizontalPad := (screenWidth - contentWidth) / 2
	if horizontalPad < 0 {
		horizontalPad = 0
	}

	var result strings.Builder
	for i := 0; i < verticalPad; i++ {
		result.WriteString("\n")
	}
	padding := strings.Repeat(" ", horizontalPad)
	for _, line := range lines {
		result.WriteString(padding + line + "\n")
	}

	return result.String()
}

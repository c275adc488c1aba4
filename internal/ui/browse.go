package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/slacksift/slacksift/internal/clipboard"
	"github.com/slacksift/slacksift/internal/search"
	"github.com/slacksift/slacksift/internal/store"
)

const (
	searchDebounce = 250 * time.Millisecond
	browsePageSize = 50
	threadPageSize = 400
	previewContext = 2
)

// ThemeChangedMsg tells the running program the palette was swapped and the
// screen needs a repaint. Sent from outside via Program.Send.
type ThemeChangedMsg struct{}

// searchDebounceMsg fires after the debounce interval
type searchDebounceMsg struct {
	query string
}

// searchResultsMsg carries async search results back to the model
type searchResultsMsg struct {
	query   string
	results []search.Result
	err     error
}

type recentLoadedMsg struct {
	messages []store.Message
	err      error
}

type conversationsLoadedMsg struct {
	conversations []store.ConversationAggregate
	err           error
}

type threadLoadedMsg struct {
	name     string
	messages []store.Message
	focusID  int64
	err      error
}

// Browse is the interactive message browser. The main screen is a query box
// over a result list with a context preview; enter drills into the selected
// conversation, ctrl+o opens the conversation picker.
//
// Queries support a "from:NAME" token which becomes a sender filter; the
// remaining tokens are matched against message text.
type Browse struct {
	engine    *search.Engine
	workspace string

	input   textinput.Model
	results []search.Result
	cursor  int
	offset  int

	picker *Picker

	threadOpen   bool
	threadName   string
	threadMsgs   []store.Message
	threadFocus  int64
	threadScroll int

	width     int
	height    int
	searching bool
	notice    string
	err       error
}

// NewBrowse creates the browser model for one workspace.
func NewBrowse(engine *search.Engine, workspace string) *Browse {
	ti := textinput.New()
	ti.Placeholder = "Search messages (from:NAME filters by sender)..."
	ti.Focus()
	ti.CharLimit = 200
	ti.Width = 60

	return &Browse{
		engine:    engine,
		workspace: workspace,
		input:     ti,
		picker:    NewPicker(),
	}
}

// Init loads the recent view and the picker's conversation list.
func (b *Browse) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, b.loadRecentCmd(), b.loadConversationsCmd())
}

// Update handles messages for the browser.
func (b *Browse) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		b.width = msg.Width
		b.height = msg.Height
		b.picker.SetSize(msg.Width, msg.Height)
		b.clampScroll()
		return b, nil

	case ThemeChangedMsg:
		return b, nil

	case recentLoadedMsg:
		// Only applies while the query box is still empty.
		if strings.TrimSpace(b.input.Value()) != "" {
			return b, nil
		}
		b.searching = false
		if msg.err != nil {
			b.err = msg.err
			return b, nil
		}
		b.err = nil
		b.results = resultsFromMessages(msg.messages)
		b.cursor = 0
		b.offset = 0
		return b, nil

	case conversationsLoadedMsg:
		if msg.err != nil {
			b.err = msg.err
			return b, nil
		}
		b.picker.SetItems(msg.conversations)
		return b, nil

	case searchDebounceMsg:
		// Debounce timer fired: if query still matches, run async search
		if msg.query == b.input.Value() && strings.TrimSpace(msg.query) != "" {
			b.searching = true
			return b, b.searchCmd(msg.query, false)
		}
		return b, nil

	case searchResultsMsg:
		// Async search results arrived: only apply if query still matches
		if msg.query != b.input.Value() {
			return b, nil
		}
		b.searching = false
		if msg.err != nil {
			b.err = msg.err
			return b, nil
		}
		b.err = nil
		b.results = msg.results
		b.cursor = 0
		b.offset = 0
		return b, nil

	case threadLoadedMsg:
		b.searching = false
		if msg.err != nil {
			b.err = msg.err
			return b, nil
		}
		b.err = nil
		b.threadOpen = true
		b.threadName = msg.name
		b.threadMsgs = msg.messages
		b.threadFocus = msg.focusID
		b.scrollThreadToFocus()
		return b, nil

	case tea.KeyMsg:
		return b.handleKey(msg)
	}

	return b, nil
}

func (b *Browse) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	b.notice = ""

	if b.picker.IsVisible() {
		var cmd tea.Cmd
		b.picker, cmd = b.picker.Update(msg)
		if conv := b.picker.Chosen(); conv != nil {
			b.searching = true
			return b, b.openThreadCmd(conv.ConversationName, 0)
		}
		return b, cmd
	}

	if b.threadOpen {
		return b.handleThreadKey(msg)
	}

	switch msg.String() {
	case "ctrl+c":
		return b, tea.Quit

	case "esc":
		if b.input.Value() != "" {
			b.input.SetValue("")
			b.searching = true
			return b, b.loadRecentCmd()
		}
		return b, tea.Quit

	case "enter":
		if sel := b.selected(); sel != nil {
			b.searching = true
			return b, b.openThreadCmd(sel.Message.ConversationName, sel.Message.ID)
		}
		return b, nil

	case "up", "ctrl+k":
		if b.cursor > 0 {
			b.cursor--
			b.clampScroll()
		}
		return b, nil

	case "down", "ctrl+j":
		if b.cursor < len(b.results)-1 {
			b.cursor++
			b.clampScroll()
		}
		return b, nil

	case "ctrl+o":
		b.picker.Show()
		return b, nil

	case "ctrl+r":
		b.searching = true
		return b, b.refreshCmd(b.input.Value())

	case "ctrl+y":
		if sel := b.selected(); sel != nil {
			b.notice = copyNotice(sel.Message.Sender + ": " + sel.Message.Text)
		}
		return b, nil

	default:
		var cmd tea.Cmd
		b.input, cmd = b.input.Update(msg)
		query := b.input.Value()
		if strings.TrimSpace(query) == "" {
			b.searching = true
			return b, tea.Batch(cmd, b.loadRecentCmd())
		}
		// Debounce: schedule search after the typing pause
		b.searching = true
		debounceCmd := tea.Tick(searchDebounce, func(time.Time) tea.Msg {
			return searchDebounceMsg{query: query}
		})
		return b, tea.Batch(cmd, debounceCmd)
	}
}

func (b *Browse) handleThreadKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return b, tea.Quit

	case "esc", "q":
		b.threadOpen = false
		b.threadMsgs = nil
		b.threadFocus = 0
		return b, nil

	case "up", "ctrl+k":
		if b.threadScroll > 0 {
			b.threadScroll--
		}
		return b, nil

	case "down", "ctrl+j":
		if b.threadScroll < b.maxThreadScroll() {
			b.threadScroll++
		}
		return b, nil

	case "g":
		b.threadScroll = 0
		return b, nil

	case "G":
		b.threadScroll = b.maxThreadScroll()
		return b, nil

	case "ctrl+y":
		if len(b.threadMsgs) > 0 {
			var txt strings.Builder
			for _, m := range b.threadMsgs {
				txt.WriteString(m.Sender + ": " + m.Text + "\n")
			}
			b.notice = copyNotice(txt.String())
		}
		return b, nil
	}
	return b, nil
}

// copyNotice runs a clipboard copy and phrases the outcome for the status
// line.
func copyNotice(text string) string {
	result, err := clipboard.Copy(text)
	if err != nil {
		return "copy failed: " + err.Error()
	}
	if result.Lines > 1 {
		return fmt.Sprintf("copied %d lines (%s)", result.Lines, result.Method)
	}
	return "copied (" + result.Method + ")"
}

// selected returns the result under the cursor.
func (b *Browse) selected() *search.Result {
	if len(b.results) == 0 {
		return nil
	}
	if b.cursor >= len(b.results) {
		b.cursor = len(b.results) - 1
	}
	return &b.results[b.cursor]
}

func (b *Browse) loadRecentCmd() tea.Cmd {
	engine := b.engine
	return func() tea.Msg {
		msgs, err := engine.Recent(context.Background(), browsePageSize)
		return recentLoadedMsg{messages: msgs, err: err}
	}
}

func (b *Browse) loadConversationsCmd() tea.Cmd {
	engine := b.engine
	return func() tea.Msg {
		convs, err := engine.Conversations(context.Background(), browsePageSize)
		return conversationsLoadedMsg{conversations: convs, err: err}
	}
}

func (b *Browse) searchCmd(raw string, refreshFirst bool) tea.Cmd {
	engine := b.engine
	return func() tea.Msg {
		text, from := parseBrowseQuery(raw)
		results, err := engine.Search(context.Background(), search.Query{
			Text:         text,
			From:         from,
			Limit:        browsePageSize,
			Context:      previewContext,
			RefreshFirst: refreshFirst,
		})
		return searchResultsMsg{query: raw, results: results, err: err}
	}
}

// refreshCmd pulls new messages first, then re-runs whatever view is active.
func (b *Browse) refreshCmd(raw string) tea.Cmd {
	text, from := parseBrowseQuery(raw)
	if text != "" || from != "" {
		return b.searchCmd(raw, true)
	}
	engine := b.engine
	return func() tea.Msg {
		if _, err := engine.Search(context.Background(), search.Query{RefreshFirst: true}); err != nil {
			return recentLoadedMsg{err: err}
		}
		msgs, err := engine.Recent(context.Background(), browsePageSize)
		return recentLoadedMsg{messages: msgs, err: err}
	}
}

func (b *Browse) openThreadCmd(conversationName string, focusID int64) tea.Cmd {
	engine := b.engine
	return func() tea.Msg {
		msgs, err := engine.Thread(context.Background(), conversationName, 0, threadPageSize)
		return threadLoadedMsg{name: conversationName, messages: msgs, focusID: focusID, err: err}
	}
}

// parseBrowseQuery splits a raw query into text terms and a sender filter.
// Any token of the form from:NAME becomes the filter; the last one wins.
func parseBrowseQuery(raw string) (text, from string) {
	fields := strings.Fields(raw)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if rest, ok := strings.CutPrefix(f, "from:"); ok && rest != "" {
			from = rest
			continue
		}
		terms = append(terms, f)
	}
	return strings.Join(terms, " "), from
}

func resultsFromMessages(msgs []store.Message) []search.Result {
	results := make([]search.Result, len(msgs))
	for i, m := range msgs {
		results[i] = search.Result{Message: m}
	}
	return results
}

// listHeight is the number of result rows that fit between the query box
// and the preview pane.
func (b *Browse) listHeight() int {
	// header + query box (3) + preview pane + count/status rows
	chrome := 1 + 3 + b.previewHeight() + 2
	h := b.height - chrome
	if h < 3 {
		h = 3
	}
	return h
}

func (b *Browse) previewHeight() int {
	// title row + up to context rows either side of the hit, plus borders
	return previewContext*2 + 1 + 1 + 2
}

func (b *Browse) clampScroll() {
	visible := b.listHeight()
	if b.cursor < b.offset {
		b.offset = b.cursor
	}
	if b.cursor >= b.offset+visible {
		b.offset = b.cursor - visible + 1
	}
	if b.offset < 0 {
		b.offset = 0
	}
}

func (b *Browse) threadHeight() int {
	h := b.height - 3 // header + separator + status bar
	if h < 3 {
		h = 3
	}
	return h
}

func (b *Browse) maxThreadScroll() int {
	m := len(b.threadMsgs) - b.threadHeight()
	if m < 0 {
		return 0
	}
	return m
}

// scrollThreadToFocus positions the viewport so the focused message sits
// mid-screen, or pins to the latest messages when there is no focus.
func (b *Browse) scrollThreadToFocus() {
	if b.threadFocus == 0 {
		b.threadScroll = b.maxThreadScroll()
		return
	}
	for i, m := range b.threadMsgs {
		if m.ID == b.threadFocus {
			b.threadScroll = i - b.threadHeight()/2
			if b.threadScroll < 0 {
				b.threadScroll = 0
			}
			if b.threadScroll > b.maxThreadScroll() {
				b.threadScroll = b.maxThreadScroll()
			}
			return
		}
	}
	b.threadScroll = b.maxThreadScroll()
}

// View renders the browser.
func (b *Browse) View() string {
	if b.width == 0 {
		return "loading..."
	}
	if b.picker.IsVisible() {
		return b.picker.View()
	}
	if b.threadOpen {
		return b.viewThread()
	}
	return b.viewSearch()
}

func (b *Browse) viewSearch() string {
	var sb strings.Builder

	header := TitleStyle.Render("slacksift") + DimStyle.Render(" · "+b.workspace)
	if b.searching {
		header += DimStyle.Render("  searching...")
	}
	sb.WriteString(header)
	sb.WriteString("\n")

	sb.WriteString(SearchBoxStyle.Width(b.width - 4).Render(b.input.View()))
	sb.WriteString("\n")

	if b.err != nil {
		sb.WriteString(ErrorStyle.Render("  " + b.err.Error()))
		sb.WriteString("\n")
	}

	visible := b.listHeight()
	end := b.offset + visible
	if end > len(b.results) {
		end = len(b.results)
	}
	rowWidth := b.width - 2
	for i := b.offset; i < end; i++ {
		sb.WriteString(b.renderResultRow(i, rowWidth))
		sb.WriteString("\n")
	}
	for i := end - b.offset; i < visible; i++ {
		sb.WriteString("\n")
	}

	status := "  " + formatCount(len(b.results))
	if b.notice != "" {
		status += "  · " + b.notice
	}
	sb.WriteString(DimStyle.Render(status))
	sb.WriteString("\n")

	sb.WriteString(b.renderPreview())
	sb.WriteString("\n")

	hints := []string{
		KeyHint("↑↓", "navigate"),
		KeyHint("enter", "open"),
		KeyHint("ctrl+o", "conversations"),
		KeyHint("ctrl+y", "copy"),
		KeyHint("ctrl+r", "refresh"),
		KeyHint("esc", "clear/quit"),
	}
	sb.WriteString(StatusBarStyle.Width(b.width).Render(strings.Join(hints, KeySepStyle.Render(" • "))))

	return sb.String()
}

func (b *Browse) renderResultRow(i, width int) string {
	r := b.results[i]
	when := formatWhen(r.Message.Timestamp)
	line := fmt.Sprintf("%-10s %s  %s: %s", when, r.Message.ConversationName, r.Message.Sender, r.Message.Text)
	line = clipLine(line, width-2)
	if i == b.cursor {
		return SelectedResultStyle.Render(padLine("› "+line, width))
	}
	return ResultItemStyle.Render(line)
}

func (b *Browse) renderPreview() string {
	width := b.width - 6
	sel := b.selected()
	if sel == nil {
		return PreviewPanelStyle.Width(b.width - 4).Render(DimStyle.Render("nothing selected"))
	}

	var rows []string
	rows = append(rows, PreviewTitleStyle.Render(sel.Message.ConversationName))
	for _, m := range sel.Before {
		rows = append(rows, b.renderPreviewRow(m, width, false))
	}
	rows = append(rows, b.renderPreviewRow(sel.Message, width, true))
	for _, m := range sel.After {
		rows = append(rows, b.renderPreviewRow(m, width, false))
	}
	return PreviewPanelStyle.Width(b.width - 4).Render(strings.Join(rows, "\n"))
}

func (b *Browse) renderPreviewRow(m store.Message, width int, hit bool) string {
	line := fmt.Sprintf("%-10s %s: %s", formatWhen(m.Timestamp), m.Sender, m.Text)
	line = clipLine(line, width)
	if hit {
		return MatchLineStyle.Render(line)
	}
	return DimStyle.Render(line)
}

func (b *Browse) viewThread() string {
	var sb strings.Builder

	header := ChannelStyle.Render(b.threadName) +
		DimStyle.Render(fmt.Sprintf("  %d messages", len(b.threadMsgs)))
	if b.notice != "" {
		header += DimStyle.Render("  · " + b.notice)
	}
	sb.WriteString(header)
	sb.WriteString("\n\n")

	visible := b.threadHeight()
	end := b.threadScroll + visible
	if end > len(b.threadMsgs) {
		end = len(b.threadMsgs)
	}
	width := b.width - 2
	for i := b.threadScroll; i < end; i++ {
		m := b.threadMsgs[i]
		prefix := fmt.Sprintf("%-10s ", formatWhen(m.Timestamp))
		line := clipLine(m.Sender+": "+m.Text, width-len(prefix))
		if m.ID == b.threadFocus {
			sb.WriteString(MatchLineStyle.Render(padLine(prefix+line, width)))
		} else {
			sb.WriteString(TimeStyle.Render(prefix) + line)
		}
		sb.WriteString("\n")
	}
	for i := end - b.threadScroll; i < visible; i++ {
		sb.WriteString("\n")
	}

	hints := []string{
		KeyHint("↑↓", "scroll"),
		KeyHint("g/G", "top/bottom"),
		KeyHint("ctrl+y", "copy"),
		KeyHint("esc", "back"),
	}
	sb.WriteString(StatusBarStyle.Width(b.width).Render(strings.Join(hints, KeySepStyle.Render(" • "))))

	return sb.String()
}

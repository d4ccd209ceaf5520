package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"preface-cli/internal/api"
	"preface-cli/internal/config"
	"preface-cli/internal/logger"
	"preface-cli/internal/render"
	"preface-cli/internal/stream"
)

// ─── App mode ───────────────────────────────────────────────────────────────

type appMode int

const (
	modeIdle appMode = iota
	modeGenerating
)

// ─── Slash command registry ─────────────────────────────────────────────────

type slashCmd struct {
	name string
	desc string
}

var slashCommands = []slashCmd{
	{"/clear", "Clear the screen"},
	{"/config", "Show current configuration"},
	{"/copy", "Copy the last result to the clipboard"},
	{"/favorite", "Favorite a prompt (default: last result)"},
	{"/favorites", "List favorited prompts"},
	{"/help", "Show all commands"},
	{"/history", "List past prompts"},
	{"/quit", "Exit Preface"},
	{"/set", "Set server, openid or speed"},
	{"/unfavorite", "Remove a prompt from favorites"},
}

// ─── Model ──────────────────────────────────────────────────────────────────

type model struct {
	width  int
	height int

	// Bubble Tea components
	input   textinput.Model
	spinner spinner.Model

	// App state
	mode    appMode
	cfg     *config.Config
	client  api.PrefaceAPI
	version string

	// Generation state
	controller *stream.Controller
	feed       *renderFeed
	session    *stream.Session
	live       stream.RenderState
	waiting    bool // a waitForRender cmd is outstanding

	// Last finished generation, for /copy and /favorite
	lastText     string
	lastPromptID string

	// Markdown
	renderer    *render.Renderer
	renderStyle string

	// UI state
	ready        bool
	cmdMenuIdx   int  // selected index in command menu (-1 = none)
	cmdMenuOpen  bool // whether the command menu is visible
	lastInputVal string
	profile      string

	// Command history
	history      []string
	historyIdx   int    // current position in history (-1 = not browsing)
	historySaved string // saved input value when entering history mode
}

func initialModel(version, profile, renderStyle string) model {
	ti := textinput.New()
	ti.Placeholder = "Describe what to write or type /help..."
	ti.Focus()
	ti.CharLimit = 4096
	ti.Prompt = "❯ "
	ti.PromptStyle = promptSymbol
	ti.Cursor.Style = accent

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = accent

	cfg, err := config.Load(profile)
	if err != nil {
		logger.Warnf("tui: loading config: %v", err)
		cfg = &config.Config{Profile: profile}
	}

	m := model{
		input:       ti,
		spinner:     sp,
		version:     version,
		profile:     profile,
		cfg:         cfg,
		mode:        modeIdle,
		feed:        newRenderFeed(),
		renderStyle: renderStyle,
		history:     make([]string, 0),
		historyIdx:  -1,
	}
	m.rebuildClient()
	return m
}

// rebuildClient refreshes everything derived from cfg. Only called while idle.
func (m *model) rebuildClient() {
	m.client = nil
	if m.cfg != nil && m.cfg.Server != "" {
		m.client = api.NewClient(m.cfg)
	}
	opts := stream.Options{OnUpdate: m.feed.push}
	if m.cfg != nil {
		opts.TypingPeriod = m.cfg.TypingPeriod()
		opts.IdlePeriod = m.cfg.IdlePeriod()
		m.lastPromptID = m.cfg.LastPromptID
	}
	m.controller = stream.NewController(opts)
}

// ─── Init ───────────────────────────────────────────────────────────────────

func (m model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
	)
}

// ─── Update ─────────────────────────────────────────────────────────────────

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = m.width - 6

		if r, err := render.New(max(min(m.width-4, 100), 20), m.renderStyle); err == nil {
			m.renderer = r
		} else {
			logger.Warnf("tui: %v", err)
		}

		if !m.ready {
			m.ready = true
			welcome := renderWelcome(m.version, serverStr(m.cfg), openidStr(m.cfg), m.width)
			cmds = append(cmds, tea.Println(welcome))
		}

	case tea.KeyMsg:
		if next, cmd, handled := m.handleKey(msg); handled {
			return next, cmd
		}

	// ── Session snapshots ─────────────────────────────────────────────
	case renderMsg:
		m.waiting = false
		return m.handleRender(msg.state)

	// ── Async results ─────────────────────────────────────────────────
	case favoriteResultMsg:
		return m.handleFavoriteResult(msg)

	case recordsLoadedMsg:
		return m.handleRecordsLoaded(msg)
	}

	// Update sub-components
	var cmd tea.Cmd

	if m.mode != modeGenerating {
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	m.spinner, cmd = m.spinner.Update(msg)
	cmds = append(cmds, cmd)

	newVal := m.input.Value()
	if newVal != m.lastInputVal {
		m.lastInputVal = newVal
		if m.historyIdx != -1 {
			if m.historyIdx < len(m.history) && m.history[m.historyIdx] != newVal {
				m.historyIdx = -1
				m.historySaved = ""
			}
		}
		m.cmdMenuOpen = strings.HasPrefix(newVal, "/")
		m.cmdMenuIdx = 0
	}

	return m, tea.Batch(cmds...)
}

// ─── Keys ───────────────────────────────────────────────────────────────────

// handleKey covers the keys the model owns. Anything unhandled falls through
// to the text input.
func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	if m.mode == modeGenerating {
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			next, cmd := m.stopGeneration()
			return next, cmd, true
		case tea.KeyEnter:
			return m, nil, true
		}
		return m, nil, false
	}

	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit, true

	case tea.KeyEsc:
		if m.cmdMenuOpen {
			m.closeMenu()
			return m, nil, true
		}

	case tea.KeyUp, tea.KeyDown:
		step := 1
		if msg.Type == tea.KeyUp {
			step = -1
		}
		if m.cmdMenuOpen {
			if n := len(matchCommands(m.input.Value())); n > 0 {
				m.cmdMenuIdx = (m.cmdMenuIdx + step + n) % n
				return m, nil, true
			}
		} else if m.browseHistory(step) {
			return m, nil, true
		}

	case tea.KeyTab:
		if m.cmdMenuOpen {
			m.completeCommand()
			return m, nil, true
		}

	case tea.KeyEnter:
		if m.cmdMenuOpen {
			matches := matchCommands(m.input.Value())
			if m.cmdMenuIdx < len(matches) && matches[m.cmdMenuIdx].name != strings.TrimSpace(m.input.Value()) {
				m.completeCommand()
				return m, nil, true
			}
		}
		next, cmd := m.submit()
		return next, cmd, true
	}
	return m, nil, false
}

func (m *model) closeMenu() {
	m.cmdMenuOpen = false
	m.cmdMenuIdx = 0
}

// completeCommand replaces the input with the highlighted command.
func (m *model) completeCommand() {
	matches := matchCommands(m.input.Value())
	if len(matches) > 0 {
		idx := m.cmdMenuIdx
		if idx < 0 || idx >= len(matches) {
			idx = 0
		}
		m.input.SetValue(matches[idx].name + " ")
		m.input.CursorEnd()
	}
	m.closeMenu()
}

// browseHistory moves through submitted inputs; step -1 is older. Leaving
// the newest entry restores the draft that was being typed.
func (m *model) browseHistory(step int) bool {
	if len(m.history) == 0 || (step > 0 && m.historyIdx == -1) {
		return false
	}

	switch {
	case m.historyIdx == -1:
		m.historySaved = m.input.Value()
		m.historyIdx = len(m.history) - 1
	default:
		m.historyIdx = max(m.historyIdx+step, 0)
	}

	if m.historyIdx >= len(m.history) {
		m.historyIdx = -1
		m.input.SetValue(m.historySaved)
		m.historySaved = ""
	} else {
		m.input.SetValue(m.history[m.historyIdx])
	}
	m.input.CursorEnd()
	return true
}

const maxHistory = 1000

func (m model) submit() (tea.Model, tea.Cmd) {
	value := strings.TrimSpace(m.input.Value())
	if value == "" {
		return m, nil
	}

	if n := len(m.history); n == 0 || m.history[n-1] != value {
		m.history = append(m.history, value)
		if len(m.history) > maxHistory {
			m.history = m.history[len(m.history)-maxHistory:]
		}
	}
	m.historyIdx = -1
	m.historySaved = ""

	m.input.SetValue("")
	m.closeMenu()

	return m.dispatchInput(value)
}

// ─── Generation ─────────────────────────────────────────────────────────────

func (m model) waitForRender() (model, tea.Cmd) {
	if m.waiting {
		return m, nil
	}
	m.waiting = true
	return m, waitForRender(m.feed)
}

func (m model) handleRender(rs stream.RenderState) (tea.Model, tea.Cmd) {
	if m.session == nil || rs.SessionID != m.session.ID {
		// Left over from a previous session.
		if m.mode == modeGenerating {
			return m.waitForRender()
		}
		return m, nil
	}
	if rs.Seq > m.live.Seq {
		m.live = rs
	}
	if !m.live.State.Terminal() {
		return m.waitForRender()
	}
	if m.mode != modeGenerating {
		// Already acknowledged (cancelled from the keyboard).
		return m, nil
	}
	return m.finishGeneration()
}

func (m model) finishGeneration() (tea.Model, tea.Cmd) {
	m.mode = modeIdle
	rs := m.live

	var cmds []tea.Cmd
	switch rs.State {
	case stream.Completed:
		cmds = append(cmds,
			tea.Println(renderResult(m.renderer, rs.Sections)),
			tea.Println(""),
			tea.Println(successMsgStyle.Render("  ✓ Done")),
		)
		if rs.PromptID != "" {
			cmds = append(cmds, tea.Println(dimStyle.Render("    /favorite to save · /copy to copy")))
		}
		cmds = append(cmds, tea.Println(""))
	case stream.ErroredInBand:
		cmds = append(cmds,
			tea.Println(renderResult(m.renderer, rs.Sections)),
			tea.Println(""),
			tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Generation stopped by an error: %s", rs.Err))),
			tea.Println(""),
		)
	case stream.ErroredBeforeSend:
		cmds = append(cmds, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Generation failed: %s", rs.Err))))
	}

	if rs.State == stream.Completed || rs.State == stream.ErroredInBand {
		m.lastText = rs.Text
		if rs.PromptID != "" {
			m.lastPromptID = rs.PromptID
			m.rememberPromptID(rs.PromptID)
		}
	}
	return m, tea.Sequence(cmds...)
}

func (m *model) rememberPromptID(id string) {
	if m.cfg == nil || m.cfg.LastPromptID == id {
		return
	}
	m.cfg.LastPromptID = id
	if err := m.cfg.Save(); err != nil {
		logger.Warnf("tui: saving last prompt id: %v", err)
	}
}

// stopGeneration cancels the active session. Whatever was typed so far stays
// on screen; queued characters are discarded.
func (m model) stopGeneration() (tea.Model, tea.Cmd) {
	m.controller.Cancel()
	m.mode = modeIdle
	if m.session != nil {
		m.live = m.session.Snapshot()
	}

	var cmds []tea.Cmd
	if len(m.live.Sections) > 0 {
		cmds = append(cmds, tea.Println(renderLive(m.live.Sections, false)))
	}
	cmds = append(cmds, tea.Println(warnMsgStyle.Render("  ! Generation stopped")))
	if m.live.Text != "" {
		m.lastText = m.live.Text
	}
	return m, tea.Sequence(cmds...)
}

// ─── View ───────────────────────────────────────────────────────────────────
//
// Inline mode: finished output is printed above via tea.Println. The view
// holds the live typewriter output while generating, then the prompt.

func (m model) View() string {
	if !m.ready {
		return ""
	}

	var s strings.Builder

	if m.mode == modeGenerating {
		if live := renderLive(m.live.Sections, m.live.CursorVisible); live != "" {
			s.WriteString(live)
			s.WriteString("\n\n")
		}
		status := "Connecting..."
		if m.live.State == stream.Forwarding {
			status = "Writing..."
		}
		if !m.live.GenerationActive {
			status = "Finishing..."
		}
		s.WriteString(m.spinner.View() + " " + statusStyle.Render(status))
	} else {
		s.WriteString(m.input.View())
	}
	s.WriteString("\n")

	sepWidth := min(m.width, 80)
	if sepWidth < 20 {
		sepWidth = 20
	}
	s.WriteString(separatorStyle.Render(strings.Repeat("─", sepWidth)))
	s.WriteString("\n")

	s.WriteString(m.renderHints())

	return s.String()
}

// ─── Hint bar ───────────────────────────────────────────────────────────────

func (m model) renderHints() string {
	if m.mode == modeGenerating {
		return hintBarStyle.Render("  Esc stop")
	}

	if m.cmdMenuOpen {
		matches := matchCommands(m.input.Value())
		if len(matches) > 0 {
			return m.renderCommandMenu(matches)
		}
	}

	return hintBarStyle.Render("  ? for help")
}

// renderCommandMenu renders a vertical list of matching commands.
func (m model) renderCommandMenu(matches []slashCmd) string {
	maxLen := 0
	for _, c := range matches {
		if len(c.name) > maxLen {
			maxLen = len(c.name)
		}
	}

	var lines []string
	for i, c := range matches {
		padded := c.name + strings.Repeat(" ", maxLen-len(c.name))

		var line string
		if i == m.cmdMenuIdx {
			line = "  " + cmdSelectedNameStyle.Render(padded) + "  " + cmdSelectedDescStyle.Render(c.desc)
		} else {
			line = "  " + cmdNameStyle.Render(padded) + "  " + cmdDescStyle.Render(c.desc)
		}
		lines = append(lines, line)
	}

	lines = append(lines, hintBarStyle.Render("  ↑↓ navigate  Tab/Enter select"))

	return strings.Join(lines, "\n")
}

// matchCommands returns all slash commands matching a prefix.
func matchCommands(prefix string) []slashCmd {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "/" {
		return slashCommands
	}
	var matches []slashCmd
	for _, c := range slashCommands {
		if strings.HasPrefix(c.name, prefix) {
			matches = append(matches, c)
		}
	}
	return matches
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func serverStr(cfg *config.Config) string {
	if cfg == nil {
		return ""
	}
	return cfg.Server
}

func openidStr(cfg *config.Config) string {
	if cfg == nil {
		return ""
	}
	return cfg.OpenID
}

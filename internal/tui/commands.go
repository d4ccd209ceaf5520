package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"preface-cli/internal/api"
	"preface-cli/internal/config"
	"preface-cli/internal/service"
	"preface-cli/internal/stream"
)

// Replaced in tests.
var copyToClipboard = clipboard.WriteAll

// ─── Input dispatcher ───────────────────────────────────────────────────────

func (m model) dispatchInput(input string) (tea.Model, tea.Cmd) {
	if input == "?" {
		return m.cmdHelp()
	}
	if strings.HasPrefix(input, "/") {
		return m.dispatchCommand(input)
	}
	// Anything else is a prompt.
	return m.cmdGenerate(input)
}

func (m model) dispatchCommand(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return m, nil
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "/help", "/h":
		return m.cmdHelp()
	case "/config":
		return m.cmdConfig()
	case "/set":
		return m.cmdSet(args)
	case "/favorite", "/fav":
		return m.cmdFavorite(api.FavoriteAdd, args)
	case "/unfavorite", "/unfav":
		return m.cmdFavorite(api.FavoriteRemove, args)
	case "/favorites":
		return m.cmdRecords(recordsFavorites, args)
	case "/history":
		return m.cmdRecords(recordsHistory, args)
	case "/copy":
		return m.cmdCopy()
	case "/clear":
		return m.cmdClear()
	case "/quit", "/exit", "/q":
		return m, tea.Quit
	default:
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Unknown command: %s (type /help)", cmd)))
	}
}

// ─── /help ──────────────────────────────────────────────────────────────────

func (m model) cmdHelp() (tea.Model, tea.Cmd) {
	pad := func(s string, w int) string {
		for len(s) < w {
			s += " "
		}
		return s
	}

	lines := []tea.Cmd{
		tea.Println(""),
		tea.Println(dimStyle.Render("  Shortcuts:")),
		tea.Println(""),
		tea.Println("  " + pad(hintKeyStyle.Render("/set server <url>"), 30) + dimStyle.Render("Set the Preface server")),
		tea.Println("  " + pad(hintKeyStyle.Render("/set openid <id>"), 30) + dimStyle.Render("Set your user id")),
		tea.Println("  " + pad(hintKeyStyle.Render("/set speed <ms>"), 30) + dimStyle.Render("Set the typing delay per character")),
		tea.Println("  " + pad(hintKeyStyle.Render("/history [page]"), 30) + dimStyle.Render("List past prompts")),
		tea.Println("  " + pad(hintKeyStyle.Render("/favorites [page]"), 30) + dimStyle.Render("List favorited prompts")),
		tea.Println("  " + pad(hintKeyStyle.Render("/favorite [id]"), 30) + dimStyle.Render("Favorite a prompt (default: last result)")),
		tea.Println("  " + pad(hintKeyStyle.Render("/unfavorite [id]"), 30) + dimStyle.Render("Remove a prompt from favorites")),
		tea.Println("  " + pad(hintKeyStyle.Render("/copy"), 30) + dimStyle.Render("Copy the last result")),
		tea.Println("  " + pad(hintKeyStyle.Render("/config"), 30) + dimStyle.Render("Show current configuration")),
		tea.Println("  " + pad(hintKeyStyle.Render("/clear"), 30) + dimStyle.Render("Clear the screen")),
		tea.Println("  " + pad(hintKeyStyle.Render("/quit"), 30) + dimStyle.Render("Exit Preface")),
		tea.Println(""),
		tea.Println(dimStyle.Render("  Or just describe what to write. Esc stops a running generation.")),
		tea.Println(""),
	}
	return m, tea.Sequence(lines...)
}

// ─── /config ────────────────────────────────────────────────────────────────

func (m model) cmdConfig() (tea.Model, tea.Cmd) {
	if m.cfg == nil {
		return m, tea.Println(warnMsgStyle.Render("  ! No configuration found. Run /set server <url> first."))
	}

	val := func(s string) string {
		if s == "" {
			return dimStyle.Render("(not set)")
		}
		return s
	}

	return m, tea.Sequence(
		tea.Println(""),
		tea.Println(dimStyle.Render("  Configuration:")),
		tea.Println(fmt.Sprintf("    Profile:      %s", config.ProfileName(m.profile))),
		tea.Println(fmt.Sprintf("    Server:       %s", val(m.cfg.Server))),
		tea.Println(fmt.Sprintf("    OpenID:       %s", val(m.cfg.OpenID))),
		tea.Println(fmt.Sprintf("    Typing speed: %s", m.cfg.TypingPeriod())),
		tea.Println(fmt.Sprintf("    Last prompt:  %s", val(m.cfg.LastPromptID))),
		tea.Println(""),
	)
}

// ─── /set ───────────────────────────────────────────────────────────────────

func (m model) cmdSet(args []string) (tea.Model, tea.Cmd) {
	if len(args) < 2 {
		return m, tea.Sequence(
			tea.Println(""),
			tea.Println(dimStyle.Render("  Usage: /set server <url> | openid <id> | speed <ms>")),
			tea.Println(""),
		)
	}

	key := strings.ToLower(args[0])
	value := args[1]
	if m.cfg == nil {
		m.cfg = &config.Config{Profile: m.profile}
	}

	switch key {
	case "server":
		m.cfg.Server = strings.TrimRight(value, "/")
	case "openid":
		m.cfg.OpenID = value
	case "speed":
		ms, err := strconv.Atoi(value)
		if err != nil || ms <= 0 {
			return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Invalid speed %q (milliseconds per character)", value)))
		}
		m.cfg.TypingSpeedMS = ms
	default:
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Unknown key: %s (valid: server, openid, speed)", key)))
	}

	if err := m.cfg.Save(); err != nil {
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Failed to save config: %v", err)))
	}
	m.rebuildClient()
	return m, tea.Println(successMsgStyle.Render(fmt.Sprintf("  ✓ %s set to: %s", key, value)))
}

// ─── /favorite, /unfavorite ─────────────────────────────────────────────────

type favoriteResultMsg struct {
	action   string
	promptID string
	err      error
}

func (m model) cmdFavorite(action string, args []string) (tea.Model, tea.Cmd) {
	if err := m.requireReady(); err != nil {
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ %v", err)))
	}

	promptID := m.lastPromptID
	if len(args) > 0 {
		promptID = args[0]
	}
	if promptID == "" {
		return m, tea.Println(warnMsgStyle.Render(fmt.Sprintf("  ! Usage: /%s <prompt-id> (no finished generation yet)", favoriteCommand(action))))
	}

	client := m.client
	openid := m.cfg.OpenID
	return m, func() tea.Msg {
		err := client.SetFavorite(openid, promptID, action)
		return favoriteResultMsg{action: action, promptID: promptID, err: err}
	}
}

func (m model) handleFavoriteResult(msg favoriteResultMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ %s failed: %v", favoriteCommand(msg.action), msg.err)))
	}
	if msg.action == api.FavoriteRemove {
		return m, tea.Println(successMsgStyle.Render(fmt.Sprintf("  ✓ Removed %s from favorites", msg.promptID)))
	}
	return m, tea.Println(successMsgStyle.Render(fmt.Sprintf("  ✓ Added %s to favorites", msg.promptID)))
}

func favoriteCommand(action string) string {
	if action == api.FavoriteRemove {
		return "unfavorite"
	}
	return "favorite"
}

// ─── /history, /favorites ───────────────────────────────────────────────────

type recordsKind int

const (
	recordsHistory recordsKind = iota
	recordsFavorites
)

func (k recordsKind) title() string {
	if k == recordsFavorites {
		return "Favorites"
	}
	return "History"
}

type recordsLoadedMsg struct {
	kind recordsKind
	page int
	list *api.RecordList
	err  error
}

func (m model) cmdRecords(kind recordsKind, args []string) (tea.Model, tea.Cmd) {
	if err := m.requireReady(); err != nil {
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ %v", err)))
	}

	page := 1
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Invalid page %q", args[0])))
		}
		page = n
	}

	client := m.client
	openid := m.cfg.OpenID
	return m, tea.Sequence(
		tea.Println(statusStyle.Render(fmt.Sprintf("  ⟳ Loading %s...", strings.ToLower(kind.title())))),
		func() tea.Msg {
			var (
				list *api.RecordList
				err  error
			)
			if kind == recordsFavorites {
				list, err = client.Favorites(openid, page)
			} else {
				list, err = client.History(openid, page)
			}
			return recordsLoadedMsg{kind: kind, page: page, list: list, err: err}
		},
	)
}

func (m model) handleRecordsLoaded(msg recordsLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Failed to load %s: %v", strings.ToLower(msg.kind.title()), msg.err)))
	}

	rows := service.FormatRecords(msg.list, msg.kind == recordsFavorites)
	if len(rows) == 0 {
		return m, tea.Println(warnMsgStyle.Render(fmt.Sprintf("  ! No %s on page %d.", strings.ToLower(msg.kind.title()), msg.page)))
	}

	var cmds []tea.Cmd
	for _, line := range renderRecords(msg.kind.title(), msg.page, rows) {
		cmds = append(cmds, tea.Println(line))
	}
	return m, tea.Sequence(cmds...)
}

// ─── /copy ──────────────────────────────────────────────────────────────────

func (m model) cmdCopy() (tea.Model, tea.Cmd) {
	if m.lastText == "" {
		return m, tea.Println(warnMsgStyle.Render("  ! No content to copy"))
	}
	if err := copyToClipboard(m.lastText); err != nil {
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Copy failed: %v", err)))
	}
	return m, tea.Println(successMsgStyle.Render("  ✓ Copied to clipboard"))
}

// ─── /clear ─────────────────────────────────────────────────────────────────

func (m model) cmdClear() (tea.Model, tea.Cmd) {
	return m, tea.ClearScreen
}

// ─── Generation ─────────────────────────────────────────────────────────────

func (m model) cmdGenerate(prompt string) (tea.Model, tea.Cmd) {
	if err := m.requireReady(); err != nil {
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ %v", err)))
	}

	s, err := m.controller.Start(context.Background(), m.client, m.cfg.OpenID, prompt)
	switch {
	case errors.Is(err, stream.ErrSessionActive):
		return m, tea.Println(warnMsgStyle.Render("  ! A generation is already running. Press Esc to stop it."))
	case errors.Is(err, stream.ErrEmptyContent):
		return m, nil
	case err != nil:
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ %v", err)))
	}

	m.session = s
	m.live = s.Snapshot()
	m.mode = modeGenerating

	var wait tea.Cmd
	m, wait = m.waitForRender()
	return m, tea.Batch(
		tea.Println(userPromptStyle.Render("❯ "+prompt)),
		wait,
		m.spinner.Tick,
	)
}

func (m model) requireReady() error {
	if m.client == nil || m.cfg == nil {
		return errors.New("no server set, run /set server <url> first")
	}
	if m.cfg.OpenID == "" {
		return errors.New("no openid set, run /set openid <id> first")
	}
	return nil
}

package tui

import "github.com/charmbracelet/lipgloss"

// ─── Palette ────────────────────────────────────────────────────────────────
//
// Ink blue accent on a paper-toned base. Adaptive colors keep body text
// readable on light terminals too.

var (
	inkAccent = lipgloss.Color("#5B7FDB")
	inkMuted  = lipgloss.AdaptiveColor{Light: "245", Dark: "244"}
	inkFaint  = lipgloss.AdaptiveColor{Light: "252", Dark: "237"}
	inkBody   = lipgloss.AdaptiveColor{Light: "235", Dark: "253"}
	inkTitle  = lipgloss.Color("#C9A227") // gilt section headings
	inkOK     = lipgloss.Color("71")
	inkWarn   = lipgloss.Color("214")
	inkFail   = lipgloss.Color("167")
)

var (
	accent = lipgloss.NewStyle().Foreground(inkAccent)
	muted  = lipgloss.NewStyle().Foreground(inkMuted)
)

// ─── Banner ─────────────────────────────────────────────────────────────────

var (
	logoQuillStyle   = accent
	logoTitleStyle   = lipgloss.NewStyle().Foreground(inkBody).Bold(true)
	versionStyle     = muted
	welcomeHintStyle = muted.Italic(true)
	welcomeInfoLabel = muted
)

// ─── Prompt line, hints, command menu ───────────────────────────────────────

var (
	promptSymbol    = accent.Bold(true)
	userPromptStyle = accent.Bold(true)
	hintBarStyle    = muted
	hintKeyStyle    = muted.Bold(true)

	cmdNameStyle         = accent
	cmdDescStyle         = muted
	cmdSelectedNameStyle = accent.Bold(true).Reverse(true)
	cmdSelectedDescStyle = lipgloss.NewStyle().Foreground(inkBody).Bold(true)
)

// ─── Generated text ─────────────────────────────────────────────────────────

var (
	sectionTitleStyle = lipgloss.NewStyle().Foreground(inkTitle).Bold(true)
	sectionLineStyle  = lipgloss.NewStyle().Foreground(inkBody)
	cursorStyle       = accent.Blink(true)
)

// ─── Notices ────────────────────────────────────────────────────────────────

var (
	successMsgStyle = lipgloss.NewStyle().Foreground(inkOK)
	errorMsgStyle   = lipgloss.NewStyle().Foreground(inkFail)
	warnMsgStyle    = lipgloss.NewStyle().Foreground(inkWarn)
	statusStyle     = lipgloss.NewStyle().Foreground(inkWarn).Italic(true)
	favStyle        = lipgloss.NewStyle().Foreground(inkTitle)
	dimStyle        = muted
	separatorStyle  = lipgloss.NewStyle().Foreground(inkFaint)
)

package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"preface-cli/internal/stream"
)

// ─── Messages sent from the session to Bubble Tea ───────────────────────────

type renderMsg struct {
	state stream.RenderState
}

// ─── Render feed ────────────────────────────────────────────────────────────
//
// The session publishes a snapshot on every typed character, from timer
// goroutines. The feed keeps only the newest snapshot and wakes one reader,
// so a slow redraw coalesces updates instead of queueing them.

type renderFeed struct {
	mu     sync.Mutex
	latest stream.RenderState
	signal chan struct{}
}

func newRenderFeed() *renderFeed {
	return &renderFeed{signal: make(chan struct{}, 1)}
}

// push is the session's OnUpdate hook.
func (f *renderFeed) push(rs stream.RenderState) {
	f.mu.Lock()
	if rs.SessionID == f.latest.SessionID && rs.Seq <= f.latest.Seq {
		f.mu.Unlock()
		return
	}
	f.latest = rs
	f.mu.Unlock()

	select {
	case f.signal <- struct{}{}:
	default:
	}
}

func (f *renderFeed) current() stream.RenderState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest
}

// waitForRender blocks until the next snapshot is available.
func waitForRender(f *renderFeed) tea.Cmd {
	return func() tea.Msg {
		<-f.signal
		return renderMsg{state: f.current()}
	}
}

package stream

import (
	"context"
	"strings"
	"sync"
)

// Source opens the chunked generation stream. onChunk is called sequentially
// with each chunk as it arrives; the slice may be reused after it returns.
type Source interface {
	GenerateStream(ctx context.Context, openid, content string, onChunk func([]byte)) error
}

// Controller allows one active session per user context and routes
// cancellation to it.
type Controller struct {
	opts Options

	mu     sync.Mutex
	active *Session
}

// NewController returns a controller whose sessions use opts.
func NewController(opts Options) *Controller {
	return &Controller{opts: opts}
}

// Start validates the request, creates a session and begins reading from src
// in the background. Overlapping starts are rejected with ErrSessionActive.
func (c *Controller) Start(ctx context.Context, src Source, openid, content string) (*Session, error) {
	if strings.TrimSpace(openid) == "" {
		return nil, ErrMissingOpenID
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil && !c.active.State().Terminal() {
		return nil, ErrSessionActive
	}

	s := NewSession(c.opts)
	readCtx, cancel := context.WithCancel(ctx)
	s.bindCancel(cancel)
	c.active = s

	go func() {
		defer cancel()
		err := src.GenerateStream(readCtx, openid, content, s.Feed)
		s.Finish(err)
	}()

	return s, nil
}

// Cancel stops the active session. It reports whether anything was running.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	s := c.active
	c.mu.Unlock()
	if s == nil {
		return false
	}
	return s.Cancel()
}

// Active returns the most recent session, which may already be terminal.
func (c *Controller) Active() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

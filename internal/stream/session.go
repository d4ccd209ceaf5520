package stream

import (
	"context"
	"strings"
	"sync"
	"time"

	"preface-cli/internal/logger"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	DefaultTypingPeriod = 23 * time.Millisecond
	DefaultIdlePeriod   = 50 * time.Millisecond
)

// RenderState is a snapshot of what the user should currently see.
type RenderState struct {
	SessionID string
	// Seq increases with every published snapshot. Consumers that receive
	// snapshots out of order keep the highest.
	Seq   uint64
	State State

	Text             string
	Sections         []Section
	CursorVisible    bool
	GenerationActive bool

	PromptID string
	Err      string
}

type Options struct {
	TypingPeriod time.Duration
	IdlePeriod   time.Duration
	Clock        Clock
	// OnUpdate receives every published snapshot. It runs outside the
	// session lock, possibly on a timer goroutine.
	OnUpdate func(RenderState)
}

func (o Options) withDefaults() Options {
	if o.TypingPeriod <= 0 {
		o.TypingPeriod = DefaultTypingPeriod
	}
	if o.IdlePeriod <= 0 {
		o.IdlePeriod = DefaultIdlePeriod
	}
	if o.Clock == nil {
		o.Clock = SystemClock
	}
	return o
}

// Session owns one generation: the raw buffer, the character queue and the
// render state, all behind one mutex. The typewriter is a single pending
// timer; bumping token invalidates it.
type Session struct {
	ID        string
	StartedAt time.Time

	opts Options
	log  *logrus.Entry

	mu         sync.Mutex
	state      State
	lastActive time.Time
	received   bool
	ended      bool
	errMsg     string
	reasm      *Reassembler
	disp       Dispatcher
	queue      CharQueue
	text       strings.Builder
	render     RenderState
	timer      Timer
	token      uint64
	stopRead   context.CancelFunc
	done       chan struct{}
}

// NewSession creates a session in the Connecting state.
func NewSession(opts Options) *Session {
	opts = opts.withDefaults()
	now := opts.Clock.Now()
	s := &Session{
		ID:         uuid.New().String(),
		StartedAt:  now,
		opts:       opts,
		state:      Connecting,
		lastActive: now,
		reasm:      NewReassembler(),
		done:       make(chan struct{}),
	}
	s.log = logger.WithFields(logrus.Fields{"session": s.ID})
	s.render = RenderState{
		SessionID:        s.ID,
		State:            Connecting,
		Sections:         []Section{},
		CursorVisible:    true,
		GenerationActive: true,
	}
	return s
}

func (s *Session) bindCancel(cancel context.CancelFunc) {
	s.mu.Lock()
	s.stopRead = cancel
	s.mu.Unlock()
}

// Feed hands one transport chunk to the reassembler and queues whatever
// content it yields. Chunks arriving after the stream ended are ignored.
func (s *Session) Feed(chunk []byte) {
	s.mu.Lock()
	if s.state.Terminal() || s.ended {
		s.mu.Unlock()
		return
	}
	s.lastActive = s.opts.Clock.Now()
	s.received = true
	if s.state == Connecting {
		s.setState(Forwarding)
	}

	dropped := s.reasm.Dropped()
	for _, f := range s.reasm.Feed(chunk) {
		events := s.disp.Dispatch(f)
		if len(events) == 0 {
			s.log.Debug("dropping frame with unrecognized shape")
		}
		for _, ev := range events {
			s.apply(ev)
		}
	}
	if n := s.reasm.Dropped() - dropped; n > 0 {
		s.log.WithField("spans", n).Debug("skipped malformed frame")
	}

	snap := s.publish()
	s.mu.Unlock()
	s.notify(snap)
}

func (s *Session) apply(ev DeltaEvent) {
	if s.ended {
		return
	}
	switch ev.Kind {
	case EventContent:
		s.queue.Push(ev.Text)
		if s.timer == nil {
			s.render.CursorVisible = true
			s.schedule(0)
		}
	case EventEnd:
		s.endInput("")
	case EventError:
		if s.stopRead != nil {
			s.stopRead()
		}
		s.endInput(ev.Text)
	}
}

// endInput marks the generation inactive. The queue keeps draining; the
// session settles once it is empty.
func (s *Session) endInput(errMsg string) {
	s.ended = true
	s.errMsg = errMsg
	s.render.GenerationActive = false
	if s.timer == nil {
		s.settle()
	}
}

func (s *Session) schedule(d time.Duration) {
	token := s.token
	s.timer = s.opts.Clock.AfterFunc(d, func() { s.tick(token) })
}

func (s *Session) tick(token uint64) {
	s.mu.Lock()
	if token != s.token || s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	s.timer = nil

	if r, ok := s.queue.Pop(); ok {
		s.text.WriteRune(r)
		s.render.Text = s.text.String()
		s.render.Sections = Format(s.render.Text)
		s.schedule(s.opts.TypingPeriod)
	} else if s.render.GenerationActive {
		s.schedule(s.opts.IdlePeriod)
	} else {
		s.settle()
	}

	snap := s.publish()
	s.mu.Unlock()
	s.notify(snap)
}

// settle finishes a drained session. A pending in-band error is appended to
// the text as its own block.
func (s *Session) settle() {
	s.stopTimer()
	s.render.CursorVisible = false
	s.render.GenerationActive = false

	if s.errMsg != "" {
		if s.text.Len() > 0 {
			s.text.WriteString("\n\n")
		}
		s.text.WriteString("Error: " + s.errMsg)
		s.render.Text = s.text.String()
		s.render.Sections = Format(s.render.Text)
		s.render.Err = s.errMsg
		s.setState(ErroredInBand)
	} else {
		s.setState(Completed)
	}
	close(s.done)
}

func (s *Session) stopTimer() {
	s.token++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Finish is called once the transport read returns. A nil error without a
// prior end marker is an abnormal termination. An error before any byte
// arrived fails the session without rendering anything.
func (s *Session) Finish(err error) {
	s.mu.Lock()
	if s.state.Terminal() || s.ended {
		s.mu.Unlock()
		return
	}

	switch {
	case err == nil:
		s.endInput(ErrNoEndMarker.Error())
	case !s.received:
		s.ended = true
		s.stopTimer()
		s.queue.Clear()
		s.render.CursorVisible = false
		s.render.GenerationActive = false
		s.render.Err = err.Error()
		s.setState(ErroredBeforeSend)
		close(s.done)
	default:
		s.endInput(err.Error())
	}

	snap := s.publish()
	s.mu.Unlock()
	s.notify(snap)
}

// Cancel stops the network read, discards queued characters and hides the
// cursor before returning. It reports false if the session already ended.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return false
	}

	if s.stopRead != nil {
		s.stopRead()
	}
	s.queue.Clear()
	s.stopTimer()
	s.ended = true
	s.render.GenerationActive = false
	s.render.CursorVisible = false
	s.setState(Cancelled)
	close(s.done)

	snap := s.publish()
	s.mu.Unlock()
	s.notify(snap)
	return true
}

func (s *Session) setState(next State) {
	if next == s.state {
		return
	}
	entry := s.log.WithFields(logrus.Fields{"from": s.state, "to": next})
	if next.Terminal() {
		entry = entry.WithFields(logrus.Fields{
			"chars":    s.text.Len(),
			"duration": s.opts.Clock.Now().Sub(s.StartedAt).String(),
		})
		entry.Info("session finished")
	} else {
		entry.Debug("session state")
	}
	s.state = next
}

func (s *Session) publish() RenderState {
	s.render.Seq++
	s.render.State = s.state
	s.render.PromptID = s.disp.PromptID()
	return s.render
}

func (s *Session) notify(snap RenderState) {
	if s.opts.OnUpdate != nil {
		s.opts.OnUpdate(snap)
	}
}

func (s *Session) Snapshot() RenderState {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.render
	snap.State = s.state
	snap.PromptID = s.disp.PromptID()
	return snap
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) LastActivityAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// PromptID is the id latched from the first frame that carried one.
func (s *Session) PromptID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disp.PromptID()
}

// Done is closed when the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

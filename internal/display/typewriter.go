package display

import (
	"fmt"
	"io"
	"sync"

	"preface-cli/internal/stream"
)

// Typewriter prints a session's text to a plain writer as it is typed.
// Accumulated text only ever grows, so each update prints the new suffix.
// Snapshots may arrive out of order from different goroutines; older ones
// are ignored by sequence number.
type Typewriter struct {
	out io.Writer

	mu      sync.Mutex
	printed int
	lastSeq uint64
}

func NewTypewriter(out io.Writer) *Typewriter {
	return &Typewriter{out: out}
}

// Update is suitable as a stream.Options OnUpdate hook.
func (t *Typewriter) Update(rs stream.RenderState) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if rs.Seq <= t.lastSeq {
		return
	}
	t.lastSeq = rs.Seq

	if len(rs.Text) > t.printed {
		fmt.Fprint(t.out, rs.Text[t.printed:])
		t.printed = len(rs.Text)
	}
}

// Printed is the accumulated text length written so far, in bytes.
func (t *Typewriter) Printed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.printed
}

package stream

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Reassembler pulls complete JSON objects out of a byte stream whose chunk
// boundaries have nothing to do with frame boundaries. Scan state survives
// between Feed calls so each byte is examined once.
//
// Braces inside JSON strings are not counted. Bytes outside any object are
// discarded. A second, quote-blind brace count catches spans whose stray
// quote would otherwise keep the string-aware walk open forever.
type Reassembler struct {
	buf   []byte
	pos   int // next byte to scan
	start int // offset of the open '{', or -1
	depth int

	inString bool
	escaped  bool

	// loose counts every brace, quoted or not. looseEnd is where it first
	// returned to zero for the current span, or -1.
	loose    int
	looseEnd int

	dropped int
}

// NewReassembler returns an empty scanner.
func NewReassembler() *Reassembler {
	return &Reassembler{start: -1, looseEnd: -1}
}

// Feed appends chunk and returns every frame completed by it, in wire order.
// Spans that balance but do not parse are skipped.
func (r *Reassembler) Feed(chunk []byte) []Frame {
	r.buf = append(r.buf, chunk...)

	var frames []Frame
	for ; r.pos < len(r.buf); r.pos++ {
		c := r.buf[r.pos]

		if r.start < 0 {
			if c == '{' {
				r.start = r.pos
				r.depth = 1
				r.loose = 1
			}
			continue
		}

		switch c {
		case '{':
			r.loose++
		case '}':
			r.loose--
			if r.loose == 0 && r.looseEnd < 0 {
				r.looseEnd = r.pos
			}
		}

		if r.inString {
			switch {
			case r.escaped:
				r.escaped = false
			case c == '\\':
				r.escaped = true
			case c == '"':
				r.inString = false
			}
		} else {
			switch c {
			case '"':
				r.inString = true
			case '{':
				r.depth++
			case '}':
				r.depth--
				if r.depth == 0 {
					if f, err := ParseFrame(r.buf[r.start : r.pos+1]); err == nil {
						frames = append(frames, f)
					} else {
						r.dropped++
					}
					r.closeSpan()
					continue
				}
			}
		}

		// The quote-blind count has closed but the string-aware walk has
		// not. If what was read so far is already invalid JSON the span is
		// garbage: drop it up to the first loose close and rescan from there.
		if c == '}' && r.loose == 0 && malformedPrefix(r.buf[r.start:r.pos+1]) {
			r.dropped++
			r.pos = r.looseEnd
			r.closeSpan()
		}
	}

	r.compact()
	return frames
}

func (r *Reassembler) closeSpan() {
	r.start = -1
	r.depth = 0
	r.loose = 0
	r.looseEnd = -1
	r.inString = false
	r.escaped = false
}

// malformedPrefix reports whether span is a syntax error rather than merely
// an incomplete object.
func malformedPrefix(span []byte) bool {
	dec := json.NewDecoder(bytes.NewReader(span))
	for {
		_, err := dec.Token()
		if err == nil {
			continue
		}
		var syntaxErr *json.SyntaxError
		return errors.As(err, &syntaxErr)
	}
}

// compact releases consumed bytes. Only an unfinished frame is retained.
func (r *Reassembler) compact() {
	if r.start < 0 {
		r.buf = r.buf[:0]
		r.pos = 0
		return
	}
	if r.start == 0 {
		return
	}
	n := copy(r.buf, r.buf[r.start:])
	r.buf = r.buf[:n]
	r.pos -= r.start
	if r.looseEnd >= 0 {
		r.looseEnd -= r.start
	}
	r.start = 0
}

// Pending is the number of bytes held for a frame that has not closed yet.
func (r *Reassembler) Pending() int {
	return len(r.buf)
}

// Dropped counts balanced spans that failed to parse.
func (r *Reassembler) Dropped() int {
	return r.dropped
}

// Reset discards buffered bytes and scan state.
func (r *Reassembler) Reset() {
	*r = Reassembler{start: -1, looseEnd: -1}
}

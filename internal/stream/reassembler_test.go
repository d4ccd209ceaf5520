package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReassemblerSingleFrame(t *testing.T) {
	r := NewReassembler()
	frames := r.Feed([]byte(`{"content":"hi"}`))
	require.Len(t, frames, 1)
	assert.Equal(t, "hi", frames[0].Content)
	assert.Zero(t, r.Pending())
}

func TestReassemblerDrainsMultipleFrames(t *testing.T) {
	r := NewReassembler()
	frames := r.Feed([]byte(`{"content":"a"}{"content":"b"}  {"content":"c"}`))
	require.Len(t, frames, 3)
	assert.Equal(t, "a", frames[0].Content)
	assert.Equal(t, "b", frames[1].Content)
	assert.Equal(t, "c", frames[2].Content)
}

func TestReassemblerFrameAcrossFeeds(t *testing.T) {
	r := NewReassembler()
	assert.Empty(t, r.Feed([]byte(`{"choices":[{"del`)))
	assert.Positive(t, r.Pending())
	assert.Empty(t, r.Feed([]byte(`ta":{"content":"Hel`)))

	frames := r.Feed([]byte(`"}}]}{"content"`))
	require.Len(t, frames, 1)
	assert.Equal(t, "Hel", frames[0].Delta)
	assert.Equal(t, len(`{"content"`), r.Pending())
}

func TestReassemblerSkipsMalformedSpan(t *testing.T) {
	r := NewReassembler()
	frames := r.Feed([]byte(`{not json}{"choices":[{"delta":{"content":"ok"}}]}`))
	require.Len(t, frames, 1)
	assert.Equal(t, "ok", frames[0].Delta)
	assert.Equal(t, 1, r.Dropped())
}

func TestReassemblerDiscardsTextBetweenFrames(t *testing.T) {
	r := NewReassembler()
	frames := r.Feed([]byte("data: noise\n{\"content\":\"x\"}\ntrailing"))
	require.Len(t, frames, 1)
	assert.Equal(t, "x", frames[0].Content)
	assert.Zero(t, r.Pending())
}

func TestReassemblerBracesInsideStrings(t *testing.T) {
	r := NewReassembler()
	frames := r.Feed([]byte(`{"content":"use {name} and }{ and \"{\""}`))
	require.Len(t, frames, 1)
	assert.Equal(t, `use {name} and }{ and "{"`, frames[0].Content)
}

func TestReassemblerEscapeSplitAcrossFeeds(t *testing.T) {
	r := NewReassembler()
	assert.Empty(t, r.Feed([]byte(`{"content":"a\`)))
	frames := r.Feed([]byte(`"}"}`))
	require.Len(t, frames, 1)
	assert.Equal(t, `a"}`, frames[0].Content)
}

func TestReassemblerSplitInsideMultibyteRune(t *testing.T) {
	payload := []byte(`{"content":"héllo 世界"}`)
	for i := 1; i < len(payload); i++ {
		r := NewReassembler()
		var frames []Frame
		frames = append(frames, r.Feed(payload[:i])...)
		frames = append(frames, r.Feed(payload[i:])...)
		require.Len(t, frames, 1, "split at %d", i)
		assert.Equal(t, "héllo 世界", frames[0].Content, "split at %d", i)
	}
}

func TestReassemblerNonObjectSpan(t *testing.T) {
	r := NewReassembler()
	frames := r.Feed([]byte(`{}`))
	require.Len(t, frames, 1)
	assert.False(t, frames[0].HasChoices)

	r.Reset()
	assert.Empty(t, r.Feed([]byte(`[1,2,3]`)))
	assert.Zero(t, r.Pending())
}

func TestReassemblerRecoversFromStrayQuote(t *testing.T) {
	r := NewReassembler()
	frames := r.Feed([]byte(`{oops "}{"content":"x"}{"content":"y"}`))
	require.Len(t, frames, 2)
	assert.Equal(t, "x", frames[0].Content)
	assert.Equal(t, "y", frames[1].Content)
	assert.Equal(t, 1, r.Dropped())
	assert.Zero(t, r.Pending())

	frames = r.Feed([]byte(`{"choices":[{"delta":{"content":"z"},"finish_reason":"stop"}]}`))
	require.Len(t, frames, 1)
	assert.Equal(t, "z", frames[0].Delta)
	assert.Equal(t, "stop", frames[0].FinishReason)
}

func TestReassemblerStrayQuoteAcrossFeeds(t *testing.T) {
	r := NewReassembler()
	assert.Empty(t, r.Feed([]byte(`noise {bad "`)))
	frames := r.Feed([]byte(`}{"content":"ok"}`))
	require.Len(t, frames, 1)
	assert.Equal(t, "ok", frames[0].Content)
	assert.Equal(t, 1, r.Dropped())
	assert.Zero(t, r.Pending())
}

func TestReassemblerQuotedCloseBraceAcrossFeeds(t *testing.T) {
	r := NewReassembler()
	assert.Empty(t, r.Feed([]byte(`{"content":"a}`)))
	frames := r.Feed([]byte(`b"}`))
	require.Len(t, frames, 1)
	assert.Equal(t, "a}b", frames[0].Content)
	assert.Zero(t, r.Dropped())
}

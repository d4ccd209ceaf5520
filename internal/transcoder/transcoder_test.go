package transcoder

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"preface-cli/internal/stream"
)

// chunkReader returns one chunk per Read, then err (io.EOF by default).
type chunkReader struct {
	chunks [][]byte
	err    error
	closed bool
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks = r.chunks[1:]
	return n, nil
}

func (r *chunkReader) Close() error {
	r.closed = true
	return nil
}

type fakeUpstream struct {
	body    *chunkReader
	openErr error

	openid, content string
}

func (u *fakeUpstream) Open(ctx context.Context, openid, content string) (io.ReadCloser, error) {
	u.openid, u.content = openid, content
	if u.openErr != nil {
		return nil, u.openErr
	}
	return u.body, nil
}

func chunks(parts ...string) [][]byte {
	out := make([][]byte, len(parts))
	for i, p := range parts {
		out[i] = []byte(p)
	}
	return out
}

type recordingSink struct {
	bytes.Buffer
	flushes  int
	writeErr error
}

func (s *recordingSink) Write(p []byte) (int, error) {
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	return s.Buffer.Write(p)
}

func (s *recordingSink) Flush() { s.flushes++ }

func TestForwardCompleted(t *testing.T) {
	body := &chunkReader{chunks: chunks(`{"content":"Hel"}`, `{"content":"lo"}`)}
	up := &fakeUpstream{body: body}
	sink := &recordingSink{}

	state, err := New(up).Forward(context.Background(), Request{OpenID: "u1", Content: "hi"}, sink)
	require.NoError(t, err)
	assert.Equal(t, stream.Completed, state)
	assert.Equal(t, "u1", up.openid)
	assert.Equal(t, "hi", up.content)
	assert.True(t, body.closed)
	assert.Equal(t, 3, sink.flushes)

	want := `{"choices":[{"delta":{"content":"Hel"},"finish_reason":null}]}` +
		`{"choices":[{"delta":{"content":"lo"},"finish_reason":null}]}` +
		`{"choices":[{"finish_reason":"stop"}]}`
	assert.Equal(t, want, sink.String())
}

func TestForwardPartialChunksPassThrough(t *testing.T) {
	body := &chunkReader{chunks: chunks(`{"choices":[{"delta":{"con`, `tent":"Hi"}}]}`)}
	sink := &recordingSink{}

	state, err := New(&fakeUpstream{body: body}).Forward(context.Background(), Request{}, sink)
	require.NoError(t, err)
	assert.Equal(t, stream.Completed, state)
	assert.Equal(t, `{"choices":[{"delta":{"content":"Hi"}}]}{"choices":[{"finish_reason":"stop"}]}`, sink.String())
}

func TestForwardOpenFailure(t *testing.T) {
	sink := &recordingSink{}
	up := &fakeUpstream{openErr: errors.New("connection refused")}

	state, err := New(up).Forward(context.Background(), Request{}, sink)
	assert.Equal(t, stream.ErroredBeforeSend, state)
	assert.EqualError(t, err, "connection refused")
	assert.Zero(t, sink.Len())
}

func TestForwardReadFailureBeforeFirstByte(t *testing.T) {
	sink := &recordingSink{}
	body := &chunkReader{err: errors.New("reset")}

	state, err := New(&fakeUpstream{body: body}).Forward(context.Background(), Request{}, sink)
	assert.Equal(t, stream.ErroredBeforeSend, state)
	assert.Error(t, err)
	assert.Zero(t, sink.Len())
	assert.True(t, body.closed)
}

func TestForwardReadFailureMidStream(t *testing.T) {
	sink := &recordingSink{}
	body := &chunkReader{chunks: chunks(`{"content":"Hel"}`), err: errors.New("reset")}

	state, err := New(&fakeUpstream{body: body}).Forward(context.Background(), Request{}, sink)
	assert.Equal(t, stream.ErroredInBand, state)
	assert.Error(t, err)

	want := `{"choices":[{"delta":{"content":"Hel"},"finish_reason":null}]}` +
		`{"choices":[{"delta":{"content":"Error: reset"},"finish_reason":"stop"}]}`
	assert.Equal(t, want, sink.String())
}

func TestForwardClientGone(t *testing.T) {
	sink := &recordingSink{writeErr: errors.New("broken pipe")}
	body := &chunkReader{chunks: chunks(`{"content":"Hel"}`, `{"content":"lo"}`)}

	state, err := New(&fakeUpstream{body: body}).Forward(context.Background(), Request{}, sink)
	assert.Equal(t, stream.ErroredInBand, state)
	assert.ErrorContains(t, err, "broken pipe")
	assert.True(t, body.closed)
}

// The transcoder's output must always be readable by the client pipeline.
func TestForwardOutputReassembles(t *testing.T) {
	body := &chunkReader{chunks: chunks(
		`{"id":"p1","content":"Tone: "}`,
		`junk`,
		`{"msg":"formal"}`,
		`{"code":2,"msg":"quota exceeded"}`,
	)}
	sink := &recordingSink{}
	_, err := New(&fakeUpstream{body: body}).Forward(context.Background(), Request{}, sink)
	require.NoError(t, err)

	r := stream.NewReassembler()
	var d stream.Dispatcher
	var events []stream.DeltaEvent
	data := sink.Bytes()
	for i := 0; i < len(data); i += 7 {
		end := i + 7
		if end > len(data) {
			end = len(data)
		}
		for _, f := range r.Feed(data[i:end]) {
			events = append(events, d.Dispatch(f)...)
		}
	}

	assert.Equal(t, "p1", d.PromptID())
	assert.Equal(t, []stream.DeltaEvent{
		{Kind: stream.EventContent, Text: "Tone: "},
		{Kind: stream.EventContent, Text: "formal"},
		{Kind: stream.EventContent, Text: "Error: quota exceeded"},
		{Kind: stream.EventEnd},
		{Kind: stream.EventEnd},
	}, events)
}

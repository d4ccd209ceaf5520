package transcoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"preface-cli/internal/stream"
)

func TestNormalizeChunk(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "status error",
			in:   `{"code":2,"msg":"quota exceeded"}`,
			want: `{"choices":[{"delta":{"content":"Error: quota exceeded"},"finish_reason":"stop"}]}`,
		},
		{
			name: "status error without message",
			in:   `{"code":500}`,
			want: `{"choices":[{"delta":{"content":"Error: Unknown error"},"finish_reason":"stop"}]}`,
		},
		{
			name: "plain content",
			in:   `{"content":"Hi"}`,
			want: `{"choices":[{"delta":{"content":"Hi"},"finish_reason":null}]}`,
		},
		{
			name: "plain msg",
			in:   `{"msg":"Hi"}`,
			want: `{"choices":[{"delta":{"content":"Hi"},"finish_reason":null}]}`,
		},
		{
			name: "content wins over msg",
			in:   `{"content":"a","msg":"b"}`,
			want: `{"choices":[{"delta":{"content":"a"},"finish_reason":null}]}`,
		},
		{
			name: "zero code with content",
			in:   `{"code":0,"content":"ok"}`,
			want: `{"choices":[{"delta":{"content":"ok"},"finish_reason":null}]}`,
		},
		{
			name: "id is kept",
			in:   `{"id":"chatcmpl-9","content":"Hi"}`,
			want: `{"id":"chatcmpl-9","choices":[{"delta":{"content":"Hi"},"finish_reason":null}]}`,
		},
		{
			name: "surrounding whitespace",
			in:   " \n{\"content\":\"Hi\"}\n",
			want: `{"choices":[{"delta":{"content":"Hi"},"finish_reason":null}]}`,
		},
		{
			name: "html is not escaped",
			in:   `{"content":"<b>&</b>"}`,
			want: `{"choices":[{"delta":{"content":"<b>&</b>"},"finish_reason":null}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(NormalizeChunk([]byte(tt.in))))
		})
	}
}

func TestNormalizeChunkPassThrough(t *testing.T) {
	inputs := []string{
		`{"choices":[{"delta":{"content":"Hel"}}]}`,
		`{"content":"Hel`,
		`lo"}`,
		`{"content":"a"}{"content":"b"}`,
		`plain text`,
		`{not json}`,
		`{"content":""}`,
		`{"content":42}`,
		``,
	}
	for _, in := range inputs {
		assert.Equal(t, in, string(NormalizeChunk([]byte(in))), "input %q", in)
	}
}

func TestStopFrame(t *testing.T) {
	assert.Equal(t, `{"choices":[{"finish_reason":"stop"}]}`, string(StopFrame()))
}

func TestNormalizedFramesDispatch(t *testing.T) {
	var d stream.Dispatcher

	f, err := stream.ParseFrame(NormalizeChunk([]byte(`{"id":"p1","content":"Hi"}`)))
	require.NoError(t, err)
	assert.Equal(t, []stream.DeltaEvent{{Kind: stream.EventContent, Text: "Hi"}}, d.Dispatch(f))
	assert.Equal(t, "p1", d.PromptID())

	f, err = stream.ParseFrame(ErrorFrame("boom"))
	require.NoError(t, err)
	assert.Equal(t, []stream.DeltaEvent{
		{Kind: stream.EventContent, Text: "Error: boom"},
		{Kind: stream.EventEnd},
	}, d.Dispatch(f))

	f, err = stream.ParseFrame(StopFrame())
	require.NoError(t, err)
	assert.Equal(t, []stream.DeltaEvent{{Kind: stream.EventEnd}}, d.Dispatch(f))
}

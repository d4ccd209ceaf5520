package transcoder

import (
	"bytes"
	"encoding/json"

	"preface-cli/internal/stream"
)

type chatDelta struct {
	Content string `json:"content"`
}

type chatChoice struct {
	Delta        *chatDelta `json:"delta,omitempty"`
	FinishReason *string    `json:"finish_reason"`
}

// chatFrame is the one shape the client is guaranteed to understand.
type chatFrame struct {
	ID      string       `json:"id,omitempty"`
	Choices []chatChoice `json:"choices"`
}

func stop() *string {
	s := "stop"
	return &s
}

func encodeFrame(f chatFrame) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// chatFrame only holds strings, Encode cannot fail.
	_ = enc.Encode(f)
	return bytes.TrimRight(buf.Bytes(), "\n")
}

func deltaFrame(id, content string, finish *string) []byte {
	return encodeFrame(chatFrame{
		ID:      id,
		Choices: []chatChoice{{Delta: &chatDelta{Content: content}, FinishReason: finish}},
	})
}

// StopFrame terminates every successful stream.
func StopFrame() []byte {
	return encodeFrame(chatFrame{Choices: []chatChoice{{FinishReason: stop()}}})
}

// ErrorFrame is an in-band error that also ends the stream.
func ErrorFrame(msg string) []byte {
	return deltaFrame("", "Error: "+msg, stop())
}

// NormalizeChunk rewrites a chunk that is exactly one JSON object in the
// status or plain-content shape into a chat-delta frame. Anything else,
// including chat-delta frames and partial objects, is returned unchanged.
func NormalizeChunk(chunk []byte) []byte {
	trimmed := bytes.TrimSpace(chunk)
	if len(trimmed) < 2 || trimmed[0] != '{' || trimmed[len(trimmed)-1] != '}' {
		return chunk
	}
	f, err := stream.ParseFrame(trimmed)
	if err != nil {
		return chunk
	}

	if !f.CodeIsZero() {
		msg := f.Msg
		if msg == "" {
			msg = "Unknown error"
		}
		return ErrorFrame(msg)
	}

	switch {
	case f.Content != "":
		return deltaFrame(f.ID, f.Content, nil)
	case f.Msg != "":
		return deltaFrame(f.ID, f.Msg, nil)
	}
	return chunk
}

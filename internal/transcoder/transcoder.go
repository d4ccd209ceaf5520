package transcoder

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"preface-cli/internal/logger"
	"preface-cli/internal/stream"
)

// Request is one generation call as received from the client.
type Request struct {
	ID      string
	OpenID  string
	Content string
}

// Sink is the caller's chunked response. The first Write commits headers.
type Sink interface {
	io.Writer
	Flush()
}

// Transcoder bridges an Upstream to a Sink, one request at a time per call.
type Transcoder struct {
	upstream Upstream
	bufSize  int
}

func New(upstream Upstream) *Transcoder {
	return &Transcoder{upstream: upstream, bufSize: 32 * 1024}
}

// Forward runs one request through Idle, Connecting and Forwarding to a
// terminal state. When it returns ErroredBeforeSend nothing was written to
// sink and the caller still owns the response status. Every other outcome
// leaves sink holding a stream that ends in a finish_reason "stop" frame.
func (t *Transcoder) Forward(ctx context.Context, req Request, sink Sink) (stream.State, error) {
	log := logger.WithFields(logrus.Fields{
		"request_id":  req.ID,
		"content_len": len(req.Content),
	})

	state := stream.Idle
	transition := func(next stream.State) {
		log.Debugf("transcoder: %s -> %s", state, next)
		state = next
	}

	transition(stream.Connecting)
	body, err := t.upstream.Open(ctx, req.OpenID, req.Content)
	if err != nil {
		transition(stream.ErroredBeforeSend)
		log.WithError(err).Warn("transcoder: upstream open failed")
		return state, err
	}
	defer body.Close()

	transition(stream.Forwarding)
	sent := false
	write := func(p []byte) error {
		if _, err := sink.Write(p); err != nil {
			return fmt.Errorf("writing response: %w", err)
		}
		sink.Flush()
		sent = true
		return nil
	}

	buf := make([]byte, t.bufSize)
	chunks := 0
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			chunks++
			if err := write(NormalizeChunk(buf[:n])); err != nil {
				transition(stream.ErroredInBand)
				log.WithError(err).Warn("transcoder: client went away")
				return state, err
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			if !sent {
				transition(stream.ErroredBeforeSend)
				log.WithError(rerr).Warn("transcoder: upstream failed before first byte")
				return state, rerr
			}
			transition(stream.ErroredInBand)
			log.WithError(rerr).Warn("transcoder: upstream failed mid-stream")
			if err := write(ErrorFrame(rerr.Error())); err != nil {
				log.WithError(err).Warn("transcoder: writing in-band error")
			}
			return state, rerr
		}
	}

	if err := write(StopFrame()); err != nil {
		transition(stream.ErroredInBand)
		return state, err
	}
	transition(stream.Completed)
	log.WithField("chunks", chunks).Info("transcoder: stream completed")
	return state, nil
}

package transcoder

import "errors"

var (
	// ErrUpstreamStatus wraps a non-2xx answer from the generation service or
	// one of its collaborator endpoints.
	ErrUpstreamStatus = errors.New("upstream request failed")
	ErrMissingParams  = errors.New("missing required parameters")
)

package stream

import "errors"

var (
	ErrSessionActive = errors.New("a generation is already in progress")
	ErrEmptyContent  = errors.New("content is empty")
	ErrMissingOpenID = errors.New("openid is required")
	ErrNoEndMarker   = errors.New("stream closed before the end marker")
)

package client

import "errors"

var (
	ErrUnavailable           = errors.New("server unavailable")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrConflict              = errors.New("version conflict")
	ErrLocalDataNotAvailable = errors.New("local data unavailable")
)

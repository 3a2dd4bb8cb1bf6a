package receiver

import "errors"

// Sentinel errors
var (
	ErrAlreadyRunning  = errors.New("stickerbox/receiver: already running")
	ErrTokenRequired   = errors.New("stickerbox/receiver: session token required")
	ErrTooManyFailures = errors.New("stickerbox/receiver: polling stopped after consecutive failures")
)

package sender

import (
	"github.com/prilive-com/stickerbox/tg"
)

// APIError is tg.APIError, re-exported so transport callers need one import.
type APIError = tg.APIError

// Errors produced by the client itself rather than by the server.
var (
	ErrRateLimited      = tg.ErrRateLimited
	ErrCircuitOpen      = tg.ErrCircuitOpen
	ErrMaxRetries       = tg.ErrMaxRetries
	ErrResponseTooLarge = tg.ErrResponseTooLarge
	ErrInvalidToken     = tg.ErrInvalidToken
)

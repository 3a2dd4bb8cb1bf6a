// Package scrub removes session tokens from errors.
package scrub

import (
	"strings"

	"github.com/prilive-com/stickerbox/tg"
)

// TokenFromError removes the session token from error messages.
// http.Client.Do includes the request URL, and so the token, in its errors.
// The error chain is preserved for errors.Is/As via Unwrap.
func TokenFromError(err error, token tg.SecretToken) error {
	if err == nil {
		return nil
	}
	tokenVal := token.Value()
	if tokenVal == "" {
		return err
	}
	msg := err.Error()
	if strings.Contains(msg, tokenVal) {
		return &scrubbedError{
			msg: strings.ReplaceAll(msg, tokenVal, tg.Redacted),
			err: err,
		}
	}
	return err
}

type scrubbedError struct {
	msg string
	err error
}

func (e *scrubbedError) Error() string { return e.msg }
func (e *scrubbedError) Unwrap() error { return e.err }

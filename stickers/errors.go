package stickers

import "errors"

var (
	// ErrNotFound reports a failed fetch or install, or a set without stickers.
	ErrNotFound = errors.New("stickerbox: sticker set not found")

	// ErrMasksNotInstallable is returned by Install for mask sets.
	ErrMasksNotInstallable = errors.New("stickerbox: masks sets are not installable")

	// ErrAlreadyInFlight is returned by Install while a request is outstanding.
	// Callers normally ignore it.
	ErrAlreadyInFlight = errors.New("stickerbox: install already in flight")

	ErrNotLoaded   = errors.New("stickerbox: sticker set not loaded")
	ErrClosed      = errors.New("stickerbox: box closed")
	ErrNotASticker = errors.New("stickerbox: document is not a sticker")
)

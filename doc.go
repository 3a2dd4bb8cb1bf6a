// Package stickerbox provides the sticker-set preview and install flow of a
// messaging client.
//
// stickerbox fetches a sticker set, reconciles it into a locally owned
// registry, installs it on request, persists the installed and archived
// lists, and notifies observers when sticker data changes.
//
// # Quick Start
//
//	session, err := stickerbox.New(token,
//	    stickerbox.WithDB("stickers.db"),
//	    stickerbox.WithRetries(5),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Close()
//
//	if err := session.Restore(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	box := session.Open(tg.InputByShortName("Cats"))
//	defer box.Close()
//
//	if err := box.Load(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	pending, err := box.Install()
//	if err == nil {
//	    pending.Wait(ctx)
//	}
//
// # Packages
//
// The session wires together packages that can be used on their own:
//
//	stickers  registry, parser, reconciler and preview box
//	sender    HTTP transport with retries, rate limiting and a circuit breaker
//	docstore  document cache
//	storage   SQLite persistence
//	notify    change notifications
//	receiver  long polling for sticker updates pushed by the server
//	feed      channel feed holder
//	tg        wire types and errors
//
// # Features
//
//   - Flag merging that keeps client-only flags across re-fetches
//   - Install ordering, archived-set handling and custom-bucket cleanup
//   - At most one install request per preview, shared fetches per session
//   - Updates from other devices applied by Session.Watch
//   - Circuit breaker with sony/gobreaker
//   - Per-method and global rate limiting
//   - Retry with exponential backoff and crypto jitter
//   - Token auto-redaction in logs and errors
//   - Structured logging with slog
package stickerbox

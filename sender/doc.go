// Package sender is the sticker API transport.
//
// It speaks a JSON envelope protocol over HTTP POST to
// {BaseURL}/session/{token}/{method} and wraps every call in
//
//   - a global and per-method rate limiter
//   - a circuit breaker that only counts 5xx and network failures
//   - retries with exponential backoff, honouring retry_after and
//     FLOOD_WAIT_<n> descriptions
//
// # Usage
//
//	client, err := sender.New(token,
//	    sender.WithBaseURL("https://stickers.example"),
//	    sender.WithRetries(3),
//	)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	set, err := client.GetStickerSet(ctx, tg.InputByShortName("Animals"))
//
// The session token never appears in errors or logs.
package sender

// Package receiver long-polls the server for sticker set updates.
//
// Updates are delivered in order on a channel. The offset advances only
// after an update has been handed over, so updates are redelivered after a
// restart instead of being lost:
//
//	updates := make(chan tg.StickerUpdate, cfg.UpdateBufferSize)
//	client := receiver.NewPollingClient(cfg.Token, updates, logger, cfg)
//	if err := client.Start(ctx); err != nil {
//	    return err
//	}
//	defer client.Stop()
//
// # Features
//
//   - Circuit breaker around the poll request
//   - Exponential backoff with jitter on failures
//   - Stops after a configurable number of consecutive errors
//   - Restartable after Stop
package receiver

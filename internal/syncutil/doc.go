// Package syncutil provides goroutine helpers for stickerbox.
//
// Go spawns a goroutine tracked by a WaitGroup:
//
//	var wg sync.WaitGroup
//	syncutil.Go(&wg, func() {
//	    // work
//	})
//	wg.Wait()
//
// GoSafe does the same but recovers a panic in fn and hands the recovered
// value to a callback, so one misbehaving subscriber or completion handler
// cannot take the process down.
package syncutil

package syncutil

import "sync"

// Go spawns a goroutine tracked by wg.
func Go(wg *sync.WaitGroup, fn func()) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		fn()
	}()
}

// GoSafe spawns a goroutine tracked by wg and recovers panics from fn.
// onPanic, if non-nil, receives the recovered value; wg.Done still runs.
func GoSafe(wg *sync.WaitGroup, fn func(), onPanic func(recovered any)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil && onPanic != nil {
				onPanic(r)
			}
		}()
		fn()
	}()
}

// Recover runs fn and returns the value of any panic it raised.
func Recover(fn func()) (recovered any) {
	defer func() {
		recovered = recover()
	}()
	fn()
	return nil
}

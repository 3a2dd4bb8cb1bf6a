// Package testutil provides testing utilities for stickerbox.
//
// This package is intended for internal testing only.
//
// # Mock API Server
//
// MockAPIServer serves the sticker API over httptest:
//
//	server := testutil.NewMockServer(t)
//	server.OnAPI(sender.MethodGetStickerSet, func(w http.ResponseWriter, r *http.Request) {
//	    testutil.ReplyStickerSet(w, testutil.StickerSetResponse(7, "Cats", 1, 2))
//	})
//	// Use server.BaseURL() as the API base URL
//
// Every request is captured and can be inspected:
//
//	cap := server.LastCapture()
//	cap.AssertJSONField(t, "archived", false)
//	cap.AssertJSONPath(t, "stickerset.short_name", "Cats")
//
// # Fake Sleeper
//
// FakeSleeper records sleep calls without actually sleeping; pass it to
// sender.WithSleeper to check retry timing.
package testutil

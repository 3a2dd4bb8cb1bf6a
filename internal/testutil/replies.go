package testutil

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/prilive-com/stickerbox/tg"
)

// Envelope is the API response format.
type Envelope struct {
	OK          bool        `json:"ok"`
	Result      any         `json:"result,omitempty"`
	ErrorCode   int         `json:"error_code,omitempty"`
	Description string      `json:"description,omitempty"`
	Parameters  *Parameters `json:"parameters,omitempty"`
}

// Parameters contains optional error parameters.
type Parameters struct {
	RetryAfter int `json:"retry_after,omitempty"`
}

// ReplyOK writes a successful API response.
func ReplyOK(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(Envelope{
		OK:     true,
		Result: result,
	})
}

// ReplyError writes an API error response.
func ReplyError(w http.ResponseWriter, code int, description string, params *Parameters) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(Envelope{
		OK:          false,
		ErrorCode:   code,
		Description: description,
		Parameters:  params,
	})
}

// ReplyRateLimit writes a 429 response with retry_after in both JSON and HTTP header.
func ReplyRateLimit(w http.ResponseWriter, retryAfter int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	ReplyError(w, 429, "Too Many Requests: retry after "+strconv.Itoa(retryAfter), &Parameters{
		RetryAfter: retryAfter,
	})
}

// ReplyRateLimitHeaderOnly writes a 429 response with retry_after ONLY in the HTTP header.
func ReplyRateLimitHeaderOnly(w http.ResponseWriter, retryAfter int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	ReplyError(w, 429, "Too Many Requests", nil)
}

// ReplyFloodWait writes a 420 FLOOD_WAIT_<seconds> response; the wait is
// only in the description.
func ReplyFloodWait(w http.ResponseWriter, seconds int) {
	ReplyError(w, 420, "FLOOD_WAIT_"+strconv.Itoa(seconds), nil)
}

// ReplyServerError writes a 5xx server error response.
func ReplyServerError(w http.ResponseWriter, code int, description string) {
	ReplyError(w, code, description, nil)
}

// ReplyBadRequest writes a 400 error with an upper-case error tag.
func ReplyBadRequest(w http.ResponseWriter, tag string) {
	ReplyError(w, 400, tag, nil)
}

// ReplyStickerSet writes a successful messages.getStickerSet response.
func ReplyStickerSet(w http.ResponseWriter, resp *tg.StickerSetResponse) {
	ReplyOK(w, resp)
}

// ReplyInstallSuccess writes a plain successful install result.
func ReplyInstallSuccess(w http.ResponseWriter) {
	ReplyOK(w, tg.InstallResult{Kind: tg.InstallResultSuccess})
}

// ReplyInstallArchive writes an install result that archived sets.
func ReplyInstallArchive(w http.ResponseWriter, archived ...tg.StickerSet) {
	res := tg.InstallResult{Kind: tg.InstallResultArchive}
	for _, s := range archived {
		res.Sets = append(res.Sets, tg.StickerSetCovered{Set: s})
	}
	ReplyOK(w, res)
}

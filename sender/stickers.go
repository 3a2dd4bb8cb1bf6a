package sender

import (
	"context"

	"github.com/prilive-com/stickerbox/internal/validate"
	"github.com/prilive-com/stickerbox/tg"
)

// API method names.
const (
	MethodGetStickerSet     = "messages.getStickerSet"
	MethodInstallStickerSet = "messages.installStickerSet"
)

// GetStickerSetRequest is the payload of messages.getStickerSet.
type GetStickerSetRequest struct {
	StickerSet tg.InputStickerSet `json:"stickerset"`
	Hash       int32              `json:"hash,omitempty"`
}

// InstallStickerSetRequest is the payload of messages.installStickerSet.
type InstallStickerSetRequest struct {
	StickerSet tg.InputStickerSet `json:"stickerset"`
	Archived   bool               `json:"archived"`
}

// GetStickerSet fetches the full description of a sticker set: metadata,
// emoji packs and the documents they reference.
func (c *Client) GetStickerSet(ctx context.Context, set tg.InputStickerSet) (*tg.StickerSetResponse, error) {
	return c.GetStickerSetWithHash(ctx, set, 0)
}

// GetStickerSetWithHash is GetStickerSet with a cache hash; the server may
// answer with the same payload regardless of the hash.
func (c *Client) GetStickerSetWithHash(ctx context.Context, set tg.InputStickerSet, hash int32) (*tg.StickerSetResponse, error) {
	if err := validate.StickerSet(set); err != nil {
		return nil, err
	}
	req := GetStickerSetRequest{StickerSet: set, Hash: hash}
	return withRetry(c, ctx, func() (*tg.StickerSetResponse, error) {
		return callJSONResult[*tg.StickerSetResponse](c, ctx, MethodGetStickerSet, req)
	})
}

// InstallStickerSet adds a set to the installed list, or to the archived
// list when archived is true. The result tells whether the server archived
// other sets to make room. Installs are repeated only after a flood wait or
// rate limit; other failures are returned at once.
func (c *Client) InstallStickerSet(ctx context.Context, set tg.InputStickerSet, archived bool) (*tg.InstallResult, error) {
	if err := validate.StickerSet(set); err != nil {
		return nil, err
	}
	req := InstallStickerSetRequest{StickerSet: set, Archived: archived}
	return withRetryIf(c, ctx, isRateLimited, func() (*tg.InstallResult, error) {
		return callJSONResult[*tg.InstallResult](c, ctx, MethodInstallStickerSet, req)
	})
}

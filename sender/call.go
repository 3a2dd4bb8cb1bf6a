package sender

import (
	"context"
	"encoding/json"
	"fmt"
)

// callJSON is the unified internal helper for all API calls.
// It wraps executeRequest() and provides consistent JSON decoding.
func (c *Client) callJSON(ctx context.Context, method string, payload any, out any) error {
	resp, err := c.executeRequest(ctx, method, payload)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if len(resp.Result) == 0 || string(resp.Result) == "null" {
		return fmt.Errorf("stickerbox: %s: empty result", method)
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("stickerbox: %s: failed to parse response: %w", method, err)
	}
	return nil
}

// callJSONResult is a generic version for cleaner call sites.
//
//	set, err := callJSONResult[*tg.StickerSetResponse](c, ctx, MethodGetStickerSet, req)
func callJSONResult[T any](c *Client, ctx context.Context, method string, payload any) (T, error) {
	var result T
	if err := c.callJSON(ctx, method, payload, &result); err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

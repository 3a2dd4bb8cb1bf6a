// Package tg provides the wire types shared by the transport and the sticker core.
//
// This package contains:
//   - Sticker set request/response types (InputStickerSet, StickerSetResponse, InstallResult)
//   - Document and thumbnail types
//   - Error types and sentinel errors
//   - SecretToken for safe session token handling
//
// # Usage
//
//	import "github.com/prilive-com/stickerbox/tg"
//
//	in := tg.InputByShortName("animals")
//	var resp tg.StickerSetResponse
//	token := tg.SecretToken("s3ss10n...")
package tg

package testutil

import "github.com/prilive-com/stickerbox/tg"

// Test constants for consistent test data.
const (
	// TestToken is a valid-format session token for testing.
	TestToken = "s3ss10n-TESTtokenABCdef"

	// TestSetID is the id of the default fixture set.
	TestSetID = uint64(7)

	// TestShortName is the short name of the default fixture set.
	TestShortName = "Cats"

	// TestEmoji is the emoticon every fixture sticker is tagged with.
	TestEmoji = "🐱"
)

// StickerDoc returns a sticker document belonging to setID.
func StickerDoc(id, setID uint64, alt string) tg.Document {
	return tg.Document{
		ID:         id,
		AccessHash: id * 10,
		MimeType:   "image/webp",
		Size:       1024,
		Sticker: &tg.DocumentAttributeSticker{
			Alt: alt,
			Set: tg.InputByID(setID, setID*10),
		},
	}
}

// PlainDoc returns a document without sticker metadata.
func PlainDoc(id uint64) tg.Document {
	return tg.Document{ID: id, AccessHash: id * 10, MimeType: "image/png"}
}

// StickerSet returns set metadata for id and shortName.
func StickerSet(id uint64, shortName string) tg.StickerSet {
	return tg.StickerSet{
		ID:         id,
		AccessHash: id * 10,
		Title:      shortName + " stickers",
		ShortName:  shortName,
	}
}

// StickerSetResponse returns a messages.getStickerSet result for set id
// whose documents are stickers with docIDs, all tagged TestEmoji.
func StickerSetResponse(id uint64, shortName string, docIDs ...uint64) *tg.StickerSetResponse {
	resp := &tg.StickerSetResponse{
		Set: StickerSet(id, shortName),
	}
	resp.Set.Count = len(docIDs)
	for _, d := range docIDs {
		resp.Documents = append(resp.Documents, StickerDoc(d, id, TestEmoji))
	}
	if len(docIDs) > 0 {
		resp.Packs = []tg.StickerPack{{Emoticon: TestEmoji, Documents: append([]uint64(nil), docIDs...)}}
	}
	return resp
}

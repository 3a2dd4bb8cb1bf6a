package tg

// StickerUpdate is a server-pushed change to the account's sticker sets.
type StickerUpdate struct {
	UpdateID int `json:"update_id"`

	// NewStickerSet is a set installed from another device.
	NewStickerSet *StickerSetResponse `json:"new_sticker_set,omitempty"`

	// ArchivedStickerSets lists sets the server moved to the archive.
	ArchivedStickerSets []StickerSetCovered `json:"archived_sticker_sets,omitempty"`
}

// IsEmpty reports whether the update carries no change.
func (u *StickerUpdate) IsEmpty() bool {
	return u.NewStickerSet == nil && len(u.ArchivedStickerSets) == 0
}

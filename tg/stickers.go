package tg

import "strconv"

// InputStickerSet identifies a sticker set in requests.
// Either ID/AccessHash or ShortName is set; the zero value is the empty set.
type InputStickerSet struct {
	ID         uint64 `json:"id,omitempty"`
	AccessHash uint64 `json:"access_hash,omitempty"`
	ShortName  string `json:"short_name,omitempty"`
}

// InputByID returns an InputStickerSet addressing a set by id.
func InputByID(id, accessHash uint64) InputStickerSet {
	return InputStickerSet{ID: id, AccessHash: accessHash}
}

// InputByShortName returns an InputStickerSet addressing a set by short name.
func InputByShortName(name string) InputStickerSet {
	return InputStickerSet{ShortName: name}
}

// IsEmpty reports whether the input addresses no set at all.
func (in InputStickerSet) IsEmpty() bool {
	return in.ID == 0 && in.ShortName == ""
}

// Key returns a stable key for deduplicating requests for the same set.
func (in InputStickerSet) Key() string {
	if in.ShortName != "" {
		return "name:" + in.ShortName
	}
	return "id:" + strconv.FormatUint(in.ID, 10)
}

// StickerSet is the server description of a sticker set.
type StickerSet struct {
	ID            uint64     `json:"id"`
	AccessHash    uint64     `json:"access_hash"`
	Title         string     `json:"title"`
	ShortName     string     `json:"short_name"`
	Count         int        `json:"count"`
	Hash          int32      `json:"hash"`
	InstalledDate int64      `json:"installed_date,omitempty"` // unix seconds, 0 = never
	Archived      bool       `json:"archived,omitempty"`
	Official      bool       `json:"official,omitempty"`
	Masks         bool       `json:"masks,omitempty"`
	Animated      bool       `json:"animated,omitempty"`
	Thumb         *PhotoSize `json:"thumb,omitempty"`
}

// StickerPack maps an emoticon to the documents tagged with it.
type StickerPack struct {
	Emoticon  string   `json:"emoticon"`
	Documents []uint64 `json:"documents"`
}

// StickerSetResponse is the result of messages.getStickerSet.
type StickerSetResponse struct {
	Set       StickerSet    `json:"set"`
	Packs     []StickerPack `json:"packs"`
	Documents []Document    `json:"documents"`
}

// Install result kinds.
const (
	InstallResultSuccess = "success"
	InstallResultArchive = "archive"
)

// StickerSetCovered is a set mentioned in an install result, with its cover.
type StickerSetCovered struct {
	Set   StickerSet `json:"set"`
	Cover *Document  `json:"cover,omitempty"`
}

// InstallResult is the result of messages.installStickerSet.
// For Kind == InstallResultArchive, Sets lists the sets the server archived
// to make room for the installed one.
type InstallResult struct {
	Kind string              `json:"kind"`
	Sets []StickerSetCovered `json:"sets,omitempty"`
}

// IsArchive reports whether the server archived other sets.
func (r *InstallResult) IsArchive() bool {
	return r != nil && r.Kind == InstallResultArchive
}

package stickers

import (
	"math"
	"time"

	"github.com/prilive-com/stickerbox/tg"
)

// SetID identifies a sticker set.
type SetID uint64

// DocumentID identifies a document.
type DocumentID uint64

// CustomSetID is the id of the synthetic bucket holding stickers used
// outside any installed set.
const CustomSetID SetID = math.MaxUint64

// MaxCustomStickers caps the custom bucket.
const MaxCustomStickers = 24

// StickerInfo is the sticker metadata of a document.
type StickerInfo struct {
	Alt  string
	Set  tg.InputStickerSet
	Mask bool
}

// Document is a document known to the client. Documents handed out by a
// DocumentStore are never modified.
type Document struct {
	ID         DocumentID
	AccessHash uint64
	MimeType   string
	Size       int64
	Sticker    *StickerInfo // nil for non-sticker documents
	Thumbnail  *tg.PhotoSize
}

// NewDocument converts a wire document.
func NewDocument(w *tg.Document) *Document {
	d := &Document{
		ID:         DocumentID(w.ID),
		AccessHash: w.AccessHash,
		MimeType:   w.MimeType,
		Size:       w.Size,
	}
	if w.Sticker != nil {
		d.Sticker = &StickerInfo{
			Alt:  w.Sticker.Alt,
			Set:  w.Sticker.Set,
			Mask: w.Sticker.Mask,
		}
	}
	if len(w.Thumbs) > 0 {
		thumb := w.Thumbs[0]
		d.Thumbnail = &thumb
	}
	return d
}

// IsSticker reports whether the document carries sticker metadata.
func (d *Document) IsSticker() bool {
	return d != nil && d.Sticker != nil
}

// Equal reports whether two documents carry the same data.
func (d *Document) Equal(o *Document) bool {
	if d == o {
		return true
	}
	if d == nil || o == nil {
		return false
	}
	if d.ID != o.ID || d.AccessHash != o.AccessHash || d.MimeType != o.MimeType || d.Size != o.Size {
		return false
	}
	if (d.Sticker == nil) != (o.Sticker == nil) || (d.Sticker != nil && *d.Sticker != *o.Sticker) {
		return false
	}
	if (d.Thumbnail == nil) != (o.Thumbnail == nil) || (d.Thumbnail != nil && *d.Thumbnail != *o.Thumbnail) {
		return false
	}
	return true
}

// Pack is an ordered list of stickers.
type Pack []*Document

// Contains reports whether the pack holds a document with the given id.
func (p Pack) Contains(id DocumentID) bool {
	for _, d := range p {
		if d.ID == id {
			return true
		}
	}
	return false
}

// IDs returns the document ids of the pack in order.
func (p Pack) IDs() []DocumentID {
	ids := make([]DocumentID, len(p))
	for i, d := range p {
		ids[i] = d.ID
	}
	return ids
}

// EmojiMap maps a normalized emoji to the stickers tagged with it.
type EmojiMap map[string]Pack

func (m EmojiMap) clone() EmojiMap {
	if m == nil {
		return nil
	}
	out := make(EmojiMap, len(m))
	for k, p := range m {
		out[k] = append(Pack(nil), p...)
	}
	return out
}

// Set is a sticker set as the client knows it.
type Set struct {
	ID          SetID
	AccessHash  uint64
	Title       string
	ShortName   string
	Count       int
	Hash        int32
	Flags       Flags
	InstallDate time.Time // zero when never installed
	Thumbnail   *tg.PhotoSize
	Stickers    Pack
	Emoji       EmojiMap
}

// Official reports whether the set is an official one, which has no short name.
func (s *Set) Official() bool { return s.ShortName == "" }

// Installed reports whether the set is installed and not archived.
func (s *Set) Installed() bool {
	return s.Flags.Server.Installed && !s.Flags.Server.Archived
}

// Input returns the input addressing the set by id.
func (s *Set) Input() tg.InputStickerSet {
	return tg.InputByID(uint64(s.ID), s.AccessHash)
}

// Clone returns a copy that shares documents but not slices or maps.
func (s *Set) Clone() Set {
	c := *s
	c.Stickers = append(Pack(nil), s.Stickers...)
	c.Emoji = s.Emoji.clone()
	c.Thumbnail = cloneThumb(s.Thumbnail)
	return c
}

func cloneThumb(t *tg.PhotoSize) *tg.PhotoSize {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// ParsedSet is the parser's view of one fetch.
type ParsedSet struct {
	Set
}

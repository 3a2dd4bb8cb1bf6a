package tg

// PhotoSize represents one size of a photo or thumbnail.
type PhotoSize struct {
	Type     string `json:"type"` // "s", "m", "x", ...
	Location string `json:"location,omitempty"`
	Width    int    `json:"w"`
	Height   int    `json:"h"`
	Size     int64  `json:"size,omitempty"`
}

// DocumentAttributeSticker marks a document as a sticker.
type DocumentAttributeSticker struct {
	Alt  string          `json:"alt"`
	Set  InputStickerSet `json:"stickerset"`
	Mask bool            `json:"mask,omitempty"`
}

// Document represents a file stored on the server.
type Document struct {
	ID         uint64                    `json:"id"`
	AccessHash uint64                    `json:"access_hash"`
	MimeType   string                    `json:"mime_type,omitempty"`
	Size       int64                     `json:"size,omitempty"`
	Date       int64                     `json:"date,omitempty"`
	Thumbs     []PhotoSize               `json:"thumbs,omitempty"`
	Sticker    *DocumentAttributeSticker `json:"sticker,omitempty"` // nil for non-sticker documents
}

// IsSticker reports whether the document carries sticker metadata.
func (d *Document) IsSticker() bool {
	return d != nil && d.Sticker != nil
}

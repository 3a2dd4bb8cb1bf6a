package stickers

import (
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/prilive-com/stickerbox/tg"
)

// DocumentStore is the document cache shared by all sets.
type DocumentStore interface {
	// Ingest stores a wire document and returns the stored document.
	Ingest(w *tg.Document) *Document
	// Resolve looks a document up by id.
	Resolve(id DocumentID) (*Document, bool)
}

// Parse turns a getStickerSet response into a ParsedSet. Every document in the
// response is ingested into docs, including those that are not stickers.
//
// Parse returns ErrNotFound when the set holds no stickers.
func Parse(resp *tg.StickerSetResponse, docs DocumentStore) (*ParsedSet, error) {
	if resp == nil {
		return nil, ErrNotFound
	}

	seen := mapset.NewThreadUnsafeSet[DocumentID]()
	pack := make(Pack, 0, len(resp.Documents))
	for i := range resp.Documents {
		doc := docs.Ingest(&resp.Documents[i])
		if !doc.IsSticker() || seen.Contains(doc.ID) {
			continue
		}
		seen.Add(doc.ID)
		pack = append(pack, doc)
	}

	emoji := make(EmojiMap, len(resp.Packs))
	for _, wp := range resp.Packs {
		key, ok := NormalizeEmoji(wp.Emoticon)
		if !ok {
			continue
		}
		p := make(Pack, 0, len(wp.Documents))
		for _, id := range wp.Documents {
			doc, ok := docs.Resolve(DocumentID(id))
			if !ok || !doc.IsSticker() {
				continue
			}
			p = append(p, doc)
		}
		emoji[key] = p
	}

	if len(pack) == 0 {
		return nil, ErrNotFound
	}

	parsed := &ParsedSet{Set: setFromWire(resp.Set)}
	parsed.Stickers = pack
	parsed.Emoji = emoji
	return parsed, nil
}

func setFromWire(ws tg.StickerSet) Set {
	s := Set{
		ID:         SetID(ws.ID),
		AccessHash: ws.AccessHash,
		Title:      ws.Title,
		ShortName:  ws.ShortName,
		Count:      ws.Count,
		Hash:       ws.Hash,
		Flags:      FlagsFromWire(ws),
	}
	if ws.InstalledDate != 0 {
		s.InstallDate = time.Unix(ws.InstalledDate, 0)
	}
	s.Thumbnail = cloneThumb(ws.Thumb)
	return s
}

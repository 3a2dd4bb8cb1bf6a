package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prilive-com/stickerbox/stickers"
	"github.com/prilive-com/stickerbox/tg"
)

// The persister contract of the reconciler.
var _ stickers.Persister = (*Store)(nil)

// WriteInstalledSets replaces the installed list with sets, in order.
// The custom bucket may be among them.
func (s *Store) WriteInstalledSets(ctx context.Context, sets []stickers.Set) error {
	return s.withRetry(ctx, "write_installed", func() error {
		return s.writeList(ctx, listInstalled, sets)
	})
}

// WriteArchivedSets replaces the archived list with sets, in order.
func (s *Store) WriteArchivedSets(ctx context.Context, sets []stickers.Set) error {
	return s.withRetry(ctx, "write_archived", func() error {
		return s.writeList(ctx, listArchived, sets)
	})
}

// writeList rewrites one list and the rows of its sets in a single
// transaction, then drops sets no list references.
func (s *Store) writeList(ctx context.Context, list string, sets []stickers.Set) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("stickerbox: begin %s write: %w", list, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM sticker_set_lists WHERE list = ?`, list); err != nil {
		return fmt.Errorf("stickerbox: clear %s list: %w", list, err)
	}
	for i := range sets {
		if err = writeSet(ctx, tx, &sets[i]); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO sticker_set_lists (list, position, set_id) VALUES (?, ?, ?)`,
			list, i, dbID(uint64(sets[i].ID))); err != nil {
			return fmt.Errorf("stickerbox: add set %d to %s list: %w", sets[i].ID, list, err)
		}
	}
	if _, err = tx.ExecContext(ctx,
		`DELETE FROM sticker_sets WHERE id NOT IN (SELECT set_id FROM sticker_set_lists)`); err != nil {
		return fmt.Errorf("stickerbox: collect unreferenced sets: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("stickerbox: commit %s write: %w", list, err)
	}
	return nil
}

func writeSet(ctx context.Context, tx *sql.Tx, set *stickers.Set) error {
	id := dbID(uint64(set.ID))
	thumb, err := encodeJSON(set.Thumbnail)
	if err != nil {
		return err
	}
	var installDate int64
	if !set.InstallDate.IsZero() {
		installDate = set.InstallDate.Unix()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sticker_sets
			(id, access_hash, title, short_name, count, hash, server_flags, client_flags, install_date, thumbnail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			access_hash  = excluded.access_hash,
			title        = excluded.title,
			short_name   = excluded.short_name,
			count        = excluded.count,
			hash         = excluded.hash,
			server_flags = excluded.server_flags,
			client_flags = excluded.client_flags,
			install_date = excluded.install_date,
			thumbnail    = excluded.thumbnail`,
		id, dbID(set.AccessHash), set.Title, set.ShortName, set.Count, set.Hash,
		encodeServerFlags(set.Flags.Server), encodeClientFlags(set.Flags.Client),
		installDate, thumb)
	if err != nil {
		return fmt.Errorf("stickerbox: write set %d: %w", set.ID, err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM sticker_set_documents WHERE set_id = ?`, id); err != nil {
		return fmt.Errorf("stickerbox: clear documents of set %d: %w", set.ID, err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM sticker_set_emoji WHERE set_id = ?`, id); err != nil {
		return fmt.Errorf("stickerbox: clear emoji of set %d: %w", set.ID, err)
	}

	for pos, doc := range set.Stickers {
		if doc == nil {
			continue
		}
		sticker, err := encodeJSON(doc.Sticker)
		if err != nil {
			return err
		}
		docThumb, err := encodeJSON(doc.Thumbnail)
		if err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO sticker_set_documents
				(set_id, position, document_id, access_hash, mime_type, size, sticker, thumbnail)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, pos, dbID(uint64(doc.ID)), dbID(doc.AccessHash), doc.MimeType, doc.Size, sticker, docThumb); err != nil {
			return fmt.Errorf("stickerbox: write document %d of set %d: %w", doc.ID, set.ID, err)
		}
	}

	for emoji, pack := range set.Emoji {
		ids, err := json.Marshal(pack.IDs())
		if err != nil {
			return fmt.Errorf("stickerbox: encode emoji %q of set %d: %w", emoji, set.ID, err)
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO sticker_set_emoji (set_id, emoji, document_ids) VALUES (?, ?, ?)`,
			id, emoji, string(ids)); err != nil {
			return fmt.Errorf("stickerbox: write emoji %q of set %d: %w", emoji, set.ID, err)
		}
	}
	return nil
}

// Load returns the installed sets (the custom bucket included) and the
// archived sets, each in stored order.
func (s *Store) Load(ctx context.Context) (installed, archived []stickers.Set, err error) {
	installed, err = s.loadList(ctx, listInstalled)
	if err != nil {
		return nil, nil, err
	}
	archived, err = s.loadList(ctx, listArchived)
	if err != nil {
		return nil, nil, err
	}
	return installed, archived, nil
}

func (s *Store) loadList(ctx context.Context, list string) ([]stickers.Set, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.access_hash, s.title, s.short_name, s.count, s.hash,
		       s.server_flags, s.client_flags, s.install_date, s.thumbnail
		FROM sticker_set_lists l
		JOIN sticker_sets s ON s.id = l.set_id
		WHERE l.list = ?
		ORDER BY l.position`, list)
	if err != nil {
		return nil, fmt.Errorf("stickerbox: query %s list: %w", list, err)
	}

	var sets []stickers.Set
	for rows.Next() {
		var (
			set                      stickers.Set
			id, accessHash           int64
			serverFlags, clientFlags int64
			installDate              int64
			thumb                    sql.NullString
		)
		if err := rows.Scan(&id, &accessHash, &set.Title, &set.ShortName, &set.Count, &set.Hash,
			&serverFlags, &clientFlags, &installDate, &thumb); err != nil {
			rows.Close()
			return nil, fmt.Errorf("stickerbox: scan %s list: %w", list, err)
		}
		set.ID = stickers.SetID(uint64(id))
		set.AccessHash = uint64(accessHash)
		set.Flags = stickers.Flags{
			Server: decodeServerFlags(serverFlags),
			Client: decodeClientFlags(clientFlags),
		}
		if installDate != 0 {
			set.InstallDate = time.Unix(installDate, 0)
		}
		if set.Thumbnail, err = decodeThumbnail(thumb); err != nil {
			rows.Close()
			return nil, err
		}
		sets = append(sets, set)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("stickerbox: read %s list: %w", list, err)
	}
	rows.Close()

	for i := range sets {
		if err := s.loadContents(ctx, &sets[i]); err != nil {
			return nil, err
		}
	}
	return sets, nil
}

func (s *Store) loadContents(ctx context.Context, set *stickers.Set) error {
	id := dbID(uint64(set.ID))

	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, access_hash, mime_type, size, sticker, thumbnail
		FROM sticker_set_documents
		WHERE set_id = ?
		ORDER BY position`, id)
	if err != nil {
		return fmt.Errorf("stickerbox: query documents of set %d: %w", set.ID, err)
	}
	defer rows.Close()

	byID := make(map[stickers.DocumentID]*stickers.Document)
	for rows.Next() {
		var (
			doc              stickers.Document
			docID, hash      int64
			sticker, docThmb sql.NullString
		)
		if err := rows.Scan(&docID, &hash, &doc.MimeType, &doc.Size, &sticker, &docThmb); err != nil {
			return fmt.Errorf("stickerbox: scan documents of set %d: %w", set.ID, err)
		}
		doc.ID = stickers.DocumentID(uint64(docID))
		doc.AccessHash = uint64(hash)
		if sticker.Valid {
			var info stickers.StickerInfo
			if err := json.Unmarshal([]byte(sticker.String), &info); err != nil {
				return fmt.Errorf("stickerbox: decode sticker %d: %w", doc.ID, err)
			}
			doc.Sticker = &info
		}
		if doc.Thumbnail, err = decodeThumbnail(docThmb); err != nil {
			return err
		}
		d := &doc
		set.Stickers = append(set.Stickers, d)
		byID[d.ID] = d
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("stickerbox: read documents of set %d: %w", set.ID, err)
	}
	// The store runs on one connection; release it before the next query.
	rows.Close()

	emojiRows, err := s.db.QueryContext(ctx,
		`SELECT emoji, document_ids FROM sticker_set_emoji WHERE set_id = ?`, id)
	if err != nil {
		return fmt.Errorf("stickerbox: query emoji of set %d: %w", set.ID, err)
	}
	defer emojiRows.Close()

	for emojiRows.Next() {
		var emoji, raw string
		if err := emojiRows.Scan(&emoji, &raw); err != nil {
			return fmt.Errorf("stickerbox: scan emoji of set %d: %w", set.ID, err)
		}
		var ids []stickers.DocumentID
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			return fmt.Errorf("stickerbox: decode emoji %q of set %d: %w", emoji, set.ID, err)
		}
		pack := make(stickers.Pack, 0, len(ids))
		for _, docID := range ids {
			if d, ok := byID[docID]; ok {
				pack = append(pack, d)
			}
		}
		if set.Emoji == nil {
			set.Emoji = make(stickers.EmojiMap)
		}
		set.Emoji[emoji] = pack
	}
	return emojiRows.Err()
}

// dbID stores an unsigned id in a signed INTEGER column.
func dbID(id uint64) int64 {
	return int64(id)
}

func encodeJSON(v any) (sql.NullString, error) {
	switch x := v.(type) {
	case *tg.PhotoSize:
		if x == nil {
			return sql.NullString{}, nil
		}
	case *stickers.StickerInfo:
		if x == nil {
			return sql.NullString{}, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("stickerbox: encode %T: %w", v, err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeThumbnail(s sql.NullString) (*tg.PhotoSize, error) {
	if !s.Valid {
		return nil, nil
	}
	var thumb tg.PhotoSize
	if err := json.Unmarshal([]byte(s.String), &thumb); err != nil {
		return nil, fmt.Errorf("stickerbox: decode thumbnail: %w", err)
	}
	return &thumb, nil
}

const (
	flagInstalled = 1 << iota
	flagArchived
	flagOfficial
	flagMasks
	flagAnimated
)

const (
	flagFeatured = 1 << iota
	flagNotLoaded
	flagUnread
	flagSpecial
)

func bit(on bool, mask int64) int64 {
	if on {
		return mask
	}
	return 0
}

func encodeServerFlags(f stickers.ServerFlags) int64 {
	return bit(f.Installed, flagInstalled) |
		bit(f.Archived, flagArchived) |
		bit(f.Official, flagOfficial) |
		bit(f.Masks, flagMasks) |
		bit(f.Animated, flagAnimated)
}

func decodeServerFlags(v int64) stickers.ServerFlags {
	return stickers.ServerFlags{
		Installed: v&flagInstalled != 0,
		Archived:  v&flagArchived != 0,
		Official:  v&flagOfficial != 0,
		Masks:     v&flagMasks != 0,
		Animated:  v&flagAnimated != 0,
	}
}

func encodeClientFlags(f stickers.ClientFlags) int64 {
	return bit(f.Featured, flagFeatured) |
		bit(f.NotLoaded, flagNotLoaded) |
		bit(f.Unread, flagUnread) |
		bit(f.Special, flagSpecial)
}

func decodeClientFlags(v int64) stickers.ClientFlags {
	return stickers.ClientFlags{
		Featured:  v&flagFeatured != 0,
		NotLoaded: v&flagNotLoaded != 0,
		Unread:    v&flagUnread != 0,
		Special:   v&flagSpecial != 0,
	}
}

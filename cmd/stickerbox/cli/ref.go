package cli

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/prilive-com/stickerbox/internal/validate"
	"github.com/prilive-com/stickerbox/tg"
)

// ParseSetRef parses a set reference given on the command line:
//
//	Cats                               short name
//	https://t.me/addstickers/Cats      share link
//	123:456                            id and access hash
func ParseSetRef(ref string) (tg.InputStickerSet, error) {
	ref = strings.TrimSpace(ref)

	if strings.Contains(ref, "://") {
		u, err := url.Parse(ref)
		if err != nil {
			return tg.InputStickerSet{}, fmt.Errorf("invalid link %q: %w", ref, err)
		}
		name, ok := strings.CutPrefix(strings.Trim(u.Path, "/"), "addstickers/")
		if !ok {
			return tg.InputStickerSet{}, fmt.Errorf("invalid link %q: not a sticker set link", ref)
		}
		ref = name
	}

	if idStr, hashStr, ok := strings.Cut(ref, ":"); ok {
		id, err := strconv.ParseUint(idStr, 10, 64)
		if err != nil || id == 0 {
			return tg.InputStickerSet{}, fmt.Errorf("invalid set id %q", idStr)
		}
		hash, err := strconv.ParseUint(hashStr, 10, 64)
		if err != nil {
			return tg.InputStickerSet{}, fmt.Errorf("invalid access hash %q", hashStr)
		}
		return tg.InputByID(id, hash), nil
	}

	if err := validate.ShortName(ref); err != nil {
		return tg.InputStickerSet{}, err
	}
	return tg.InputByShortName(ref), nil
}

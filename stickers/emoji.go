package stickers

import (
	"strings"

	"github.com/forPelevin/gomoji"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// emojiModifiers strips variation selectors and skin-tone modifiers so that
// every variant of an emoji maps to one key.
var emojiModifiers = runes.Remove(runes.Predicate(func(r rune) bool {
	switch {
	case r == 0xFE0F, r == 0xFE0E:
		return true
	case r >= 0x1F3FB && r <= 0x1F3FF:
		return true
	}
	return false
}))

// NormalizeEmoji returns the key an emoticon is stored under.
// ok is false when s contains no emoji.
func NormalizeEmoji(s string) (key string, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	key, _, err := transform.String(emojiModifiers, s)
	if err != nil || key == "" {
		return "", false
	}
	if !gomoji.ContainsEmoji(s) && !gomoji.ContainsEmoji(key) {
		return "", false
	}
	return key, true
}

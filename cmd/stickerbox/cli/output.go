package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/prilive-com/stickerbox/stickers"
)

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// Emit writes v as indented JSON, or calls text for text output.
func (f *OutputFormatter) Emit(v any, text func(w io.Writer)) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(f.Writer)
	return nil
}

// SetView is the printable form of a sticker set.
type SetView struct {
	ID          uint64         `json:"id"`
	ShortName   string         `json:"short_name,omitempty"`
	Title       string         `json:"title"`
	Count       int            `json:"count"`
	Installed   bool           `json:"installed"`
	Archived    bool           `json:"archived"`
	Official    bool           `json:"official"`
	InstalledAt *time.Time     `json:"installed_at,omitempty"`
	Emoji       map[string]int `json:"emoji,omitempty"`
}

func newSetView(s stickers.Set) SetView {
	v := SetView{
		ID:        uint64(s.ID),
		ShortName: s.ShortName,
		Title:     s.Title,
		Count:     len(s.Stickers),
		Installed: s.Installed(),
		Archived:  s.Flags.Server.Archived,
		Official:  s.Official(),
	}
	if v.Count == 0 {
		v.Count = s.Count
	}
	if !s.InstallDate.IsZero() {
		t := s.InstallDate.UTC()
		v.InstalledAt = &t
	}
	if len(s.Emoji) > 0 {
		v.Emoji = make(map[string]int, len(s.Emoji))
		for e, pack := range s.Emoji {
			v.Emoji[e] = len(pack)
		}
	}
	return v
}

func (v SetView) name() string {
	if v.Official {
		return "(official)"
	}
	return v.ShortName
}

func (v SetView) writeText(w io.Writer) {
	fmt.Fprintf(w, "%s  %q\n", v.name(), v.Title)
	fmt.Fprintf(w, "  id:        %d\n", v.ID)
	fmt.Fprintf(w, "  stickers:  %d\n", v.Count)
	fmt.Fprintf(w, "  installed: %t\n", v.Installed)
	if v.Archived {
		fmt.Fprintln(w, "  archived:  true")
	}
	if len(v.Emoji) > 0 {
		keys := make([]string, 0, len(v.Emoji))
		for e := range v.Emoji {
			keys = append(keys, e)
		}
		slices.Sort(keys)
		parts := make([]string, len(keys))
		for i, e := range keys {
			parts[i] = fmt.Sprintf("%s×%d", e, v.Emoji[e])
		}
		fmt.Fprintf(w, "  emoji:     %s\n", strings.Join(parts, " "))
	}
}

func actionNames(actions []stickers.Action) []string {
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = a.String()
	}
	return names
}

package stickers

import "github.com/prilive-com/stickerbox/tg"

// ServerFlags are owned by the server and always taken from the freshest payload.
type ServerFlags struct {
	Installed bool
	Archived  bool
	Official  bool
	Masks     bool
	Animated  bool
}

// ClientFlags are never sent by the server and survive every merge.
type ClientFlags struct {
	Featured  bool
	NotLoaded bool
	Unread    bool
	Special   bool
}

// Flags combines the server and client halves of a set's flags.
type Flags struct {
	Server ServerFlags
	Client ClientFlags
}

// MergeFlags folds a fresh payload into known flags.
//
//	server bits  next
//	client bits  prev OR next
func MergeFlags(prev, next Flags) Flags {
	return Flags{
		Server: next.Server,
		Client: ClientFlags{
			Featured:  prev.Client.Featured || next.Client.Featured,
			NotLoaded: prev.Client.NotLoaded || next.Client.NotLoaded,
			Unread:    prev.Client.Unread || next.Client.Unread,
			Special:   prev.Client.Special || next.Client.Special,
		},
	}
}

// FlagsFromWire returns the server flags carried by a wire sticker set.
func FlagsFromWire(ws tg.StickerSet) Flags {
	return Flags{Server: ServerFlags{
		Installed: ws.InstalledDate != 0,
		Archived:  ws.Archived,
		Official:  ws.Official,
		Masks:     ws.Masks,
		Animated:  ws.Animated,
	}}
}

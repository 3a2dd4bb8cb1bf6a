package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/prilive-com/stickerbox"
	"github.com/prilive-com/stickerbox/stickers"
	"github.com/prilive-com/stickerbox/tg"
)

// BoxView is the printable state of a preview box.
type BoxView struct {
	SetView
	Actions   []string `json:"actions"`
	ShareLink string   `json:"share_link,omitempty"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <set>",
		Short: "Fetch a sticker set and print its preview",
		Long: `Fetch a sticker set by short name, share link or id:access_hash and
print what a preview would show: title, stickers per emoji, install state
and the actions on offer.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := ParseSetRef(args[0])
			if err != nil {
				return err
			}
			return rootOpts.withSession(cmd.Context(), func(s *stickerbox.Session) error {
				box, err := openLoaded(cmd.Context(), s, rootOpts, input)
				if err != nil {
					return err
				}
				defer box.Close()

				view := newBoxView(s, box)
				return rootOpts.formatter(cmd).Emit(view, view.writeText)
			})
		},
	}
}

// openLoaded opens a box for input and waits for it to load.
func openLoaded(ctx context.Context, s *stickerbox.Session, opts *RootOptions, input tg.InputStickerSet) (*stickers.Box, error) {
	box := s.Open(input)

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	if err := box.Load(ctx); err != nil {
		box.Close()
		return nil, fmt.Errorf("load %s: %w", input.Key(), err)
	}
	return box, nil
}

func newBoxView(s *stickerbox.Session, box *stickers.Box) BoxView {
	var view BoxView
	if set, ok := s.Registry().Get(box.SetID()); ok {
		view.SetView = newSetView(set)
	}
	view.Actions = actionNames(box.Actions())
	view.ShareLink = box.ShareLink()
	return view
}

func (v BoxView) writeText(w io.Writer) {
	v.SetView.writeText(w)
	if v.ShareLink != "" {
		fmt.Fprintf(w, "  link:      %s\n", v.ShareLink)
	}
	fmt.Fprintf(w, "  actions:   %v\n", v.Actions)
}

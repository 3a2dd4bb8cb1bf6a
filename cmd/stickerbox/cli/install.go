package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/prilive-com/stickerbox"
)

// InstallView reports the outcome of an install.
type InstallView struct {
	SetView
	AlreadyInstalled bool     `json:"already_installed,omitempty"`
	Archived         []uint64 `json:"archived_sets,omitempty"`
	CustomRemoved    int      `json:"custom_stickers_removed,omitempty"`
}

// NewInstallCommand creates the install command.
func NewInstallCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "install <set>",
		Short: "Install a sticker set",
		Long: `Fetch a sticker set and install it. Sets the server archives to make
room are reported and recorded as archived.`,
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

				var view InstallView
				if !box.NotInstalled() {
					view.AlreadyInstalled = true
				} else {
					pending, err := box.Install()
					if err != nil {
						return err
					}
					ctx, cancel := context.WithTimeout(cmd.Context(), rootOpts.Timeout)
					defer cancel()
					m, err := pending.Wait(ctx)
					if err != nil {
						return fmt.Errorf("install %s: %w", input.Key(), err)
					}
					for _, id := range m.ArchivedSets {
						view.Archived = append(view.Archived, uint64(id))
					}
					view.CustomRemoved = m.CustomStickersRemoved
				}

				if set, ok := s.Registry().Get(box.SetID()); ok {
					view.SetView = newSetView(set)
				}
				return rootOpts.formatter(cmd).Emit(view, view.writeText)
			})
		},
	}
}

func (v InstallView) writeText(w io.Writer) {
	if v.AlreadyInstalled {
		fmt.Fprintf(w, "%s is already installed\n", v.name())
		return
	}
	fmt.Fprintf(w, "installed %s (%d stickers)\n", v.name(), v.Count)
	for _, id := range v.Archived {
		fmt.Fprintf(w, "  archived set %d\n", id)
	}
	if v.CustomRemoved > 0 {
		fmt.Fprintf(w, "  removed %d stickers from recently used\n", v.CustomRemoved)
	}
}

package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/prilive-com/stickerbox"
	"github.com/prilive-com/stickerbox/stickers"
)

// ListView is the printable registry listing.
type ListView struct {
	Sets []SetView `json:"sets"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var archived bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List installed sticker sets",
		Long: `List the installed sticker sets in display order, or the archived
sets with --archived. Reads the local database only.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withSession(cmd.Context(), func(s *stickerbox.Session) error {
				var sets []stickers.Set
				if archived {
					sets = s.Registry().ArchivedSets()
				} else {
					sets = s.Registry().InstalledSets()
				}

				view := ListView{Sets: make([]SetView, 0, len(sets))}
				for _, set := range sets {
					if set.ID == stickers.CustomSetID {
						continue
					}
					view.Sets = append(view.Sets, newSetView(set))
				}
				return rootOpts.formatter(cmd).Emit(view, view.writeText)
			})
		},
	}

	cmd.Flags().BoolVarP(&archived, "archived", "a", false, "list archived sets")

	return cmd
}

func (v ListView) writeText(w io.Writer) {
	if len(v.Sets) == 0 {
		fmt.Fprintln(w, "no sticker sets")
		return
	}
	for _, s := range v.Sets {
		fmt.Fprintf(w, "%-20d %-24s %3d  %s\n", s.ID, s.name(), s.Count, s.Title)
	}
}

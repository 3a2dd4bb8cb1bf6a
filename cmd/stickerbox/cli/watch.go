package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prilive-com/stickerbox"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Apply sticker set changes made on other devices",
		Long: `Long-poll the server for sticker set updates and apply them to the
local registry until interrupted. Each change prints the new set counts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withSession(cmd.Context(), func(s *stickerbox.Session) error {
				out := cmd.OutOrStdout()
				unsubscribe := s.Subscribe(func() {
					reg := s.Registry()
					fmt.Fprintf(out, "stickers changed: %d installed, %d archived\n",
						len(reg.Order()), len(reg.ArchivedOrder()))
				})
				defer unsubscribe()

				return s.Watch(cmd.Context())
			})
		},
	}
}

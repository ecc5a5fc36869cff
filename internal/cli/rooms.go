package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/canvaschat/internal/config"
)

// NewRoomsCommand creates the rooms command.
func NewRoomsCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		clearAll bool
		remove   []string
	)

	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "List recently joined rooms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(rootOpts, config.Config{}, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer env.Close()

			ctx := cmd.Context()
			if clearAll {
				if err := env.profile.ClearRooms(ctx); err != nil {
					return fmt.Errorf("clear rooms: %w", err)
				}
			}
			for _, id := range remove {
				if err := env.profile.RemoveRoom(ctx, id); err != nil {
					return fmt.Errorf("remove room %q: %w", id, err)
				}
			}

			rooms, err := env.profile.Rooms(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(rooms) == 0 {
				fmt.Fprintln(out, "no recent rooms")
				return nil
			}
			for _, id := range rooms {
				fmt.Fprintln(out, id)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&clearAll, "clear", false, "forget every recent room")
	cmd.Flags().StringSliceVar(&remove, "remove", nil, "forget specific rooms")

	return cmd
}

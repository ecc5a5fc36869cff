package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/canvaschat/internal/config"
	"github.com/vovakirdan/canvaschat/internal/identity"
)

// IdentityOptions holds flags for the identity command.
type IdentityOptions struct {
	Name  string
	Color string
	Reset bool
}

// NewIdentityCommand creates the identity command.
func NewIdentityCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IdentityOptions{}

	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Show or change the local identity",
		Long: `Show the identity this device joins rooms with.

--name sets the display name (an empty name goes back to anonymous),
--color picks one of the palette colors and --reset forgets the identity
so the next join creates a new one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIdentity(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "display name")
	cmd.Flags().StringVar(&opts.Color, "color", "", "palette color, e.g. #3b82f6")
	cmd.Flags().BoolVar(&opts.Reset, "reset", false, "forget the stored identity")

	return cmd
}

func runIdentity(cmd *cobra.Command, rootOpts *RootOptions, opts *IdentityOptions) error {
	env, err := loadEnvironment(rootOpts, config.Config{}, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer env.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if opts.Reset {
		if err := env.profile.Clear(ctx); err != nil {
			return fmt.Errorf("reset identity: %w", err)
		}
		fmt.Fprintln(out, "identity cleared")
	}
	if cmd.Flags().Changed("name") {
		if err := env.profile.SetDisplayName(ctx, opts.Name); err != nil {
			return fmt.Errorf("set name: %w", err)
		}
	}
	if cmd.Flags().Changed("color") {
		stored, err := env.profile.SetColor(ctx, opts.Color)
		if err != nil {
			return fmt.Errorf("set color: %w", err)
		}
		if !stored {
			return fmt.Errorf("color %q is not one of %s", opts.Color, strings.Join(identity.Palette, " "))
		}
	}

	userID, err := env.profile.EnsureUserID(ctx)
	if err != nil {
		return err
	}
	p, err := env.profile.Profile(ctx)
	if err != nil {
		return err
	}

	name := p.DisplayName
	if name == "" {
		name = "(anonymous)"
	}
	fmt.Fprintf(out, "id:    %s\n", userID)
	fmt.Fprintf(out, "name:  %s\n", name)
	fmt.Fprintf(out, "color: %s\n", identity.ResolveColor(userID, p.Color))
	return nil
}

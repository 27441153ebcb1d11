package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"bonaparks/internal/domain"
)

func init() {
	logoCmd.AddCommand(logoSetCmd, logoShowCmd, logoRemoveCmd)
	rootCmd.AddCommand(logoCmd)
}

var logoCmd = &cobra.Command{
	Use:   "logo",
	Short: "Manage the saved branding logo",
}

var logoSetCmd = &cobra.Command{
	Use:   "set FILE",
	Short: "Save a logo for --saved-logo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		img, err := readImageFile(args[0])
		if err != nil {
			return err
		}
		rt, err := openRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()
		saved, err := rt.profiles.SetLogo(cmd.Context(), flagOwner, img.DataURI())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "saved %s logo (%d bytes) for %s\n", saved.MIMEType, len(saved.Data), flagOwner)
		return nil
	},
}

var logoShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the saved logo's type and size",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := openRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()
		img, err := rt.profiles.Logo(cmd.Context(), flagOwner)
		if errors.Is(err, domain.ErrNotFound) {
			fmt.Fprintf(cmd.OutOrStdout(), "no logo saved for %s\n", flagOwner)
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s, %d bytes\n", img.MIMEType, len(img.Data))
		return nil
	},
}

var logoRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Delete the saved logo",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := openRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()
		return rt.profiles.RemoveLogo(cmd.Context(), flagOwner)
	},
}

package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"bonaparks/internal/domain"
	"bonaparks/internal/studio"
)

func init() {
	imageCmd.Flags().StringVar(&imageRatio, "ratio", "1:1", "aspect ratio (1:1, 3:4, 4:3, 9:16, 16:9)")
	imageCmd.Flags().StringVar(&imageOverlay, "overlay", "", "text to place on the image")
	imageCmd.Flags().StringVar(&imageLogo, "logo", "", "logo file to place in the corner")
	imageCmd.Flags().BoolVar(&imageSavedLogo, "saved-logo", false, "use the logo saved with 'studio logo set'")
	imageCmd.Flags().StringVarP(&imageOut, "out", "o", "image", "output file (extension added when missing)")
	rootCmd.AddCommand(imageCmd)
}

var (
	imageRatio     string
	imageOverlay   string
	imageLogo      string
	imageSavedLogo bool
	imageOut       string
)

var imageCmd = &cobra.Command{
	Use:   "image PROMPT",
	Short: "Generate a branded image",
	Args:  cobra.ExactArgs(1),
	RunE:  runImage,
}

func runImage(cmd *cobra.Command, args []string) error {
	ratio, err := domain.ParseAspectRatio(imageRatio, domain.AspectSquare)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	var logo *domain.Image
	switch {
	case imageLogo != "":
		img, err := readImageFile(imageLogo)
		if err != nil {
			return err
		}
		logo = &img
	case imageSavedLogo:
		img, err := rt.profiles.Logo(ctx, flagOwner)
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("no saved logo for %q", flagOwner)
		}
		if err != nil {
			return err
		}
		logo = &img
	}

	orch := rt.orchestrator("terminal")
	defer orch.Close()

	fmt.Fprintf(cmd.ErrOrStderr(), "generating %q (%s)...\n", args[0], ratio)
	task, err := orch.SubmitImage(ctx, studio.ImageRequest{
		Prompt:      args[0],
		AspectRatio: ratio,
		OverlayText: imageOverlay,
		Logo:        logo,
	})
	if err != nil {
		return err
	}
	if task.State != domain.TaskStateComplete {
		return errors.New(task.ErrorMessage)
	}
	path, err := saveDataURI(imageOut, task.Result)
	if err != nil {
		return fmt.Errorf("save image: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

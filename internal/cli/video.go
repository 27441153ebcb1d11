package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"bonaparks/internal/domain"
	"bonaparks/internal/providers/genai"
)

func init() {
	videoCmd.Flags().StringVar(&videoRatio, "ratio", "16:9", "aspect ratio (1:1, 3:4, 4:3, 9:16, 16:9)")
	videoCmd.Flags().StringVar(&videoEdit, "edit", "", "edit instruction applied once the video is ready")
	videoCmd.Flags().StringVar(&videoMusic, "music", "", "music track for --edit")
	rootCmd.AddCommand(videoCmd)
}

var (
	videoRatio string
	videoEdit  string
	videoMusic string
)

var videoCmd = &cobra.Command{
	Use:   "video PROMPT",
	Short: "Generate a video and wait for it",
	Long: `Start a video job and poll it until it finishes. Progress messages
are printed to stderr; the stored file's URL is printed to stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: runVideo,
}

func runVideo(cmd *cobra.Command, args []string) error {
	ratio, err := domain.ParseAspectRatio(videoRatio, domain.AspectWide)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	orch := rt.orchestrator("terminal")
	defer orch.Close()
	updates, unsubscribe := orch.Subscribe()
	defer unsubscribe()

	task, err := orch.SubmitVideo(ctx, args[0], ratio)
	if err != nil {
		return err
	}
	task, err = awaitTask(cmd, updates, task)
	if err != nil {
		return err
	}

	if videoEdit != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "editing: %s\n", videoEdit)
		task, err = orch.EditVideo(ctx, videoEdit, genai.VideoEditOptions{MusicTrack: videoMusic})
		if err != nil {
			return err
		}
		return reportEdit(cmd, task)
	}

	fmt.Fprintln(cmd.OutOrStdout(), task.Result)
	return nil
}

// reportEdit prints the video URL after an edit. A failed edit still prints
// the untouched video so the user keeps it.
func reportEdit(cmd *cobra.Command, task domain.GenerationTask) error {
	if task.State != domain.TaskStateComplete {
		return errors.New(task.ErrorMessage)
	}
	fmt.Fprintln(cmd.OutOrStdout(), task.Result)
	if task.EditError != "" {
		return fmt.Errorf("edit failed, original video kept: %s", task.EditError)
	}
	if task.Simulated {
		fmt.Fprintln(cmd.ErrOrStderr(), "note: the edit was simulated; the video is unchanged")
	}
	return nil
}

// awaitTask prints status changes until the task is terminal or the command
// is interrupted.
func awaitTask(cmd *cobra.Command, updates <-chan domain.GenerationTask, task domain.GenerationTask) (domain.GenerationTask, error) {
	last := ""
	for !task.State.Terminal() {
		if task.StatusMessage != "" && task.StatusMessage != last {
			fmt.Fprintln(cmd.ErrOrStderr(), task.StatusMessage)
			last = task.StatusMessage
		}
		select {
		case <-cmd.Context().Done():
			return task, cmd.Context().Err()
		case next, open := <-updates:
			if !open {
				return task, domain.ErrSurfaceClosed
			}
			if next.ID == task.ID {
				task = next
			}
		}
	}
	if task.State == domain.TaskStateFailed {
		return task, errors.New(task.ErrorMessage)
	}
	return task, nil
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"bonaparks/internal/concierge"
	"bonaparks/internal/domain"
)

func init() {
	chatCmd.Flags().StringVar(&chatLocale, "locale", "en", "greeting language (en or id)")
	chatCmd.Flags().StringVar(&chatImageDir, "image-dir", ".", "directory for images created with /imagine")
	rootCmd.AddCommand(chatCmd)
}

var (
	chatLocale   string
	chatImageDir string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the Bonus concierge",
	Long: `Start an interactive session with the concierge. Replies stream as
they arrive. "/imagine <prompt>" renders an image, "/retry" replays the last
failed reply and "/bye" exits.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	orch := rt.orchestrator("terminal")
	defer orch.Close()
	relay, err := concierge.New(ctx, concierge.Options{
		Chat:   rt.client,
		Studio: orch,
		Locale: chatLocale,
		Logger: &rt.logger,
	})
	if err != nil {
		return err
	}

	p := newTranscriptPrinter(cmd.OutOrStdout(), chatImageDir)
	for _, m := range relay.Messages() {
		p.update(m)
	}
	p.endTurn()
	return chatLoop(ctx, relay, os.Stdin, p)
}

func chatLoop(ctx context.Context, relay *concierge.Relay, in io.Reader, p *transcriptPrinter) error {
	scanner := newLineScanner(in)
	for {
		fmt.Fprint(p.out, ">>> ")
		if !scanner.Scan() {
			break
		}
		input := scanner.Text()

		switch strings.TrimSpace(input) {
		case "/bye", "/exit", "/quit":
			fmt.Fprintln(p.out, "Goodbye!")
			return nil
		case "":
			continue
		case "/retry":
			failed, ok := lastFailed(relay.Messages())
			if !ok {
				fmt.Fprintln(p.out, "Nothing to retry.")
				continue
			}
			if err := relay.Retry(ctx, failed, p.update); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
			p.endTurn()
			continue
		}

		if err := relay.Send(ctx, input, p.update); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		p.endTurn()
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil
		}
	}
	return scanner.Err()
}

func lastFailed(msgs []domain.ChatMessage) (int64, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].IsError {
			return msgs[i].ID, true
		}
	}
	return 0, false
}

// transcriptPrinter renders agent messages incrementally: a growing message
// prints only its new suffix, anything else is reprinted on its own line.
type transcriptPrinter struct {
	out      io.Writer
	imageDir string
	shown    map[int64]string
	dirty    bool
}

func newTranscriptPrinter(out io.Writer, imageDir string) *transcriptPrinter {
	return &transcriptPrinter{out: out, imageDir: imageDir, shown: make(map[int64]string)}
}

func (p *transcriptPrinter) update(m domain.ChatMessage) {
	if m.Sender != domain.SenderAgent {
		return
	}
	prev, seen := p.shown[m.ID]
	p.shown[m.ID] = m.Text
	switch {
	case seen && strings.HasPrefix(m.Text, prev):
		fmt.Fprint(p.out, m.Text[len(prev):])
	default:
		if p.dirty {
			fmt.Fprintln(p.out)
		}
		fmt.Fprint(p.out, m.Text)
	}
	p.dirty = true
	if m.IsError {
		fmt.Fprint(p.out, " (type /retry to try again)")
	}
	if m.Image != "" {
		stem := filepath.Join(p.imageDir, fmt.Sprintf("imagine-%d", m.ID))
		if path, err := saveDataURI(stem, m.Image); err != nil {
			fmt.Fprintf(p.out, "\n[could not save image: %v]", err)
		} else {
			fmt.Fprintf(p.out, "\n[saved %s]", path)
		}
	}
}

func (p *transcriptPrinter) endTurn() {
	if p.dirty {
		fmt.Fprintln(p.out)
		fmt.Fprintln(p.out)
	}
	p.dirty = false
}

package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"bonaparks/internal/concierge"
	"bonaparks/internal/domain"
	"bonaparks/internal/providers/genai"
	"bonaparks/internal/scheduler"
	"bonaparks/internal/studio"
)

func TestTranscriptPrinterStreamsSuffixes(t *testing.T) {
	var out bytes.Buffer
	p := newTranscriptPrinter(&out, t.TempDir())

	p.update(domain.ChatMessage{ID: 1, Sender: domain.SenderUser, Text: "hi"})
	p.update(domain.ChatMessage{ID: 2, Sender: domain.SenderAgent, Text: ""})
	p.update(domain.ChatMessage{ID: 2, Sender: domain.SenderAgent, Text: "Hel"})
	p.update(domain.ChatMessage{ID: 2, Sender: domain.SenderAgent, Text: "Hello"})
	p.endTurn()

	if got := out.String(); got != "Hello\n\n" {
		t.Fatalf("output = %q", got)
	}
}

func TestTranscriptPrinterReprintsReplacedText(t *testing.T) {
	var out bytes.Buffer
	p := newTranscriptPrinter(&out, t.TempDir())

	p.update(domain.ChatMessage{ID: 3, Sender: domain.SenderAgent, Text: "Hel"})
	p.update(domain.ChatMessage{ID: 3, Sender: domain.SenderAgent, Text: "My apologies, an error occurred.", IsError: true})

	got := out.String()
	if !strings.HasPrefix(got, "Hel\nMy apologies") || !strings.Contains(got, "/retry") {
		t.Fatalf("output = %q", got)
	}
}

func TestTranscriptPrinterSavesImages(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	p := newTranscriptPrinter(&out, dir)

	uri := domain.Image{MIMEType: "image/png", Data: []byte("png")}.DataURI()
	p.update(domain.ChatMessage{ID: 7, Sender: domain.SenderAgent, Text: "Here is the image you requested.", Image: uri})

	want := filepath.Join(dir, "imagine-7.png")
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("read saved image: %v", err)
	}
	if string(data) != "png" || !strings.Contains(out.String(), want) {
		t.Fatalf("saved %q, output %q", data, out.String())
	}
}

func TestSaveDataURIKeepsExplicitExtension(t *testing.T) {
	dir := t.TempDir()
	uri := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("jpg"))

	path, err := saveDataURI(filepath.Join(dir, "out.jpeg"), uri)
	if err != nil {
		t.Fatalf("saveDataURI: %v", err)
	}
	if filepath.Base(path) != "out.jpeg" {
		t.Fatalf("path = %q", path)
	}
	path, err = saveDataURI(filepath.Join(dir, "banner"), uri)
	if err != nil {
		t.Fatalf("saveDataURI: %v", err)
	}
	if filepath.Base(path) != "banner.jpg" {
		t.Fatalf("path = %q", path)
	}
	if _, err := saveDataURI(filepath.Join(dir, "x"), "not a uri"); err == nil {
		t.Fatal("expected error for invalid data uri")
	}
}

func TestReadImageFile(t *testing.T) {
	dir := t.TempDir()
	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 16)...)
	pngPath := filepath.Join(dir, "logo.png")
	if err := os.WriteFile(pngPath, png, 0o644); err != nil {
		t.Fatal(err)
	}
	img, err := readImageFile(pngPath)
	if err != nil || img.MIMEType != "image/png" {
		t.Fatalf("readImageFile(png) = %q, %v", img.MIMEType, err)
	}

	txtPath := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(txtPath, []byte("plain text"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := readImageFile(txtPath); err == nil {
		t.Fatal("expected error for non-image file")
	}
}

func TestLastFailed(t *testing.T) {
	msgs := []domain.ChatMessage{
		{ID: 1, IsError: true},
		{ID: 2},
		{ID: 3, IsError: true},
		{ID: 4},
	}
	if id, ok := lastFailed(msgs); !ok || id != 3 {
		t.Fatalf("lastFailed = %d, %v", id, ok)
	}
	if _, ok := lastFailed(msgs[1:2]); ok {
		t.Fatal("expected no failed message")
	}
}

type echoChat struct{ failFirst bool }

type echoSession struct{ chat *echoChat }

func (c *echoChat) StartChat(context.Context, string) (genai.ChatSession, error) {
	return echoSession{chat: c}, nil
}

func (s echoSession) Stream(_ context.Context, text string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if s.chat.failFirst {
			s.chat.failFirst = false
			yield("", context.DeadlineExceeded)
			return
		}
		if !yield("echo: ", nil) {
			return
		}
		yield(text, nil)
	}
}

func TestChatLoop(t *testing.T) {
	ctx := context.Background()
	orch := studio.New(studio.Options{Scheduler: scheduler.NewManual()})
	defer orch.Close()
	relay, err := concierge.New(ctx, concierge.Options{Chat: &echoChat{failFirst: true}, Studio: orch})
	if err != nil {
		t.Fatalf("concierge.New: %v", err)
	}

	var out bytes.Buffer
	p := newTranscriptPrinter(&out, t.TempDir())
	in := strings.NewReader("first\n\n/retry\n/retry\n/bye\nnever sent\n")
	if err := chatLoop(ctx, relay, in, p); err != nil {
		t.Fatalf("chatLoop: %v", err)
	}

	got := out.String()
	for _, want := range []string{"My apologies, an error occurred.", "echo: first", "Nothing to retry.", "Goodbye!"} {
		if !strings.Contains(got, want) {
			t.Fatalf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "never sent") {
		t.Fatalf("input after /bye was processed:\n%s", got)
	}
	var users int
	for _, m := range relay.Messages() {
		if m.Sender == domain.SenderUser {
			users++
		}
	}
	if users != 1 {
		t.Fatalf("user messages = %d, want 1", users)
	}
}

func TestAwaitTask(t *testing.T) {
	cmd := &cobra.Command{}
	var errOut bytes.Buffer
	cmd.SetErr(&errOut)
	cmd.SetContext(context.Background())

	updates := make(chan domain.GenerationTask, 4)
	start := domain.GenerationTask{ID: "v1", State: domain.TaskStatePolling, StatusMessage: "Contacting the creative AI..."}
	updates <- domain.GenerationTask{ID: "other", State: domain.TaskStateFailed}
	updates <- domain.GenerationTask{ID: "v1", State: domain.TaskStatePolling, StatusMessage: "Warming up the rendering engines..."}
	updates <- domain.GenerationTask{ID: "v1", State: domain.TaskStateComplete, Result: "file:///tmp/v1.mp4"}

	task, err := awaitTask(cmd, updates, start)
	if err != nil {
		t.Fatalf("awaitTask: %v", err)
	}
	if task.Result != "file:///tmp/v1.mp4" {
		t.Fatalf("task = %+v", task)
	}
	if got := errOut.String(); got != "Contacting the creative AI...\nWarming up the rendering engines...\n" {
		t.Fatalf("progress = %q", got)
	}

	failed := make(chan domain.GenerationTask, 1)
	failed <- domain.GenerationTask{ID: "v2", State: domain.TaskStateFailed, ErrorMessage: "quota exceeded"}
	if _, err := awaitTask(cmd, failed, domain.GenerationTask{ID: "v2", State: domain.TaskStatePolling}); err == nil || err.Error() != "quota exceeded" {
		t.Fatalf("awaitTask error = %v", err)
	}

	closed := make(chan domain.GenerationTask)
	close(closed)
	if _, err := awaitTask(cmd, closed, domain.GenerationTask{ID: "v3", State: domain.TaskStatePolling}); err != domain.ErrSurfaceClosed {
		t.Fatalf("awaitTask on closed channel error = %v", err)
	}
}

func TestReportEditKeepsVideoOnFailure(t *testing.T) {
	cmd := &cobra.Command{}
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	err := reportEdit(cmd, domain.GenerationTask{State: domain.TaskStateComplete, Result: "file:///tmp/v1.mp4", EditError: "edit service down"})
	if err == nil || !strings.Contains(err.Error(), "edit service down") {
		t.Fatalf("reportEdit error = %v", err)
	}
	if out.String() != "file:///tmp/v1.mp4\n" {
		t.Fatalf("stdout = %q", out.String())
	}

	out.Reset()
	if err := reportEdit(cmd, domain.GenerationTask{State: domain.TaskStateComplete, Result: "file:///tmp/v1.mp4", Simulated: true}); err != nil {
		t.Fatalf("reportEdit: %v", err)
	}
	if out.String() != "file:///tmp/v1.mp4\n" || !strings.Contains(errOut.String(), "simulated") {
		t.Fatalf("stdout = %q stderr = %q", out.String(), errOut.String())
	}
}

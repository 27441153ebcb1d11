package concierge

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"
	"testing"

	"bonaparks/internal/domain"
	"bonaparks/internal/providers/genai"
	"bonaparks/internal/scheduler"
	"bonaparks/internal/studio"
)

type fakeSession struct {
	mu      sync.Mutex
	replies [][]string
	fail    []error
	sent    []string
}

func (s *fakeSession) Stream(_ context.Context, text string) iter.Seq2[string, error] {
	s.mu.Lock()
	turn := len(s.sent)
	s.sent = append(s.sent, text)
	var chunks []string
	if turn < len(s.replies) {
		chunks = s.replies[turn]
	}
	var failure error
	if turn < len(s.fail) {
		failure = s.fail[turn]
	}
	s.mu.Unlock()

	return func(yield func(string, error) bool) {
		for _, c := range chunks {
			if !yield(c, nil) {
				return
			}
		}
		if failure != nil {
			yield("", failure)
		}
	}
}

func (s *fakeSession) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

type fakeChat struct {
	session     *fakeSession
	err         error
	instruction string
}

func (f *fakeChat) StartChat(_ context.Context, systemInstruction string) (genai.ChatSession, error) {
	f.instruction = systemInstruction
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

type fakeImages struct {
	mu      sync.Mutex
	prompts []string
	ratios  []domain.AspectRatio
	err     error
}

func (f *fakeImages) GenerateImage(_ context.Context, prompt string, ratio domain.AspectRatio) (domain.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	f.ratios = append(f.ratios, ratio)
	if f.err != nil {
		return domain.Image{}, f.err
	}
	return domain.Image{MIMEType: "image/jpeg", Data: []byte("img")}, nil
}

func (f *fakeImages) EditImage(context.Context, string, domain.Image, *domain.Image) (domain.Image, error) {
	return domain.Image{}, errors.New("not used")
}

func newRelay(t *testing.T, session *fakeSession, images *fakeImages) (*Relay, *studio.Orchestrator) {
	t.Helper()
	orch := studio.New(studio.Options{SurfaceID: "s", Images: images, Scheduler: scheduler.NewManual()})
	r, err := New(context.Background(), Options{Chat: &fakeChat{session: session}, Studio: orch})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return r, orch
}

func TestNewSeedsWelcome(t *testing.T) {
	chat := &fakeChat{session: &fakeSession{}}
	orch := studio.New(studio.Options{Scheduler: scheduler.NewManual()})
	r, err := New(context.Background(), Options{Chat: chat, Studio: orch, Locale: "id-ID"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if chat.instruction != SystemInstruction {
		t.Fatalf("system instruction = %q", chat.instruction)
	}
	msgs := r.Messages()
	if len(msgs) != 1 || msgs[0].Sender != domain.SenderAgent || msgs[0].Text != welcomes["id"] {
		t.Fatalf("messages = %#v", msgs)
	}

	chat.err = errors.New("missing credentials")
	if _, err := New(context.Background(), Options{Chat: chat, Studio: orch}); err == nil {
		t.Fatal("expected start chat error")
	}
}

func TestWelcomeLocale(t *testing.T) {
	tests := map[string]string{
		"":      welcomes["en"],
		"en-US": welcomes["en"],
		"id":    welcomes["id"],
		"fr":    welcomes["en"],
		"!!":    welcomes["en"],
	}
	for locale, want := range tests {
		if got := Welcome(locale); got != want {
			t.Fatalf("Welcome(%q) = %q, want %q", locale, got, want)
		}
	}
}

func TestSendEmptyIsNoop(t *testing.T) {
	session := &fakeSession{}
	images := &fakeImages{}
	r, _ := newRelay(t, session, images)
	for _, input := range []string{"", "   ", "\n\t"} {
		if err := r.Send(context.Background(), input, nil); !errors.Is(err, ErrEmptyMessage) {
			t.Fatalf("Send(%q) error = %v, want ErrEmptyMessage", input, err)
		}
	}
	if got := len(r.Messages()); got != 1 {
		t.Fatalf("messages = %d, want only the welcome", got)
	}
	if len(session.calls()) != 0 || len(images.prompts) != 0 {
		t.Fatal("no external call expected for empty input")
	}
}

func TestSendStreamsIntoOneMessage(t *testing.T) {
	session := &fakeSession{replies: [][]string{{"Hel", "lo, ", "world"}}}
	r, orch := newRelay(t, session, &fakeImages{})

	var agentIDs []int64
	var texts []string
	err := r.Send(context.Background(), "hi there", func(m domain.ChatMessage) {
		if m.Sender == domain.SenderAgent {
			agentIDs = append(agentIDs, m.ID)
			texts = append(texts, m.Text)
		}
	})
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	wantTexts := []string{"", "Hel", "Hello, ", "Hello, world"}
	if strings.Join(texts, "|") != strings.Join(wantTexts, "|") {
		t.Fatalf("updates = %q, want %q", texts, wantTexts)
	}
	for _, id := range agentIDs {
		if id != agentIDs[0] {
			t.Fatalf("message id changed across fragments: %v", agentIDs)
		}
	}

	msgs := r.Messages()
	if len(msgs) != 3 {
		t.Fatalf("messages = %d, want 3", len(msgs))
	}
	if msgs[1].Sender != domain.SenderUser || msgs[1].Text != "hi there" {
		t.Fatalf("user message = %#v", msgs[1])
	}
	if msgs[2].Text != "Hello, world" || msgs[2].ID != agentIDs[0] {
		t.Fatalf("agent message = %#v", msgs[2])
	}
	if got := session.calls(); len(got) != 1 || got[0] != "hi there" {
		t.Fatalf("stream calls = %q", got)
	}
	task, _ := orch.Task(domain.TaskKindChat)
	if task.State != domain.TaskStateComplete || task.Result != "Hello, world" {
		t.Fatalf("chat task = %#v", task)
	}
}

func TestSendImagineRoutesToImageTask(t *testing.T) {
	session := &fakeSession{}
	images := &fakeImages{}
	r, _ := newRelay(t, session, images)

	if err := r.Send(context.Background(), "/imagine sunset", nil); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if len(images.prompts) != 1 || images.prompts[0] != "sunset" {
		t.Fatalf("image prompts = %q, want [sunset]", images.prompts)
	}
	if images.ratios[0] != domain.AspectSquare {
		t.Fatalf("ratio = %q, want 1:1", images.ratios[0])
	}
	if len(session.calls()) != 0 {
		t.Fatal("/imagine must not reach the chat stream")
	}
	msgs := r.Messages()
	last := msgs[len(msgs)-1]
	if last.Text != msgImageReady || !strings.HasPrefix(last.Image, "data:image/jpeg;base64,") || last.ImagePrompt != "sunset" {
		t.Fatalf("image message = %#v", last)
	}
}

func TestSendImaginePrefixIsExact(t *testing.T) {
	tests := []string{"/Imagine sunset", "/imagine", "/imaginesunset"}
	for _, input := range tests {
		session := &fakeSession{}
		images := &fakeImages{}
		r, _ := newRelay(t, session, images)
		if err := r.Send(context.Background(), input, nil); err != nil {
			t.Fatalf("Send(%q) returned error: %v", input, err)
		}
		if len(images.prompts) != 0 || len(session.calls()) != 1 {
			t.Fatalf("Send(%q): images=%v stream=%v, want chat stream", input, images.prompts, session.calls())
		}
	}
}

func TestSendImagineFailure(t *testing.T) {
	images := &fakeImages{err: errors.New("safety block")}
	r, _ := newRelay(t, &fakeSession{}, images)
	if err := r.Send(context.Background(), "/imagine a dragon", nil); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	msgs := r.Messages()
	last := msgs[len(msgs)-1]
	if !last.IsError || last.Text != msgImageError || last.RetryPrompt != "/imagine a dragon" {
		t.Fatalf("error message = %#v", last)
	}
}

func TestStreamFailureAndRetry(t *testing.T) {
	session := &fakeSession{
		replies: [][]string{{"partial"}, {"Here is ", "a cat"}},
		fail:    []error{errors.New("stream broke")},
	}
	r, orch := newRelay(t, session, &fakeImages{})

	if err := r.Send(context.Background(), "draw a cat", nil); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	msgs := r.Messages()
	failed := msgs[len(msgs)-1]
	if !failed.IsError || failed.Text != msgStreamError || failed.RetryPrompt != "draw a cat" {
		t.Fatalf("failed message = %#v", failed)
	}
	if task, _ := orch.Task(domain.TaskKindChat); task.State != domain.TaskStateFailed {
		t.Fatalf("chat task state = %q, want failed", task.State)
	}

	if err := r.Retry(context.Background(), failed.ID, nil); err != nil {
		t.Fatalf("Retry returned error: %v", err)
	}
	after := r.Messages()
	if len(after) != len(msgs) {
		t.Fatalf("messages = %d, want %d (failed replaced, no new user message)", len(after), len(msgs))
	}
	for _, m := range after {
		if m.ID == failed.ID {
			t.Fatal("failed message should be removed")
		}
	}
	reply := after[len(after)-1]
	if reply.Text != "Here is a cat" || reply.ID <= failed.ID {
		t.Fatalf("retry reply = %#v", reply)
	}
	task, _ := orch.Task(domain.TaskKindChat)
	if task.Prompt != "draw a cat" || task.State != domain.TaskStateComplete {
		t.Fatalf("retried task = %#v", task)
	}
	if got := session.calls(); len(got) != 2 || got[1] != "draw a cat" {
		t.Fatalf("stream calls = %q", got)
	}

	if err := r.Retry(context.Background(), reply.ID, nil); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Retry of non-error message = %v, want ErrNotFound", err)
	}
}

func TestRetryImagine(t *testing.T) {
	images := &fakeImages{err: errors.New("boom")}
	r, _ := newRelay(t, &fakeSession{}, images)
	if err := r.Send(context.Background(), "/imagine draw a cat", nil); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	msgs := r.Messages()
	failed := msgs[len(msgs)-1]

	images.err = nil
	if err := r.Retry(context.Background(), failed.ID, nil); err != nil {
		t.Fatalf("Retry returned error: %v", err)
	}
	if len(images.prompts) != 2 || images.prompts[1] != "draw a cat" {
		t.Fatalf("image prompts = %q", images.prompts)
	}
	last := r.Messages()[len(r.Messages())-1]
	if last.IsError || last.Text != msgImageReady {
		t.Fatalf("retried message = %#v", last)
	}
}

func TestSendRejectedWhileBusy(t *testing.T) {
	session := &fakeSession{}
	images := &fakeImages{}
	r, orch := newRelay(t, session, images)
	turn, err := orch.BeginChat("occupying")
	if err != nil {
		t.Fatalf("BeginChat returned error: %v", err)
	}
	before := len(r.Messages())
	if err := r.Send(context.Background(), "hello", nil); !errors.Is(err, domain.ErrTaskActive) {
		t.Fatalf("Send error = %v, want ErrTaskActive", err)
	}
	if err := r.Send(context.Background(), "/imagine x", nil); !errors.Is(err, domain.ErrTaskActive) {
		t.Fatalf("Send imagine error = %v, want ErrTaskActive", err)
	}
	if len(r.Messages()) != before {
		t.Fatal("rejected sends must not append messages")
	}
	turn.Complete("")
}

type gatedImages struct {
	entered chan struct{}
	release chan struct{}
}

func (g *gatedImages) GenerateImage(ctx context.Context, _ string, _ domain.AspectRatio) (domain.Image, error) {
	g.entered <- struct{}{}
	<-g.release
	return domain.Image{MIMEType: "image/jpeg", Data: []byte("img")}, nil
}

func (g *gatedImages) EditImage(context.Context, string, domain.Image, *domain.Image) (domain.Image, error) {
	return domain.Image{}, errors.New("not used")
}

func TestConcurrentImagineClaimsSlotOnce(t *testing.T) {
	images := &gatedImages{entered: make(chan struct{}, 8), release: make(chan struct{})}
	orch := studio.New(studio.Options{SurfaceID: "s", Images: images, Scheduler: scheduler.NewManual()})
	r, err := New(context.Background(), Options{Chat: &fakeChat{session: &fakeSession{}}, Studio: orch})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	const senders = 8
	errs := make(chan error, senders)
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- r.Send(context.Background(), "/imagine a lighthouse", nil)
		}()
	}
	<-images.entered

	rejected := 0
	for i := 0; i < senders-1; i++ {
		if err := <-errs; !errors.Is(err, domain.ErrTaskActive) {
			t.Fatalf("concurrent send error = %v, want ErrTaskActive", err)
		}
		rejected++
	}
	if got := len(r.Messages()); got != 3 {
		t.Fatalf("transcript while generating has %d messages, want 3: %#v", got, r.Messages())
	}
	close(images.release)
	wg.Wait()
	if err := <-errs; err != nil {
		t.Fatalf("winning send error = %v", err)
	}

	msgs := r.Messages()
	if len(msgs) != 3 || msgs[1].Sender != domain.SenderUser || msgs[2].Text != msgImageReady {
		t.Fatalf("transcript = %#v", msgs)
	}
	if rejected != senders-1 || orch.Busy() {
		t.Fatalf("rejected = %d busy = %v", rejected, orch.Busy())
	}
}

func TestMessageIDsAreMonotonic(t *testing.T) {
	session := &fakeSession{replies: [][]string{{"a"}, {"b"}}}
	r, _ := newRelay(t, session, &fakeImages{})
	_ = r.Send(context.Background(), "one", nil)
	_ = r.Send(context.Background(), "two", nil)
	var last int64
	for _, m := range r.Messages() {
		if m.ID <= last {
			t.Fatalf("ids not increasing: %d after %d", m.ID, last)
		}
		last = m.ID
	}
}

package surface

import (
	"context"
	"errors"
	"iter"
	"testing"
	"time"

	"bonaparks/internal/domain"
	"bonaparks/internal/providers/genai"
	"bonaparks/internal/scheduler"
)

type nopSession struct{}

func (nopSession) Stream(context.Context, string) iter.Seq2[string, error] {
	return func(func(string, error) bool) {}
}

type fakeChat struct{ err error }

func (f fakeChat) StartChat(context.Context, string) (genai.ChatSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	return nopSession{}, nil
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newRegistry(c *clock) *Registry {
	return NewRegistry(Options{
		Chat:        fakeChat{},
		Scheduler:   scheduler.NewManual(),
		IdleTimeout: time.Minute,
		Now:         c.Now,
	})
}

func TestCreateGetClose(t *testing.T) {
	c := &clock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	r := newRegistry(c)

	s, err := r.Create(context.Background(), "en")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if s.ID == "" || s.Studio == nil || s.Concierge == nil {
		t.Fatalf("surface = %#v", s)
	}
	if len(s.Concierge.Messages()) != 1 {
		t.Fatal("new surface should carry the welcome message")
	}

	c.now = c.now.Add(10 * time.Second)
	got, err := r.Get(s.ID)
	if err != nil || got != s {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if !s.LastSeen().Equal(c.now) {
		t.Fatalf("LastSeen = %v, want %v", s.LastSeen(), c.now)
	}

	if err := r.Close(s.ID); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if !s.Studio.Closed() {
		t.Fatal("closing a surface must close its orchestrator")
	}
	if _, err := r.Get(s.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get after close error = %v, want ErrNotFound", err)
	}
	if err := r.Close(s.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second Close error = %v, want ErrNotFound", err)
	}
}

func TestCreateFailsWhenChatCannotStart(t *testing.T) {
	r := NewRegistry(Options{Chat: fakeChat{err: errors.New("no key")}, Scheduler: scheduler.NewManual()})
	if _, err := r.Create(context.Background(), "en"); err == nil {
		t.Fatal("expected error")
	}
	if r.Len() != 0 {
		t.Fatal("failed create must not register a surface")
	}
}

func TestReapClosesIdleSurfaces(t *testing.T) {
	c := &clock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	r := newRegistry(c)
	idle, _ := r.Create(context.Background(), "en")
	c.now = c.now.Add(45 * time.Second)
	fresh, _ := r.Create(context.Background(), "id")

	if n := r.Reap(c.now.Add(30 * time.Second)); n != 1 {
		t.Fatalf("Reap = %d, want 1", n)
	}
	if !idle.Studio.Closed() || fresh.Studio.Closed() {
		t.Fatal("only the idle surface should be closed")
	}
	if _, err := r.Get(fresh.ID); err != nil {
		t.Fatalf("fresh surface missing: %v", err)
	}

	r.CloseAll()
	if r.Len() != 0 || !fresh.Studio.Closed() {
		t.Fatal("CloseAll should close every surface")
	}
}

func TestReapSkipsWatchedSurfaces(t *testing.T) {
	c := &clock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	r := newRegistry(c)
	s, _ := r.Create(context.Background(), "en")
	release := s.Watch()

	c.now = c.now.Add(time.Hour)
	if n := r.Reap(c.now); n != 0 || s.Studio.Closed() {
		t.Fatalf("Reap = %d, closed = %v; a watched surface must survive", n, s.Studio.Closed())
	}

	release()
	release()
	if n := r.Reap(c.now.Add(30 * time.Second)); n != 0 {
		t.Fatalf("Reap right after the watch ended = %d, want 0", n)
	}
	if n := r.Reap(c.now.Add(2 * time.Minute)); n != 1 || !s.Studio.Closed() {
		t.Fatalf("Reap after idle timeout = %d, want 1", n)
	}
}

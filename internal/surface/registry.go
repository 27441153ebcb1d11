// Package surface tracks the UI surfaces (browser tabs or terminal sessions)
// attached to the service. Each surface owns one orchestrator task slot and
// one concierge transcript; closing the surface tears both down.
package surface

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"bonaparks/internal/concierge"
	"bonaparks/internal/domain"
	"bonaparks/internal/infra"
	"bonaparks/internal/scheduler"
	"bonaparks/internal/studio"
)

// DefaultIdleTimeout is how long an untouched surface survives.
const DefaultIdleTimeout = 30 * time.Minute

// Surface is one attached view.
type Surface struct {
	ID        string
	Locale    string
	Studio    *studio.Orchestrator
	Concierge *concierge.Relay
	CreatedAt time.Time

	now      func() time.Time
	mu       sync.Mutex
	lastSeen time.Time
	watchers int
}

// LastSeen reports the most recent access.
func (s *Surface) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Watch marks the surface as observed by a long-lived stream. A watched
// surface is never reaped. The returned func ends the watch and counts as
// an access.
func (s *Surface) Watch() (release func()) {
	s.mu.Lock()
	s.watchers++
	s.lastSeen = s.now()
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.watchers--
			s.lastSeen = s.now()
			s.mu.Unlock()
		})
	}
}

func (s *Surface) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Surface) idleSince(now time.Time) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen), s.watchers == 0
}

// Options wires a Registry.
type Options struct {
	Chat         concierge.ChatStarter
	Images       studio.ImageGenerator
	Videos       studio.VideoGenerator
	Media        studio.MediaStore
	Scheduler    scheduler.Scheduler
	PollInterval time.Duration
	IdleTimeout  time.Duration
	Logger       *infra.Logger
	Now          func() time.Time
}

// Registry owns every live surface.
type Registry struct {
	opts   Options
	logger *infra.Logger
	now    func() time.Time

	mu       sync.Mutex
	surfaces map[string]*Surface
}

// NewRegistry builds an empty registry.
func NewRegistry(opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		discard := infra.DiscardLogger()
		logger = &discard
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.Scheduler == nil {
		opts.Scheduler = scheduler.NewTicker()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Registry{opts: opts, logger: logger, now: now, surfaces: make(map[string]*Surface)}
}

// Create attaches a new surface and starts its concierge session.
func (r *Registry) Create(ctx context.Context, locale string) (*Surface, error) {
	id := uuid.NewString()
	logger := r.logger.With().Str("surface_id", id).Logger()
	orch := studio.New(studio.Options{
		SurfaceID:    id,
		Images:       r.opts.Images,
		Videos:       r.opts.Videos,
		Media:        r.opts.Media,
		Scheduler:    r.opts.Scheduler,
		PollInterval: r.opts.PollInterval,
		Logger:       &logger,
	})
	relay, err := concierge.New(ctx, concierge.Options{
		Chat:   r.opts.Chat,
		Studio: orch,
		Locale: locale,
		Logger: &logger,
	})
	if err != nil {
		orch.Close()
		return nil, err
	}

	now := r.now()
	s := &Surface{ID: id, Locale: locale, Studio: orch, Concierge: relay, CreatedAt: now, now: r.now, lastSeen: now}
	r.mu.Lock()
	r.surfaces[id] = s
	r.mu.Unlock()
	logger.Info().Str("locale", locale).Msg("surface: created")
	return s, nil
}

// Get returns a live surface and marks it as seen.
func (r *Registry) Get(id string) (*Surface, error) {
	r.mu.Lock()
	s, ok := r.surfaces[id]
	r.mu.Unlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	s.touch(r.now())
	return s, nil
}

// Len reports the number of live surfaces.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.surfaces)
}

// Close detaches a surface and tears down its orchestrator.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	s, ok := r.surfaces[id]
	delete(r.surfaces, id)
	r.mu.Unlock()
	if !ok {
		return domain.ErrNotFound
	}
	s.Studio.Close()
	r.logger.Info().Str("surface_id", id).Msg("surface: closed")
	return nil
}

// Reap closes unwatched surfaces idle for longer than the idle timeout and
// returns how many were closed.
func (r *Registry) Reap(now time.Time) int {
	r.mu.Lock()
	var stale []*Surface
	for id, s := range r.surfaces {
		if idle, unwatched := s.idleSince(now); unwatched && idle > r.opts.IdleTimeout {
			stale = append(stale, s)
			delete(r.surfaces, id)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		s.Studio.Close()
		r.logger.Info().Str("surface_id", s.ID).Msg("surface: reaped idle surface")
	}
	return len(stale)
}

// Run reaps periodically until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	interval := r.opts.IdleTimeout / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Reap(r.now())
		}
	}
}

// CloseAll tears every surface down.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := make([]*Surface, 0, len(r.surfaces))
	for id, s := range r.surfaces {
		all = append(all, s)
		delete(r.surfaces, id)
	}
	r.mu.Unlock()
	for _, s := range all {
		s.Studio.Close()
	}
}

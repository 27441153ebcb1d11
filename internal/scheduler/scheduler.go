// Package scheduler provides cancellable repeating tasks. A callback keeps
// being re-invoked at a fixed interval until it returns false or its Handle
// is cancelled; once Cancel returns, no callback is running and none will
// start.
package scheduler

import (
	"context"
	"sync"
	"time"
)

// Func is a repeating callback. The context is cancelled when the owning
// Handle is cancelled. Returning false stops the repetition.
type Func func(ctx context.Context) bool

// Scheduler schedules repeating callbacks.
type Scheduler interface {
	Every(interval time.Duration, fn Func) Handle
}

// Handle controls one scheduled callback.
type Handle interface {
	// Cancel stops the schedule and waits for an in-flight callback to
	// return. It must not be called from inside the callback itself.
	Cancel()
}

// Ticker runs callbacks on time.Ticker driven goroutines.
type Ticker struct{}

// NewTicker returns the production scheduler.
func NewTicker() *Ticker {
	return &Ticker{}
}

type tickerHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Every starts a goroutine that invokes fn every interval. Invocations never
// overlap: a slow callback delays the next tick instead of stacking up.
func (t *Ticker) Every(interval time.Duration, fn Func) Handle {
	ctx, cancel := context.WithCancel(context.Background())
	h := &tickerHandle{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if ctx.Err() != nil {
					return
				}
				if !fn(ctx) {
					return
				}
			}
		}
	}()
	return h
}

func (h *tickerHandle) Cancel() {
	h.cancel()
	<-h.done
}

// Manual is a deterministic scheduler: callbacks only run when Tick is
// called. It backs tests and the terminal client's step mode.
type Manual struct {
	mu   sync.Mutex
	jobs []*manualJob
}

// NewManual creates an empty manual scheduler.
func NewManual() *Manual {
	return &Manual{}
}

type manualJob struct {
	interval time.Duration
	fn       Func
	ctx      context.Context
	cancel   context.CancelFunc

	mu      sync.Mutex
	stopped bool
	running sync.WaitGroup
}

// Every registers fn; it runs once per Tick until stopped.
func (m *Manual) Every(interval time.Duration, fn Func) Handle {
	ctx, cancel := context.WithCancel(context.Background())
	job := &manualJob{interval: interval, fn: fn, ctx: ctx, cancel: cancel}
	m.mu.Lock()
	m.jobs = append(m.jobs, job)
	m.mu.Unlock()
	return job
}

// Tick synchronously runs every live callback once and returns how many ran.
func (m *Manual) Tick() int {
	m.mu.Lock()
	jobs := append([]*manualJob(nil), m.jobs...)
	m.mu.Unlock()

	ran := 0
	for _, job := range jobs {
		if job.run() {
			ran++
		}
	}
	m.prune()
	return ran
}

// Pending reports how many callbacks are still scheduled.
func (m *Manual) Pending() int {
	m.prune()
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

// Intervals lists the interval of every live callback, in registration order.
func (m *Manual) Intervals() []time.Duration {
	m.prune()
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]time.Duration, 0, len(m.jobs))
	for _, job := range m.jobs {
		out = append(out, job.interval)
	}
	return out
}

func (m *Manual) prune() {
	m.mu.Lock()
	defer m.mu.Unlock()
	live := m.jobs[:0]
	for _, job := range m.jobs {
		if !job.isStopped() {
			live = append(live, job)
		}
	}
	m.jobs = live
}

func (j *manualJob) run() bool {
	j.mu.Lock()
	if j.stopped {
		j.mu.Unlock()
		return false
	}
	j.running.Add(1)
	j.mu.Unlock()
	defer j.running.Done()

	if !j.fn(j.ctx) {
		j.stop()
	}
	return true
}

func (j *manualJob) stop() {
	j.mu.Lock()
	j.stopped = true
	j.mu.Unlock()
	j.cancel()
}

func (j *manualJob) isStopped() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stopped
}

func (j *manualJob) Cancel() {
	j.stop()
	j.running.Wait()
}

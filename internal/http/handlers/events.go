package handlers

import (
	"net/http"
	"time"
)

const defaultHeartbeat = 15 * time.Second

// Events streams task snapshots for a surface until the client leaves or the
// surface is torn down.
func (a *App) Events(w http.ResponseWriter, r *http.Request) {
	s, ok := a.surface(w, r)
	if !ok {
		return
	}
	stream, ok := newEventStream(w)
	if !ok {
		a.error(w, http.StatusInternalServerError, "internal", "streaming unsupported")
		return
	}
	release := s.Watch()
	defer release()
	updates, cancel := s.Studio.Subscribe()
	defer cancel()

	for _, task := range s.Studio.Tasks() {
		if err := stream.send("task", task); err != nil {
			return
		}
	}
	if err := stream.ping(); err != nil {
		return
	}

	interval := a.Heartbeat
	if interval <= 0 {
		interval = defaultHeartbeat
	}
	heartbeat := time.NewTicker(interval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case task, open := <-updates:
			if !open {
				_ = stream.send("closed", map[string]string{"surface_id": s.ID})
				return
			}
			if err := stream.send("task", task); err != nil {
				return
			}
		case <-heartbeat.C:
			if err := stream.ping(); err != nil {
				return
			}
		}
	}
}

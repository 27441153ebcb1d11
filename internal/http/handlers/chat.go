package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"bonaparks/internal/concierge"
	"bonaparks/internal/domain"
)

type sendMessageRequest struct {
	Text string `json:"text"`
}

func (a *App) ListMessages(w http.ResponseWriter, r *http.Request) {
	s, ok := a.surface(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, map[string]any{"messages": s.Concierge.Messages()})
}

// SendMessage answers with an event stream carrying every change to the
// user message and the agent reply, then a final "done" event.
func (a *App) SendMessage(w http.ResponseWriter, r *http.Request) {
	s, ok := a.surface(w, r)
	if !ok {
		return
	}
	var req sendMessageRequest
	if !a.decode(w, r, &req) {
		return
	}
	a.streamTurn(w, r, func(ctx context.Context, onUpdate concierge.UpdateFunc) error {
		return s.Concierge.Send(ctx, req.Text, onUpdate)
	})
}

// RetryMessage replays the prompt behind a failed agent message.
func (a *App) RetryMessage(w http.ResponseWriter, r *http.Request) {
	s, ok := a.surface(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "messageID"), 10, 64)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid message id")
		return
	}
	a.streamTurn(w, r, func(ctx context.Context, onUpdate concierge.UpdateFunc) error {
		return s.Concierge.Retry(ctx, id, onUpdate)
	})
}

func (a *App) streamTurn(w http.ResponseWriter, r *http.Request, run func(context.Context, concierge.UpdateFunc) error) {
	stream, ok := newEventStream(w)
	if !ok {
		a.error(w, http.StatusInternalServerError, "internal", "streaming unsupported")
		return
	}
	err := run(r.Context(), func(m domain.ChatMessage) {
		_ = stream.send("message", m)
	})
	if err != nil && !stream.started {
		a.fail(w, r, err)
		return
	}
	if err != nil {
		a.log().Warn().Err(err).Msg("chat turn ended with error")
	}
	_ = stream.send("done", map[string]bool{"ok": err == nil})
}

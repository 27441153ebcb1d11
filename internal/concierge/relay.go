// Package concierge relays a surface's chat panel to the concierge model. It
// accumulates streamed replies into a single growing message and routes
// "/imagine <prompt>" input to the studio's image path.
package concierge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/language"

	"bonaparks/internal/domain"
	"bonaparks/internal/infra"
	"bonaparks/internal/providers/genai"
	"bonaparks/internal/studio"
)

// ImaginePrefix routes the remainder of a message to image generation. The
// match is case-sensitive and requires exactly one space.
const ImaginePrefix = "/imagine "

// SystemInstruction steers the concierge persona.
const SystemInstruction = "You are 'Bonus', an AI concierge for the 'Bona Parks' virtual experience platform. Your expertise is in helping guests discover events, navigate the platform, and answer questions about our experiences. Your tone is friendly, helpful, and knowledgeable. Do not refer to yourself as an AI model."

const (
	msgStreamError  = "My apologies, an error occurred."
	msgImageError   = "Sorry, I couldn't create that image. The prompt may be too complex or unsafe. Please try a different idea."
	msgImageReady   = "Here is the image you requested."
	msgImagePending = "🎨 Generating an image for: %q"
)

// ErrEmptyMessage is returned when the input is blank after trimming.
var ErrEmptyMessage = errors.New("concierge: message is empty")

var welcomes = map[string]string{
	"en": "Welcome to Bona Parks! I am Bonus, your AI concierge. How can I help you explore our virtual experiences today?",
	"id": "Selamat datang di Bona Parks! Saya Bonus, concierge AI Anda. Bagaimana saya bisa membantu Anda menjelajahi pengalaman virtual kami hari ini?",
}

var welcomeMatcher = language.NewMatcher([]language.Tag{language.English, language.Indonesian})

// Welcome returns the greeting for locale, falling back to English.
func Welcome(locale string) string {
	tag, err := language.Parse(locale)
	if err != nil {
		return welcomes["en"]
	}
	_, idx, conf := welcomeMatcher.Match(tag)
	if conf == language.No || idx != 1 {
		return welcomes["en"]
	}
	return welcomes["id"]
}

// ChatStarter opens conversations with the concierge model.
type ChatStarter interface {
	StartChat(ctx context.Context, systemInstruction string) (genai.ChatSession, error)
}

// UpdateFunc receives a copy of a message each time it changes.
type UpdateFunc func(domain.ChatMessage)

// Options wires a Relay.
type Options struct {
	Chat   ChatStarter
	Studio *studio.Orchestrator
	Locale string
	Logger *infra.Logger
}

// Relay owns one chat transcript. Message IDs are assigned from a monotonic
// counter and never reused, even after a retry removes a message.
type Relay struct {
	studio  *studio.Orchestrator
	session genai.ChatSession
	logger  *infra.Logger

	mu       sync.Mutex
	messages []domain.ChatMessage
	nextID   int64
}

// New starts a chat session and seeds the transcript with a welcome message.
func New(ctx context.Context, opts Options) (*Relay, error) {
	if opts.Chat == nil || opts.Studio == nil {
		return nil, errors.New("concierge: chat client and studio are required")
	}
	session, err := opts.Chat.StartChat(ctx, SystemInstruction)
	if err != nil {
		return nil, fmt.Errorf("concierge: start chat: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		discard := infra.DiscardLogger()
		logger = &discard
	}
	r := &Relay{studio: opts.Studio, session: session, logger: logger}
	r.appendMessage(domain.ChatMessage{Sender: domain.SenderAgent, Text: Welcome(opts.Locale)})
	return r, nil
}

// Send appends the user's message and produces the agent's reply. Blank
// input and input while the surface is busy are rejected without touching
// the transcript. Reply failures become an error message in the transcript
// and are not returned.
func (r *Relay) Send(ctx context.Context, text string, onUpdate UpdateFunc) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrEmptyMessage
	}

	if prompt, ok := strings.CutPrefix(trimmed, ImaginePrefix); ok {
		job, err := r.studio.BeginImage(studio.ImageRequest{Prompt: prompt, AspectRatio: domain.AspectSquare})
		if err != nil {
			return err
		}
		r.emit(onUpdate, r.appendMessage(domain.ChatMessage{Sender: domain.SenderUser, Text: text}))
		r.imagine(ctx, job, prompt, onUpdate)
		return nil
	}

	turn, err := r.studio.BeginChat(trimmed)
	if err != nil {
		return err
	}
	r.emit(onUpdate, r.appendMessage(domain.ChatMessage{Sender: domain.SenderUser, Text: text}))
	r.stream(ctx, turn, text, onUpdate)
	return nil
}

// Retry removes a failed agent message and replays its prompt. No new user
// message is appended.
func (r *Relay) Retry(ctx context.Context, failedID int64, onUpdate UpdateFunc) error {
	r.mu.Lock()
	idx := r.indexLocked(failedID)
	if idx < 0 || !r.messages[idx].IsError {
		r.mu.Unlock()
		return domain.ErrNotFound
	}
	original := r.messages[idx].RetryPrompt
	r.mu.Unlock()

	trimmed := strings.TrimSpace(original)
	if prompt, ok := strings.CutPrefix(trimmed, ImaginePrefix); ok {
		job, err := r.studio.BeginImage(studio.ImageRequest{Prompt: prompt, AspectRatio: domain.AspectSquare})
		if err != nil {
			return err
		}
		if !r.remove(failedID) {
			job.Fail("retry target vanished")
			return domain.ErrNotFound
		}
		r.imagine(ctx, job, prompt, onUpdate)
		return nil
	}

	turn, err := r.studio.BeginChat(trimmed)
	if err != nil {
		return err
	}
	if !r.remove(failedID) {
		turn.Fail("retry target vanished")
		return domain.ErrNotFound
	}
	r.stream(ctx, turn, original, onUpdate)
	return nil
}

// Messages returns a copy of the transcript.
func (r *Relay) Messages() []domain.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.ChatMessage, len(r.messages))
	copy(out, r.messages)
	return out
}

func (r *Relay) imagine(ctx context.Context, job *studio.ImageJob, prompt string, onUpdate UpdateFunc) {
	placeholder := r.appendMessage(domain.ChatMessage{
		Sender:      domain.SenderAgent,
		Text:        fmt.Sprintf(msgImagePending, prompt),
		ImagePrompt: prompt,
	})
	r.emit(onUpdate, placeholder)

	task := job.Run(ctx)
	if task.State != domain.TaskStateComplete {
		r.logger.Warn().Str("error_message", task.ErrorMessage).Msg("concierge: image generation failed")
		r.emit(onUpdate, r.update(placeholder.ID, func(m *domain.ChatMessage) {
			m.Text = msgImageError
			m.IsError = true
			m.RetryPrompt = ImaginePrefix + prompt
		}))
		return
	}
	r.emit(onUpdate, r.update(placeholder.ID, func(m *domain.ChatMessage) {
		m.Text = msgImageReady
		m.Image = task.Result
	}))
}

func (r *Relay) stream(ctx context.Context, turn *studio.ChatTurn, text string, onUpdate UpdateFunc) {
	reply := r.appendMessage(domain.ChatMessage{Sender: domain.SenderAgent})
	r.emit(onUpdate, reply)

	var streamErr error
	for delta, err := range r.session.Stream(ctx, text) {
		if err != nil {
			streamErr = err
			break
		}
		if !turn.Live() {
			streamErr = errors.New("chat turn was cancelled")
			break
		}
		reply = r.update(reply.ID, func(m *domain.ChatMessage) { m.Text += delta })
		r.emit(onUpdate, reply)
	}
	if streamErr == nil {
		turn.Complete(reply.Text)
		return
	}

	r.logger.Warn().Err(streamErr).Int64("message_id", reply.ID).Msg("concierge: chat stream failed")
	turn.Fail(streamErr.Error())
	r.emit(onUpdate, r.update(reply.ID, func(m *domain.ChatMessage) {
		m.Text = msgStreamError
		m.IsError = true
		m.RetryPrompt = text
	}))
}

func (r *Relay) appendMessage(msg domain.ChatMessage) domain.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	msg.ID = r.nextID
	r.messages = append(r.messages, msg)
	return msg
}

func (r *Relay) update(id int64, fn func(*domain.ChatMessage)) domain.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.indexLocked(id)
	if idx < 0 {
		return domain.ChatMessage{}
	}
	fn(&r.messages[idx])
	return r.messages[idx]
}

func (r *Relay) remove(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.indexLocked(id)
	if idx < 0 {
		return false
	}
	r.messages = append(r.messages[:idx], r.messages[idx+1:]...)
	return true
}

func (r *Relay) indexLocked(id int64) int {
	for i := range r.messages {
		if r.messages[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *Relay) emit(onUpdate UpdateFunc, msg domain.ChatMessage) {
	if onUpdate != nil && msg.ID != 0 {
		onUpdate(msg)
	}
}

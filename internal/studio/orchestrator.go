// Package studio drives creative-generation tasks for one UI surface. An
// Orchestrator owns exactly one task slot: image, video and chat turns on the
// same surface are mutually exclusive, and a running video job is polled in
// the background until it reaches a terminal state or the surface goes away.
package studio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"bonaparks/internal/domain"
	"bonaparks/internal/infra"
	"bonaparks/internal/providers/genai"
	"bonaparks/internal/scheduler"
)

// DefaultPollInterval is how often a running video job is checked.
const DefaultPollInterval = 10 * time.Second

const (
	msgImageFallback = "An unknown error occurred during image generation."
	msgVideoFallback = "An unknown error occurred during video generation."
	msgPollFallback  = "An unknown error occurred during polling."
	msgEditFallback  = "An unknown error occurred during video editing."
	msgNoVideo       = "Video generation completed but no result was found."
	msgCancelled     = "cancelled"
)

// VideoStatusMessages rotate while a video job is still running.
var VideoStatusMessages = []string{
	"Contacting the creative AI...",
	"Warming up the rendering engines...",
	"Assembling digital assets...",
	"This can take a few minutes, please wait...",
	"Adding final cinematic touches...",
	"Almost there, the AI is very proud of this one...",
}

// ImageGenerator renders and edits still images.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string, ratio domain.AspectRatio) (domain.Image, error)
	EditImage(ctx context.Context, prompt string, base domain.Image, overlay *domain.Image) (domain.Image, error)
}

// VideoGenerator runs long video jobs.
type VideoGenerator interface {
	StartVideoGeneration(ctx context.Context, prompt string, ratio domain.AspectRatio) (domain.OperationHandle, error)
	PollOperation(ctx context.Context, handle domain.OperationHandle) (domain.OperationStatus, error)
	DownloadVideo(ctx context.Context, uri string) ([]byte, error)
	EditVideo(ctx context.Context, prompt, sourceURL string, opts genai.VideoEditOptions) (genai.VideoEdit, error)
}

// MediaStore materializes downloaded payloads at an addressable URL.
type MediaStore interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
	URL(key string) string
}

// ImageRequest describes a studio image submission. Logo and OverlayText are
// optional branding applied after generation.
type ImageRequest struct {
	Prompt      string
	AspectRatio domain.AspectRatio
	OverlayText string
	Logo        *domain.Image
}

// Options wires an Orchestrator.
type Options struct {
	// SurfaceID namespaces media written for this surface.
	SurfaceID    string
	Images       ImageGenerator
	Videos       VideoGenerator
	Media        MediaStore
	Scheduler    scheduler.Scheduler
	PollInterval time.Duration
	Logger       *infra.Logger
	Now          func() time.Time
	NewID        func() string
}

// Orchestrator serializes every task transition of one surface under a
// single mutex. External calls run outside the lock and their results are
// applied only while the orchestrator is open and the task is still current.
type Orchestrator struct {
	surfaceID    string
	images       ImageGenerator
	videos       VideoGenerator
	media        MediaStore
	sched        scheduler.Scheduler
	pollInterval time.Duration
	logger       *infra.Logger
	now          func() time.Time
	newID        func() string

	mu        sync.Mutex
	closed    bool
	tasks     map[domain.TaskKind]*domain.GenerationTask
	active    *domain.GenerationTask
	poll      scheduler.Handle
	operation domain.OperationHandle
	editBase  *domain.GenerationTask
	statusIdx int
	subs      map[int]chan domain.GenerationTask
	nextSub   int
}

// New builds an Orchestrator. Images and Videos may be nil when the surface
// only needs one of them; submitting the missing kind fails the task.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		discard := infra.DiscardLogger()
		logger = &discard
	}
	sched := opts.Scheduler
	if sched == nil {
		sched = scheduler.NewTicker()
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Orchestrator{
		surfaceID:    opts.SurfaceID,
		images:       opts.Images,
		videos:       opts.Videos,
		media:        opts.Media,
		sched:        sched,
		pollInterval: interval,
		logger:       logger,
		now:          now,
		newID:        newID,
		tasks:        make(map[domain.TaskKind]*domain.GenerationTask),
		subs:         make(map[int]chan domain.GenerationTask),
	}
}

// SubmitImage generates an image and, when branding is requested, composites
// the logo and overlay text into it. Service failures are reported through
// the returned task, never as an error.
func (o *Orchestrator) SubmitImage(ctx context.Context, req ImageRequest) (domain.GenerationTask, error) {
	job, err := o.BeginImage(req)
	if err != nil {
		return domain.GenerationTask{}, err
	}
	return job.Run(ctx), nil
}

// ImageJob is a validated image request that already holds the task slot.
type ImageJob struct {
	o      *Orchestrator
	task   *domain.GenerationTask
	prompt string
	ratio  domain.AspectRatio
	text   string
	logo   *domain.Image
}

// BeginImage validates req and claims the task slot without calling the
// generator. The caller must Run the job.
func (o *Orchestrator) BeginImage(req ImageRequest) (*ImageJob, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, domain.ErrInvalidPrompt
	}
	ratio, err := domain.ParseAspectRatio(string(req.AspectRatio), domain.AspectSquare)
	if err != nil {
		return nil, err
	}
	if req.Logo != nil && (req.Logo.Empty() || !strings.HasPrefix(req.Logo.MIMEType, "image/")) {
		return nil, fmt.Errorf("%w: logo must be an image", domain.ErrInvalidImage)
	}

	task, err := o.begin(domain.TaskKindImage, prompt, ratio)
	if err != nil {
		return nil, err
	}
	return &ImageJob{o: o, task: task, prompt: prompt, ratio: ratio, text: strings.TrimSpace(req.OverlayText), logo: req.Logo}, nil
}

// Run generates and brands the image and returns the settled task.
func (j *ImageJob) Run(ctx context.Context) domain.GenerationTask {
	o := j.o
	img, err := o.renderImage(ctx, j.prompt, j.ratio, j.text, j.logo)

	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.isCurrent(j.task.ID) {
		return o.snapshot(domain.TaskKindImage)
	}
	if err != nil {
		o.failLocked(failureMessage(err, msgImageFallback))
		o.logger.Warn().Err(err).Str("task_id", j.task.ID).Msg("studio: image task failed")
	} else {
		o.completeLocked(img.DataURI(), img.MIMEType)
	}
	return *j.task
}

func (o *Orchestrator) renderImage(ctx context.Context, prompt string, ratio domain.AspectRatio, overlayText string, logo *domain.Image) (domain.Image, error) {
	if o.images == nil {
		return domain.Image{}, fmt.Errorf("%w: image generation is not configured", domain.ErrProviderFailure)
	}
	base, err := o.images.GenerateImage(ctx, prompt, ratio)
	if err != nil {
		return domain.Image{}, err
	}
	editPrompt := BrandingPrompt(logo != nil, overlayText)
	if editPrompt == "" {
		return base, nil
	}
	return o.images.EditImage(ctx, editPrompt, base, logo)
}

// BrandingPrompt composes the edit instruction that places a logo and/or
// overlay text onto a generated image. It returns "" when nothing is needed.
func BrandingPrompt(withLogo bool, overlayText string) string {
	overlayText = strings.TrimSpace(overlayText)
	switch {
	case withLogo && overlayText != "":
		return fmt.Sprintf("Place the provided logo neatly in the bottom-right corner. Overlay the following text on the image in a clean, readable, sans-serif font: %q. The text should be prominent but not cover key parts of the image.", overlayText)
	case withLogo:
		return "Place the provided logo neatly in the bottom-right corner of the main image. The logo should be visible but not obstructive, scaled appropriately for the image size."
	case overlayText != "":
		return fmt.Sprintf("Overlay the following text on the image in a clean, readable, sans-serif font: %q. The text should be prominent but not cover key parts of the image.", overlayText)
	}
	return ""
}

// SubmitVideo starts a video job and returns once it is Polling (or Failed).
// Polling continues in the background every PollInterval.
func (o *Orchestrator) SubmitVideo(ctx context.Context, prompt string, ratio domain.AspectRatio) (domain.GenerationTask, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return domain.GenerationTask{}, domain.ErrInvalidPrompt
	}
	ratio, err := domain.ParseAspectRatio(string(ratio), domain.AspectWide)
	if err != nil {
		return domain.GenerationTask{}, err
	}

	task, err := o.begin(domain.TaskKindVideo, prompt, ratio)
	if err != nil {
		return domain.GenerationTask{}, err
	}

	var handle domain.OperationHandle
	if o.videos == nil {
		err = fmt.Errorf("%w: video generation is not configured", domain.ErrProviderFailure)
	} else {
		handle, err = o.videos.StartVideoGeneration(ctx, prompt, ratio)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.isCurrent(task.ID) {
		return o.snapshot(domain.TaskKindVideo), nil
	}
	if err != nil {
		o.failLocked(failureMessage(err, msgVideoFallback))
		o.logger.Warn().Err(err).Str("task_id", task.ID).Msg("studio: video start failed")
		return *task, nil
	}

	o.operation = handle
	o.statusIdx = 0
	task.StatusMessage = VideoStatusMessages[0]
	o.transitionLocked(domain.TaskStatePolling)
	taskID := task.ID
	o.poll = o.sched.Every(o.pollInterval, func(ctx context.Context) bool {
		return o.pollOnce(ctx, taskID)
	})
	o.logger.Info().Str("task_id", taskID).Str("operation", handle.Name).Msg("studio: polling video operation")
	return *task, nil
}

// pollOnce performs one poll of the current video job. It returns false when
// polling should stop.
func (o *Orchestrator) pollOnce(ctx context.Context, taskID string) bool {
	o.mu.Lock()
	if !o.isCurrent(taskID) {
		o.mu.Unlock()
		return false
	}
	handle := o.operation
	o.mu.Unlock()

	status, err := o.videos.PollOperation(ctx, handle)
	if ctx.Err() != nil {
		return false
	}

	if err == nil && status.Done && status.ResultURI != "" {
		var url string
		url, err = o.materialize(ctx, taskID, status.ResultURI)
		if ctx.Err() != nil {
			return false
		}
		o.mu.Lock()
		defer o.mu.Unlock()
		if !o.isCurrent(taskID) {
			return false
		}
		o.poll = nil
		if err != nil {
			o.failLocked(failureMessage(err, msgPollFallback))
			o.logger.Warn().Err(err).Str("task_id", taskID).Msg("studio: video download failed")
			return false
		}
		o.completeLocked(url, "video/mp4")
		o.logger.Info().Str("task_id", taskID).Str("result", url).Msg("studio: video ready")
		return false
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.isCurrent(taskID) {
		return false
	}
	switch {
	case err != nil:
		o.poll = nil
		o.failLocked(failureMessage(err, msgPollFallback))
		o.logger.Warn().Err(err).Str("task_id", taskID).Msg("studio: video poll failed")
		return false
	case status.Done:
		o.poll = nil
		o.failLocked(firstNonEmpty(status.ErrorMessage, msgNoVideo))
		return false
	}
	o.statusIdx = (o.statusIdx + 1) % len(VideoStatusMessages)
	o.active.StatusMessage = VideoStatusMessages[o.statusIdx]
	o.touchLocked()
	return true
}

func (o *Orchestrator) materialize(ctx context.Context, taskID, uri string) (string, error) {
	data, err := o.videos.DownloadVideo(ctx, uri)
	if err != nil {
		return "", err
	}
	if o.media == nil {
		return uri, nil
	}
	key, err := o.media.Write(ctx, fmt.Sprintf("videos/%s/%s.mp4", firstNonEmpty(o.surfaceID, "default"), taskID), data)
	if err != nil {
		return "", fmt.Errorf("store video: %w", err)
	}
	return o.media.URL(key), nil
}

// EditVideo reworks the most recent completed video. The task stays Polling
// without progress messages while the edit runs. A failed or cancelled edit
// leaves the previous video in place and reports the failure in EditError.
func (o *Orchestrator) EditVideo(ctx context.Context, prompt string, opts genai.VideoEditOptions) (domain.GenerationTask, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return domain.GenerationTask{}, domain.ErrInvalidPrompt
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return domain.GenerationTask{}, domain.ErrSurfaceClosed
	}
	if o.active != nil {
		o.mu.Unlock()
		return domain.GenerationTask{}, domain.ErrTaskActive
	}
	task := o.tasks[domain.TaskKindVideo]
	if task == nil || task.State != domain.TaskStateComplete || task.Result == "" {
		o.mu.Unlock()
		return domain.GenerationTask{}, domain.ErrNoActiveVideo
	}
	source := task.Result
	base := *task
	o.editBase = &base
	task.Prompt = prompt
	task.StatusMessage = ""
	task.EditError = ""
	o.active = task
	o.transitionLocked(domain.TaskStatePolling)
	taskID := task.ID
	o.mu.Unlock()

	var edit genai.VideoEdit
	var err error
	if o.videos == nil {
		err = fmt.Errorf("%w: video editing is not configured", domain.ErrProviderFailure)
	} else {
		edit, err = o.videos.EditVideo(ctx, prompt, source, opts)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.isCurrent(taskID) {
		return o.snapshot(domain.TaskKindVideo), nil
	}
	if err == nil && edit.URL == "" {
		err = errors.New(msgEditFallback)
	}
	if err != nil {
		o.abortEditLocked(failureMessage(err, msgEditFallback))
		o.logger.Warn().Err(err).Str("task_id", taskID).Msg("studio: video edit failed")
		return *task, nil
	}
	o.editBase = nil
	if edit.Simulated {
		o.logger.Warn().Str("task_id", taskID).Msg("studio: video edit was simulated; result unchanged")
	}
	task.Simulated = edit.Simulated
	o.completeLocked(edit.URL, task.ResultMIME)
	return *task, nil
}

// Fail releases the slot without generating, marking the task Failed.
func (j *ImageJob) Fail(message string) {
	j.o.mu.Lock()
	defer j.o.mu.Unlock()
	if j.o.isCurrent(j.task.ID) {
		j.o.failLocked(firstNonEmpty(message, msgImageFallback))
	}
}

// ChatTurn is a chat reply that holds the surface's task slot until it is
// completed or failed.
type ChatTurn struct {
	o  *Orchestrator
	id string
}

// BeginChat claims the task slot for one streamed chat reply.
func (o *Orchestrator) BeginChat(prompt string) (*ChatTurn, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, domain.ErrInvalidPrompt
	}
	task, err := o.begin(domain.TaskKindChat, prompt, "")
	if err != nil {
		return nil, err
	}
	return &ChatTurn{o: o, id: task.ID}, nil
}

// Live reports whether the turn still owns the slot.
func (t *ChatTurn) Live() bool {
	t.o.mu.Lock()
	defer t.o.mu.Unlock()
	return t.o.isCurrent(t.id)
}

// Complete records the accumulated reply. It returns false if the turn was
// superseded or the surface closed.
func (t *ChatTurn) Complete(text string) bool {
	t.o.mu.Lock()
	defer t.o.mu.Unlock()
	if !t.o.isCurrent(t.id) {
		return false
	}
	t.o.completeLocked(text, "text/plain")
	return true
}

// Fail marks the turn Failed with message.
func (t *ChatTurn) Fail(message string) bool {
	t.o.mu.Lock()
	defer t.o.mu.Unlock()
	if !t.o.isCurrent(t.id) {
		return false
	}
	t.o.failLocked(firstNonEmpty(message, "chat reply failed"))
	return true
}

// Cancel supersedes the active task: its poll loop is stopped and it is
// marked Failed. Late results for it are discarded.
func (o *Orchestrator) Cancel() bool {
	o.mu.Lock()
	if o.closed || o.active == nil {
		o.mu.Unlock()
		return false
	}
	if o.editBase != nil {
		o.abortEditLocked(msgCancelled)
	} else {
		o.failLocked(msgCancelled)
	}
	poll := o.poll
	o.poll = nil
	o.mu.Unlock()

	if poll != nil {
		poll.Cancel()
	}
	return true
}

// Close tears the orchestrator down. The poll timer is stopped before Close
// returns and responses arriving afterwards are dropped. Safe to call more
// than once.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	poll := o.poll
	o.poll = nil
	for id, ch := range o.subs {
		close(ch)
		delete(o.subs, id)
	}
	o.mu.Unlock()

	if poll != nil {
		poll.Cancel()
	}
}

// Closed reports whether Close has been called.
func (o *Orchestrator) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// Task returns a copy of the most recent task of kind.
func (o *Orchestrator) Task(kind domain.TaskKind) (domain.GenerationTask, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	task, ok := o.tasks[kind]
	if !ok {
		return domain.GenerationTask{}, false
	}
	return *task, true
}

// Tasks returns copies of the most recent task of every kind.
func (o *Orchestrator) Tasks() []domain.GenerationTask {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]domain.GenerationTask, 0, len(o.tasks))
	for _, kind := range []domain.TaskKind{domain.TaskKindChat, domain.TaskKindImage, domain.TaskKindVideo} {
		if task, ok := o.tasks[kind]; ok {
			out = append(out, *task)
		}
	}
	return out
}

// Current returns the task holding the slot, if any.
func (o *Orchestrator) Current() (domain.GenerationTask, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active == nil {
		return domain.GenerationTask{}, false
	}
	return *o.active, true
}

// Busy reports whether a task is Submitted or Polling.
func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active != nil
}

// Subscribe delivers a snapshot after every task transition. The channel is
// closed by Close or by the returned cancel func. A slow reader only misses
// intermediate snapshots, never the latest one.
func (o *Orchestrator) Subscribe() (<-chan domain.GenerationTask, func()) {
	ch := make(chan domain.GenerationTask, 8)
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := o.nextSub
	o.nextSub++
	o.subs[id] = ch
	o.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			if c, ok := o.subs[id]; ok {
				close(c)
				delete(o.subs, id)
			}
		})
	}
}

func (o *Orchestrator) begin(kind domain.TaskKind, prompt string, ratio domain.AspectRatio) (*domain.GenerationTask, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil, domain.ErrSurfaceClosed
	}
	if o.active != nil {
		return nil, domain.ErrTaskActive
	}
	now := o.now()
	task := &domain.GenerationTask{
		ID:          o.newID(),
		Kind:        kind,
		Prompt:      prompt,
		AspectRatio: ratio,
		State:       domain.TaskStateSubmitted,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	o.tasks[kind] = task
	o.active = task
	o.publishLocked(*task)
	return task, nil
}

func (o *Orchestrator) isCurrent(taskID string) bool {
	return !o.closed && o.active != nil && o.active.ID == taskID
}

func (o *Orchestrator) snapshot(kind domain.TaskKind) domain.GenerationTask {
	if task, ok := o.tasks[kind]; ok {
		return *task
	}
	return domain.GenerationTask{}
}

func (o *Orchestrator) transitionLocked(state domain.TaskState) {
	o.active.State = state
	o.touchLocked()
}

func (o *Orchestrator) touchLocked() {
	o.active.UpdatedAt = o.now()
	o.publishLocked(*o.active)
}

func (o *Orchestrator) completeLocked(result, mime string) {
	task := o.active
	task.Result = result
	task.ResultMIME = mime
	task.ErrorMessage = ""
	task.StatusMessage = ""
	task.EditError = ""
	o.transitionLocked(domain.TaskStateComplete)
	o.active = nil
}

// abortEditLocked puts the video task back to its pre-edit snapshot.
func (o *Orchestrator) abortEditLocked(message string) {
	task := o.active
	*task = *o.editBase
	task.EditError = message
	o.editBase = nil
	o.transitionLocked(domain.TaskStateComplete)
	o.active = nil
}

func (o *Orchestrator) failLocked(message string) {
	task := o.active
	task.ErrorMessage = message
	task.StatusMessage = ""
	task.Result = ""
	task.ResultMIME = ""
	task.Simulated = false
	task.EditError = ""
	o.transitionLocked(domain.TaskStateFailed)
	o.active = nil
}

func (o *Orchestrator) publishLocked(task domain.GenerationTask) {
	for _, ch := range o.subs {
		select {
		case ch <- task:
			continue
		default:
		}
		// Full: drop the oldest snapshot so the newest always lands.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- task:
		default:
		}
	}
}

// failureMessage extracts a human-readable message from err, stripping the
// provider sentinel's prefix.
func failureMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	msg := err.Error()
	if errors.Is(err, domain.ErrProviderFailure) {
		msg = strings.TrimPrefix(msg, domain.ErrProviderFailure.Error()+": ")
	}
	return firstNonEmpty(strings.TrimSpace(msg), fallback)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

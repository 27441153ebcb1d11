package genai

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strings"
	"time"

	googleai "google.golang.org/genai"

	"bonaparks/internal/domain"
	"bonaparks/internal/infra"
)

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	ChatModel  string
	ImageModel string
	EditModel  string
	VideoModel string
	// VideoEditDelay is how long the simulated video edit pretends to work.
	VideoEditDelay time.Duration
	HTTPClient     *http.Client
	Logger         *infra.Logger
}

// Client is the boundary to the generative service. Everything above it sees
// only domain types; SDK response objects are parsed here once.
type Client struct {
	sdk            *googleai.Client
	chatModel      string
	imageModel     string
	editModel      string
	videoModel     string
	videoEditDelay time.Duration
	logger         *infra.Logger
}

// ChatSession is a multi-turn conversation with the concierge model.
type ChatSession interface {
	// Stream sends one user turn and yields reply fragments in arrival order.
	// The sequence is finite and cannot be restarted.
	Stream(ctx context.Context, text string) iter.Seq2[string, error]
}

// VideoEditOptions carries the optional knobs of a video edit request.
type VideoEditOptions struct {
	MusicTrack string
	EditRegion string
}

// VideoEdit is the outcome of EditVideo.
type VideoEdit struct {
	URL string
	// Simulated is set when the service did not actually transform the video.
	Simulated bool
}

var errMissingAPIKey = errors.New("genai: api key is required")

// NewClient constructs a Gemini client. A missing API key is fatal: the
// service cannot answer any request without one.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errMissingAPIKey
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}

	cc := &googleai.ClientConfig{
		APIKey:     apiKey,
		Backend:    googleai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if base := strings.TrimRight(opts.BaseURL, "/"); base != "" {
		cc.HTTPOptions = googleai.HTTPOptions{BaseURL: base + "/"}
	}
	sdk, err := googleai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("genai: create client: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		discard := infra.DiscardLogger()
		logger = &discard
	}

	return &Client{
		sdk:            sdk,
		chatModel:      firstNonEmpty(opts.ChatModel, "gemini-2.5-flash"),
		imageModel:     firstNonEmpty(opts.ImageModel, "imagen-4.0-generate-001"),
		editModel:      firstNonEmpty(opts.EditModel, "gemini-2.5-flash-image-preview"),
		videoModel:     firstNonEmpty(opts.VideoModel, "veo-2.0-generate-001"),
		videoEditDelay: opts.VideoEditDelay,
		logger:         logger,
	}, nil
}

// StartChat opens a new conversation steered by systemInstruction.
func (c *Client) StartChat(ctx context.Context, systemInstruction string) (ChatSession, error) {
	var cfg *googleai.GenerateContentConfig
	if s := strings.TrimSpace(systemInstruction); s != "" {
		cfg = &googleai.GenerateContentConfig{
			SystemInstruction: googleai.NewContentFromText(s, googleai.RoleUser),
		}
	}
	chat, err := c.sdk.Chats.Create(ctx, c.chatModel, cfg, nil)
	if err != nil {
		return nil, fmt.Errorf("genai: create chat: %w", err)
	}
	return &chatSession{chat: chat}, nil
}

type chatSession struct {
	chat *googleai.Chat
}

func (s *chatSession) Stream(ctx context.Context, text string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for resp, err := range s.chat.SendMessageStream(ctx, googleai.Part{Text: text}) {
			if err != nil {
				yield("", fmt.Errorf("genai: stream reply: %w", err))
				return
			}
			chunk := responseText(resp)
			if chunk == "" {
				continue
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

// GenerateImage renders a single image for prompt.
func (c *Client) GenerateImage(ctx context.Context, prompt string, ratio domain.AspectRatio) (domain.Image, error) {
	resp, err := c.sdk.Models.GenerateImages(ctx, c.imageModel, prompt, &googleai.GenerateImagesConfig{
		NumberOfImages: 1,
		OutputMIMEType: "image/jpeg",
		AspectRatio:    string(ratio),
	})
	if err != nil {
		c.logger.Error().Err(err).Str("model", c.imageModel).Msg("genai: image generation failed")
		return domain.Image{}, fmt.Errorf("%w: failed to generate image from the API", domain.ErrProviderFailure)
	}
	img, err := firstGeneratedImage(resp)
	if err != nil {
		return domain.Image{}, err
	}
	c.logger.Debug().Str("model", c.imageModel).Int("bytes", len(img.Data)).Msg("genai: generated image")
	return img, nil
}

// EditImage asks the multimodal model to rework base, optionally compositing
// overlay (typically a brand logo) into it.
func (c *Client) EditImage(ctx context.Context, prompt string, base domain.Image, overlay *domain.Image) (domain.Image, error) {
	if base.Empty() || base.MIMEType == "" {
		return domain.Image{}, fmt.Errorf("%w: invalid base image format", domain.ErrInvalidImage)
	}
	parts := []*googleai.Part{googleai.NewPartFromBytes(base.Data, base.MIMEType)}
	if overlay != nil {
		if overlay.Empty() || overlay.MIMEType == "" {
			c.logger.Warn().Msg("genai: invalid overlay image format; proceeding without it")
		} else {
			parts = append(parts, googleai.NewPartFromBytes(overlay.Data, overlay.MIMEType))
		}
	}
	parts = append(parts, googleai.NewPartFromText(prompt))

	resp, err := c.sdk.Models.GenerateContent(ctx, c.editModel,
		[]*googleai.Content{googleai.NewContentFromParts(parts, googleai.RoleUser)},
		&googleai.GenerateContentConfig{
			ResponseModalities: []string{string(googleai.ModalityImage), string(googleai.ModalityText)},
		})
	if err != nil {
		c.logger.Error().Err(err).Str("model", c.editModel).Msg("genai: image edit failed")
		return domain.Image{}, fmt.Errorf("%w: failed to edit image using the API", domain.ErrProviderFailure)
	}
	return inlineImage(resp)
}

// StartVideoGeneration submits a long-running video job.
func (c *Client) StartVideoGeneration(ctx context.Context, prompt string, ratio domain.AspectRatio) (domain.OperationHandle, error) {
	op, err := c.sdk.Models.GenerateVideos(ctx, c.videoModel, prompt, nil, &googleai.GenerateVideosConfig{
		NumberOfVideos: 1,
		AspectRatio:    string(ratio),
	})
	if err != nil {
		c.logger.Error().Err(err).Str("model", c.videoModel).Msg("genai: video generation start failed")
		return domain.OperationHandle{}, fmt.Errorf("%w: failed to start video generation from the API", domain.ErrProviderFailure)
	}
	if op == nil || op.Name == "" {
		return domain.OperationHandle{}, fmt.Errorf("%w: video operation has no name", domain.ErrProviderFailure)
	}
	c.logger.Info().Str("operation", op.Name).Msg("genai: video generation started")
	return domain.OperationHandle{Name: op.Name}, nil
}

// PollOperation fetches the current state of a video job. It has no side
// effects on the service and may be called any number of times.
func (c *Client) PollOperation(ctx context.Context, handle domain.OperationHandle) (domain.OperationStatus, error) {
	if handle.Name == "" {
		return domain.OperationStatus{}, fmt.Errorf("%w: empty operation handle", domain.ErrProviderFailure)
	}
	op, err := c.sdk.Operations.GetVideosOperation(ctx, &googleai.GenerateVideosOperation{Name: handle.Name}, nil)
	if err != nil {
		return domain.OperationStatus{}, fmt.Errorf("%w: failed to check video status from the API: %v", domain.ErrProviderFailure, err)
	}
	return operationStatus(op), nil
}

// DownloadVideo fetches the bytes behind a generated video URI.
func (c *Client) DownloadVideo(ctx context.Context, uri string) ([]byte, error) {
	data, err := c.sdk.Files.Download(ctx, googleai.NewDownloadURIFromVideo(&googleai.Video{URI: uri}), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: download video: %v", domain.ErrProviderFailure, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: downloaded video is empty", domain.ErrProviderFailure)
	}
	return data, nil
}

// EditVideo is a simulated edit: the generation API has no video-to-video
// endpoint, so after VideoEditDelay the source URL is returned unchanged and
// the result is flagged Simulated.
func (c *Client) EditVideo(ctx context.Context, prompt, sourceURL string, opts VideoEditOptions) (VideoEdit, error) {
	c.logger.Warn().
		Str("prompt", prompt).
		Str("music_track", firstNonEmpty(opts.MusicTrack, "not specified")).
		Str("edit_region", firstNonEmpty(opts.EditRegion, "not specified")).
		Msg("genai: video editing is simulated; returning the original video")

	if c.videoEditDelay > 0 {
		timer := time.NewTimer(c.videoEditDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return VideoEdit{}, ctx.Err()
		}
	}
	return VideoEdit{URL: sourceURL, Simulated: true}, nil
}

func firstGeneratedImage(resp *googleai.GenerateImagesResponse) (domain.Image, error) {
	if resp != nil {
		for _, generated := range resp.GeneratedImages {
			if generated == nil || generated.Image == nil || len(generated.Image.ImageBytes) == 0 {
				continue
			}
			return domain.Image{
				MIMEType: firstNonEmpty(generated.Image.MIMEType, "image/jpeg"),
				Data:     generated.Image.ImageBytes,
			}, nil
		}
	}
	return domain.Image{}, fmt.Errorf("%w: no image was generated", domain.ErrProviderFailure)
}

func inlineImage(resp *googleai.GenerateContentResponse) (domain.Image, error) {
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			return domain.Image{
				MIMEType: firstNonEmpty(part.InlineData.MIMEType, "image/png"),
				Data:     part.InlineData.Data,
			}, nil
		}
	}
	return domain.Image{}, fmt.Errorf("%w: no image was returned from the edit", domain.ErrProviderFailure)
}

func operationStatus(op *googleai.GenerateVideosOperation) domain.OperationStatus {
	if op == nil {
		return domain.OperationStatus{}
	}
	status := domain.OperationStatus{Done: op.Done}
	if msg, ok := op.Error["message"].(string); ok {
		status.ErrorMessage = strings.TrimSpace(msg)
	}
	if op.Response != nil {
		for _, v := range op.Response.GeneratedVideos {
			if v != nil && v.Video != nil && v.Video.URI != "" {
				status.ResultURI = v.Video.URI
				break
			}
		}
		if status.ResultURI == "" && status.ErrorMessage == "" && op.Response.RAIMediaFilteredCount > 0 {
			status.ErrorMessage = "video was filtered by safety policies"
			if len(op.Response.RAIMediaFilteredReasons) > 0 {
				status.ErrorMessage = op.Response.RAIMediaFilteredReasons[0]
			}
		}
	}
	return status
}

// responseText concatenates the visible text of the first candidate,
// skipping thought parts.
func responseText(resp *googleai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		b.WriteString(part.Text)
	}
	return b.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

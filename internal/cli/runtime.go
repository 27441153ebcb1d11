package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"bonaparks/internal/infra"
	"bonaparks/internal/profile"
	"bonaparks/internal/providers/genai"
	"bonaparks/internal/scheduler"
	"bonaparks/internal/storage"
	"bonaparks/internal/studio"
)

// runtime holds the services one CLI invocation needs.
type runtime struct {
	cfg      *infra.Config
	logger   infra.Logger
	client   *genai.Client
	kv       storage.KV
	profiles *profile.Service
	media    *storage.FileStore
}

func openRuntime(ctx context.Context) (*runtime, error) {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := infra.NewLogger(cfg.AppEnv, flagLogLevel).
		Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	client, err := genai.NewClient(ctx, genai.Options{
		APIKey:         cfg.GeminiAPIKey,
		ChatModel:      cfg.GeminiChatModel,
		ImageModel:     cfg.GeminiImageModel,
		EditModel:      cfg.GeminiEditModel,
		VideoModel:     cfg.GeminiVideoModel,
		VideoEditDelay: cfg.VideoEditDelay,
		Logger:         &logger,
	})
	if err != nil {
		return nil, err
	}

	kv, err := storage.OpenKV(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.KVBackend, err)
	}

	// Downloaded media lands on disk and is addressed by file:// URLs.
	base, err := filepath.Abs(cfg.StoragePath)
	if err != nil {
		kv.Close()
		return nil, err
	}
	media, err := storage.NewFileStore(base, "file://"+filepath.ToSlash(base))
	if err != nil {
		kv.Close()
		return nil, err
	}

	return &runtime{
		cfg:      cfg,
		logger:   logger,
		client:   client,
		kv:       kv,
		profiles: profile.NewService(kv, cfg.MaxLogoBytes),
		media:    media,
	}, nil
}

func (rt *runtime) orchestrator(surfaceID string) *studio.Orchestrator {
	return studio.New(studio.Options{
		SurfaceID:    surfaceID,
		Images:       rt.client,
		Videos:       rt.client,
		Media:        rt.media,
		Scheduler:    scheduler.NewTicker(),
		PollInterval: rt.cfg.VideoPollInterval,
		Logger:       &rt.logger,
	})
}

func (rt *runtime) Close() {
	if err := rt.kv.Close(); err != nil {
		rt.logger.Warn().Err(err).Msg("close key-value store")
	}
}

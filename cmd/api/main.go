package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"bonaparks/internal/bookings"
	"bonaparks/internal/http/handlers"
	httpapi "bonaparks/internal/http/httpapi"
	"bonaparks/internal/infra"
	"bonaparks/internal/infra/geoip"
	"bonaparks/internal/profile"
	"bonaparks/internal/providers/genai"
	"bonaparks/internal/scheduler"
	"bonaparks/internal/storage"
	"bonaparks/internal/surface"
)

func main() {
	// Load .env (optional)
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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
		logger.Fatal().Err(err).Msg("failed to create generation client")
	}

	kv, err := storage.OpenKV(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.KVBackend).Msg("failed to open key-value store")
	}
	defer kv.Close()

	media, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare media storage")
	}

	resolver, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	defer resolver.Close()

	registry := surface.NewRegistry(surface.Options{
		Chat:         client,
		Images:       client,
		Videos:       client,
		Media:        media,
		Scheduler:    scheduler.NewTicker(),
		PollInterval: cfg.VideoPollInterval,
		IdleTimeout:  cfg.SurfaceIdleTimeout,
		Logger:       &logger,
	})
	go registry.Run(ctx)

	app := &handlers.App{
		Surfaces: registry,
		Profiles: profile.NewService(kv, cfg.MaxLogoBytes),
		Bookings: bookings.NewService(kv),
		Media:    media,
		Logger:   &logger,
	}

	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:          logger,
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		DefaultLocale:   cfg.DefaultLocale,
		CountryLookup:   resolver.Country,
		GenerationLimit: cfg.GenerationRateLimit,
		MediaPrefix:     cfg.StorageBaseURL,
	})

	server := infra.NewHTTPServer(cfg, router)

	logger.Info().Str("kv_backend", cfg.KVBackend).Msgf("API listening on :%s", cfg.Port)
	// Closing surfaces first ends open event streams so the drain can finish.
	if err := server.Run(ctx, registry.CloseAll); err != nil {
		logger.Error().Err(err).Msg("http server failed")
	}
	logger.Info().Msg("server stopped")
}

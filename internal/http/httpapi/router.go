package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"bonaparks/internal/http/handlers"
	"bonaparks/internal/middleware"
)

// Options tunes the router's middleware stack.
type Options struct {
	Logger         zerolog.Logger
	AllowedOrigins []string
	DefaultLocale  string
	CountryLookup  middleware.CountryLookup
	// GenerationLimit caps generation requests per owner per minute; 0
	// disables the limit.
	GenerationLimit int
	MediaPrefix     string
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
		middleware.Owner,
	)
	limit := middleware.RateLimit(opts.GenerationLimit, time.Minute, middleware.ByClientIP)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)

	r.Route("/v1/surfaces", func(r chi.Router) {
		r.Post("/", app.CreateSurface)
		r.Route("/{id}", func(r chi.Router) {
			r.Delete("/", app.DeleteSurface)
			r.Get("/messages", app.ListMessages)
			r.With(limit).Post("/messages", app.SendMessage)
			r.With(limit).Post("/messages/{messageID}/retry", app.RetryMessage)
			r.Get("/tasks", app.ListTasks)
			r.Post("/tasks/cancel", app.CancelTask)
			r.With(limit).Post("/images", app.SubmitImage)
			r.With(limit).Post("/videos", app.SubmitVideo)
			r.With(limit).Post("/videos/edit", app.EditVideo)
			r.Get("/events", app.Events)
		})
	})

	r.Route("/v1/profile/logo", func(r chi.Router) {
		r.Get("/", app.GetLogo)
		r.Put("/", app.PutLogo)
		r.Delete("/", app.DeleteLogo)
	})

	r.Route("/v1/bookings", func(r chi.Router) {
		r.Get("/", app.ListBookings)
		r.Post("/", app.CreateBooking)
		r.Post("/{id}/redeem", app.RedeemBooking)
	})

	prefix := opts.MediaPrefix
	if prefix == "" || prefix[0] != '/' {
		prefix = "/media"
	}
	r.Get(prefix+"/*", app.ServeMedia)

	return r
}

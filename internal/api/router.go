package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/chatterbox/internal/api/middleware"
	"github.com/eldtechnologies/chatterbox/internal/attachment"
	"github.com/eldtechnologies/chatterbox/internal/chat"
	"github.com/eldtechnologies/chatterbox/internal/config"
	"github.com/eldtechnologies/chatterbox/internal/delivery"
	"github.com/eldtechnologies/chatterbox/internal/handlers"
	"github.com/eldtechnologies/chatterbox/internal/presence"
	"github.com/eldtechnologies/chatterbox/internal/store"
)

// Options wires the router to its backing services.
type Options struct {
	Config    *config.Config
	Store     store.DataStore
	StoreKind string
	Redis     *store.RedisStore // optional
	Files     attachment.Store
	Presence  *presence.Registry
	Logger    zerolog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(opts Options) *chi.Mux {
	cfg := opts.Config
	logger := opts.Logger

	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(cfg.MaxUploadBytes))
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting
	limiter := middleware.NewRateLimiter(opts.Redis.Client(), logger, middleware.RateLimiterConfig{
		Whitelist:        cfg.RateLimitWhitelist,
		AutoBlockEnabled: cfg.AutoBlockEnabled,
	})
	r.Use(limiter.Middleware)

	// CORS - the web client sends the session cookie
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	fanout := delivery.New(opts.Presence, logger)
	h := handlers.NewHandler(handlers.Options{
		Store:          opts.Store,
		Redis:          opts.Redis,
		StoreKind:      opts.StoreKind,
		Files:          opts.Files,
		Presence:       opts.Presence,
		Chat:           chat.NewService(opts.Store, opts.Files, fanout, logger),
		Contacts:       chat.NewContacts(opts.Store),
		MaxUploadBytes: cfg.MaxUploadBytes,
		AllowedOrigins: cfg.CORSOrigins,
		TrustProxy:     cfg.TrustProxy,
		Logger:         logger,
	})
	auth := middleware.NewAuthMiddleware(opts.Store, []byte(cfg.JWTSecret), logger)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Locally stored attachments, read-only
	if local, ok := opts.Files.(*attachment.LocalStore); ok {
		r.Handle(attachment.UploadsPath+"*", serveUploads(local.Dir()))
	}

	// Public routes (no auth required)
	r.Get("/api/health", h.Health)
	r.Get("/api/stats", h.Stats)

	// Authenticated routes (require a session token)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)

		r.Get("/ws", h.WebSocket)

		r.Route("/api/contacts", func(r chi.Router) {
			r.Get("/", h.ListContacts)
			r.Get("/online", h.OnlineContacts)
			r.Delete("/{id}", h.HideContact)
		})

		r.Route("/api/messages", func(r chi.Router) {
			r.Get("/{id}", h.GetMessages)
			r.Post("/send/{id}", h.SendMessage)
			r.Delete("/{id}", h.DeleteMessage)
		})
	})

	return r
}

// serveUploads serves files from dir without directory listings.
func serveUploads(dir string) http.Handler {
	fs := http.StripPrefix(attachment.UploadsPath, http.FileServer(http.Dir(dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		fs.ServeHTTP(w, r)
	})
}

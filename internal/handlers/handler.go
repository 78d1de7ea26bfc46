package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/chatterbox/internal/attachment"
	"github.com/eldtechnologies/chatterbox/internal/chat"
	"github.com/eldtechnologies/chatterbox/internal/presence"
	"github.com/eldtechnologies/chatterbox/internal/store"
)

var errBadRequest = errors.New("malformed request")

// Options carries the dependencies shared by all HTTP handlers.
type Options struct {
	Store          store.DataStore
	Redis          *store.RedisStore // nil when Redis is not configured
	StoreKind      string
	Files          attachment.Store
	Presence       *presence.Registry
	Chat           *chat.Service
	Contacts       *chat.Contacts
	MaxUploadBytes int64
	AllowedOrigins []string
	TrustProxy     bool // honour X-Forwarded-Proto in attachment URLs
	Logger         zerolog.Logger
}

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	store          store.DataStore
	redis          *store.RedisStore
	storeKind      string
	files          attachment.Store
	presence       *presence.Registry
	chat           *chat.Service
	contacts       *chat.Contacts
	maxUploadBytes int64
	allowedOrigins []string
	trustProxy     bool
	logger         zerolog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(opts Options) *Handler {
	return &Handler{
		store:          opts.Store,
		redis:          opts.Redis,
		storeKind:      opts.StoreKind,
		files:          opts.Files,
		presence:       opts.Presence,
		chat:           opts.Chat,
		contacts:       opts.Contacts,
		maxUploadBytes: opts.MaxUploadBytes,
		allowedOrigins: opts.AllowedOrigins,
		trustProxy:     opts.TrustProxy,
		logger:         opts.Logger.With().Str("component", "http").Logger(),
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// Fail maps a domain error onto an HTTP status and writes it. Server
// errors are logged; their details are not exposed.
func (h *Handler) Fail(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
	}
	h.Error(w, status, message)
}

func statusFor(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "request body too large"
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, attachment.ErrInvalidAttachment):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, chat.ErrEmptyMessage):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, chat.ErrUnknownRecipient):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, chat.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, chat.ErrForbidden):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, attachment.ErrStorage):
		return http.StatusInternalServerError, "failed to store attachment"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// Package gateway exposes the daemon over HTTP: JSON endpoints mirroring
// the gRPC services, a WebSocket conversation stream and /metrics.
package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/matheus3301/crewchat/internal/crew"
	"github.com/matheus3301/crewchat/internal/feed"
	"github.com/matheus3301/crewchat/internal/identity"
	"github.com/matheus3301/crewchat/internal/message"
	"github.com/matheus3301/crewchat/internal/messaging"
	"github.com/matheus3301/crewchat/internal/presence"
	"github.com/matheus3301/crewchat/internal/status"
	"github.com/matheus3301/crewchat/internal/store"
	"go.uber.org/zap"
)

// Deps are the daemon components the gateway serves.
type Deps struct {
	Client    *messaging.Client
	Directory *crew.Directory
	DB        *store.DB
	Tracker   *presence.Tracker
	Tokens    *identity.TokenService
	Machine   *status.Machine
	Metrics   http.Handler
	Logger    *zap.Logger
}

// Options tunes the router.
type Options struct {
	CORSOrigins    []string
	Feed           feed.Options
	RequestTimeout time.Duration
}

type handlers struct {
	Deps
	opts Options
}

// NewRouter constructs the HTTP router.
func NewRouter(d Deps, opts Options) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	h := &handlers{Deps: d, opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(d.Logger))
	r.Use(middleware.Recoverer)

	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", h.handleHealth)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(AuthMiddleware(d.Tokens))
		r.Use(middleware.Timeout(opts.RequestTimeout))

		r.Get("/me", h.handleMe)
		r.Get("/search", h.handleSearch)
		r.Post("/direct", h.handleOpenDirect)

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", h.handleListConversations)
			r.Get("/{conversationID}/messages", h.handleListMessages)
			r.Post("/{conversationID}/messages", h.handleSendMessage)
			r.Post("/{conversationID}/messages/{key}/retry", h.handleRetryMessage)
			r.Get("/{conversationID}/feed", h.handleFeed)
		})

		r.Route("/crews", func(r chi.Router) {
			r.Post("/join", h.handleJoinCrew)
			r.Post("/{crewID}/channels", h.handleOpenCrewChannel)
			r.Post("/{crewID}/invites", h.handleCreateInvite)
			r.Get("/{crewID}/members", h.handleListMembers)
			r.Get("/{crewID}/presence", h.handleListPresence)
			r.Put("/{crewID}/presence", h.handleSetPresence)
		})
	})

	r.With(AuthMiddleware(d.Tokens)).Get("/ws/conversations/{conversationID}", h.handleWatch)
	return r
}

func (h *handlers) handleHealth(w http.ResponseWriter, _ *http.Request) {
	state := "UNKNOWN"
	if h.Machine != nil {
		state = string(h.Machine.Current())
	}
	code := http.StatusOK
	if state != string(status.Ready) {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": state})
}

// writeJSON is a small helper to send JSON responses.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

type errorBody struct {
	Error string            `json:"error"`
	Kind  message.ErrorKind `json:"kind"`
}

// writeError maps a classified error to its HTTP status.
func writeError(w http.ResponseWriter, err error) {
	kind := message.KindOf(err)
	writeJSON(w, httpStatus(kind), errorBody{Error: err.Error(), Kind: kind})
}

func httpStatus(kind message.ErrorKind) int {
	switch kind {
	case message.KindValidation:
		return http.StatusBadRequest
	case message.KindNotAuthorized:
		return http.StatusForbidden
	case message.KindNotFound:
		return http.StatusNotFound
	case message.KindTransient:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return message.Validation("decode request", "invalid JSON body")
	}
	return nil
}

package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"marketchat/internal/config"
	"marketchat/internal/domain"
	"marketchat/internal/moderation"
	"marketchat/internal/security"
	"marketchat/internal/service"
	"marketchat/internal/ws"
)

// NewRouter constructs the main HTTP router and wires routes, services,
// and middleware. Repositories are passed in so the same wiring serves
// both store drivers (and fakes in tests).
func NewRouter(
	cfg *config.Config,
	log *slog.Logger,
	items domain.ItemRepository,
	convs domain.ConversationRepository,
	msgs domain.MessageRepository,
	registry *ws.Registry,
	tokens *security.TokenService,
	checker moderation.Checker,
) http.Handler {
	r := chi.NewRouter()

	// Middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Services
	convSvc := service.NewConversationService(items, convs, registry)
	msgSvc := service.NewMessageService(convs, msgs, checker, registry, log)
	if cfg.Chat.PageSize > 0 {
		msgSvc.PageSize = cfg.Chat.PageSize
	}
	relay := service.NewPresenceRelay(convs, registry)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	// REST fallback surface for clients without a live push connection.
	// The request timeout stays off the /ws route; sockets are long-lived.
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(tokens))

			r.Route("/conversations", func(r chi.Router) {
				r.Post("/", handleCreateConversation(convSvc, log))
				r.Get("/", handleListConversations(convSvc, log))
				r.Get("/{conversationID}", handleGetConversation(convSvc, log))
				r.Post("/{conversationID}/read", handleMarkConversationRead(msgSvc, log))
				r.Get("/{conversationID}/messages", handleListMessages(msgSvc, log))
				r.Post("/{conversationID}/messages", handleCreateMessage(msgSvc, log))
			})
		})
	})

	// WebSocket endpoint
	r.Get("/ws", ws.MakeHandler(registry, tokens, msgSvc, relay, cfg.Server.CORSOrigins, log))

	return r
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(wrapped, r)
			log.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

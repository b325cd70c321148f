package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"marketchat/internal/domain"
	"marketchat/internal/security"
	"marketchat/internal/service"
	"marketchat/internal/wire"
)

func normalizeAllowedOrigins(origins []string) map[string]struct{} {
	res := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimSpace(strings.ToLower(origin))
		if o != "" {
			res[o] = struct{}{}
		}
	}
	return res
}

func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := normalizeAllowedOrigins(allowedOrigins)
	if len(allowed) == 0 {
		return func(r *http.Request) bool {
			return false
		}
	}

	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" {
			// Non-browser clients (CLI tools, the Go client) send no Origin.
			return true
		}
		if _, ok := allowed[origin]; ok {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		normalized := strings.ToLower(fmt.Sprintf("%s://%s", u.Scheme, u.Host))
		_, ok := allowed[normalized]
		return ok
	}
}

func extractToken(r *http.Request) string {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		if token := strings.TrimSpace(authHeader[len("Bearer "):]); token != "" {
			return token
		}
	}

	// Browsers cannot set Authorization on a WebSocket upgrade; the token
	// rides in the subprotocol list instead: "bearer, <token>".
	protocolHeader := r.Header.Get("Sec-WebSocket-Protocol")
	if protocolHeader != "" {
		parts := strings.Split(protocolHeader, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) >= 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}

	return ""
}

// MakeHandler returns the HTTP handler for the /ws endpoint.
// Authenticates via Bearer token (Authorization header or
// Sec-WebSocket-Protocol), registers the connection, then dispatches
// inbound envelopes:
//   - send_message -> validate, persist, push to recipient, ack sender
//   - mark_read    -> atomic read flip + notify peer
//   - typing       -> ephemeral relay to peer
//   - ping         -> pong
//
// A failed operation answers with an error envelope; only a closed
// socket or a failed liveness check ends the connection.
func MakeHandler(
	registry *Registry,
	tokens *security.TokenService,
	msgSvc *service.MessageService,
	relay *service.PresenceRelay,
	allowedOrigins []string,
	log *slog.Logger,
) http.HandlerFunc {
	checkOrigin := makeCheckOrigin(allowedOrigins)
	upgrader := websocket.Upgrader{
		CheckOrigin: checkOrigin,
		Subprotocols: []string{
			"bearer",
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		tokenStr := extractToken(r)
		if tokenStr == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		userID, err := tokens.Parse(tokenStr)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		wsc, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		conn := NewConnection(userID, wsc)
		registry.Register(conn)
		defer func() {
			registry.Unregister(conn)
			conn.Close(websocket.CloseNormalClosure, "bye")
		}()

		ctx := r.Context()
		for {
			var env wire.Envelope
			if err := wsc.ReadJSON(&env); err != nil {
				return
			}

			switch env.Type {

			case wire.TypeSendMessage:
				if env.ConversationID == 0 {
					sendError(conn, "send_message requires conversation_id")
					continue
				}
				msg, delivered, err := msgSvc.Send(ctx, userID, env.ConversationID, env.Content)
				if err != nil {
					log.Warn("ws send_message", "user_id", userID, "err", err)
					sendError(conn, userMessage(err, "failed to send message"))
					continue
				}
				// The ack goes to the originating connection regardless of
				// whether the recipient was reachable.
				ack, _ := json.Marshal(wire.Envelope{
					Type:           wire.TypeMessageSent,
					ConversationID: env.ConversationID,
					Message:        service.ToWire(msg),
					Delivered:      delivered > 0,
				})
				if err := conn.Send(ack); err != nil {
					return
				}

			case wire.TypeMarkRead:
				if env.ConversationID == 0 {
					continue
				}
				if err := msgSvc.MarkRead(ctx, userID, env.ConversationID); err != nil {
					log.Warn("ws mark_read", "user_id", userID, "err", err)
					sendError(conn, userMessage(err, "failed to mark messages as read"))
				}

			case wire.TypeTyping:
				if env.ConversationID == 0 {
					continue
				}
				if err := relay.Typing(ctx, userID, env.ConversationID, env.IsTyping); err != nil {
					sendError(conn, userMessage(err, "typing relay failed"))
				}

			case wire.TypePing:
				pong, _ := json.Marshal(wire.Envelope{Type: wire.TypePong})
				if err := conn.Send(pong); err != nil {
					return
				}

			default:
				log.Debug("unknown envelope type", "type", env.Type, "user_id", userID)
			}
		}
	}
}

// userMessage picks a safe message for the client: domain failures are
// specific, infrastructure failures stay generic.
func userMessage(err error, fallback string) string {
	var modErr *domain.ModerationError
	switch {
	case errors.As(err, &modErr):
		return modErr.Error()
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrForbidden),
		errors.Is(err, domain.ErrNotFound):
		return err.Error()
	default:
		return fallback
	}
}

func sendError(c *Connection, msg string) {
	data, _ := json.Marshal(wire.Envelope{
		Type:  wire.TypeError,
		Error: msg,
	})
	_ = c.Send(data)
}

package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/handlers"
	"github.com/npezzotti/staffchat/internal/chat"
	"github.com/npezzotti/staffchat/internal/config"
	"github.com/npezzotti/staffchat/internal/database"
	"github.com/npezzotti/staffchat/internal/server"
	"github.com/rs/zerolog"
)

// ChatApp is the HTTP surface: REST chat routes, login, health and the
// websocket upgrade.
type ChatApp struct {
	log            zerolog.Logger
	db             database.ChatRepository
	chat           *chat.Service
	cs             *server.ChatServer
	srv            *http.Server
	signingKey     []byte
	allowedOrigins []string
}

func NewChatApp(mux *http.ServeMux, logger zerolog.Logger, cs *server.ChatServer, svc *chat.Service, db database.ChatRepository, cfg *config.Config) *ChatApp {
	s := &ChatApp{
		log:            logger.With().Str("component", "api").Logger(),
		db:             db,
		chat:           svc,
		cs:             cs,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.HandleFunc("GET /api/auth/logout", s.logout)

	mux.HandleFunc("POST /api/chat/rooms", s.authMiddleware(s.createRoom))
	mux.HandleFunc("GET /api/chat/rooms", s.authMiddleware(s.getRooms))
	mux.HandleFunc("GET /api/chat/rooms/{roomId}", s.authMiddleware(s.getRoom))
	mux.HandleFunc("GET /api/chat/rooms/{roomId}/messages", s.authMiddleware(s.getMessages))
	mux.HandleFunc("POST /api/chat/rooms/{roomId}/messages", s.authMiddleware(s.sendMessage))
	mux.HandleFunc("PATCH /api/chat/rooms/{roomId}/read", s.authMiddleware(s.markRead))
	mux.HandleFunc("GET /api/chat/unread-count", s.authMiddleware(s.unreadCount))

	mux.HandleFunc("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.limitBody(server.MaxMessageSize)(h)
	h = s.errorHandler(h)
	h = s.accessLog(h)
	h = middleware.RequestID(h)

	s.srv = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

func (s *ChatApp) Handler() http.Handler {
	return s.srv.Handler
}

func (s *ChatApp) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("starting server")
	return s.srv.ListenAndServe()
}

func (s *ChatApp) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}

// Package http exposes the relay core over HTTP: JSON endpoints for
// send/fetch/read/unread, plus SSE and WebSocket subscription streams.
package http

import (
	"log/slog"
	"net/http"

	"deskrelay/auth"
	"deskrelay/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

// NewRouter wires the relay endpoints. Everything under /api requires
// an authenticated participant.
func NewRouter(log *slog.Logger, service services.IRelayService, verifier *auth.Verifier) http.Handler {
	h := &handler{
		log:     log,
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(log, w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(auth.Middleware(verifier))
		api.Post("/messages", h.sendMessage)
		api.Get("/threads/{memberID}", h.fetchThread)
		api.Post("/messages/{id}/read", h.markRead)
		api.Get("/unread", h.getUnread)
		api.Get("/subscribe", h.subscribeSSE)
		api.Get("/ws", h.subscribeWS)
	})

	return r
}

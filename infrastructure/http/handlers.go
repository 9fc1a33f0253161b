package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"deskrelay/auth"
	"deskrelay/domain"
	"deskrelay/errors"
	"deskrelay/services"
	"deskrelay/session"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

type handler struct {
	log      *slog.Logger
	service  services.IRelayService
	upgrader websocket.Upgrader
}

type sendMessageRequest struct {
	TargetMemberID *string `json:"target_member_id,omitempty"`
	Content        string  `json:"content"`
}

type messageResponse struct {
	ID          uint64    `json:"id"`
	SenderID    string    `json:"sender_id"`
	RecipientID *string   `json:"recipient_id,omitempty"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
	IsRead      bool      `json:"is_read"`
}

type unreadResponse struct {
	Count  int               `json:"count"`
	Recent []messageResponse `json:"recent"`
}

// eventResponse is the wire shape of both stream transports. Type is
// "message" for new content and "read" for a read receipt.
type eventResponse struct {
	Type    string          `json:"type"`
	Message messageResponse `json:"message"`
}

func (h *handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(h.log, w, http.StatusBadRequest, "invalid request body")
		return
	}
	message, err := h.service.SendMessage(r.Context(), caller, req.TargetMemberID, req.Content)
	if err != nil {
		respondError(h.log, w, errors.MapToStatus(err), err.Error())
		return
	}
	respondJSON(h.log, w, http.StatusCreated, toMessageResponse(message))
}

func (h *handler) fetchThread(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	memberID := chi.URLParam(r, "memberID")
	// A member may only read their own thread. Operators see any.
	if caller.Class == domain.ClassMember && memberID != caller.ID {
		respondError(h.log, w, http.StatusForbidden, "thread belongs to another member")
		return
	}
	since, err := parseSince(r.URL.Query().Get("since"))
	if err != nil {
		respondError(h.log, w, http.StatusBadRequest, "since must be a message id")
		return
	}
	messages, err := h.service.FetchThread(memberID, since)
	if err != nil {
		respondError(h.log, w, errors.MapToStatus(err), err.Error())
		return
	}
	respondJSON(h.log, w, http.StatusOK, lo.Map(messages, func(m domain.Message, _ int) messageResponse {
		return toMessageResponse(m)
	}))
}

func (h *handler) markRead(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(h.log, w, http.StatusBadRequest, "id must be a message id")
		return
	}
	// An already read message, an unknown id, or a message outside the
	// caller's visibility is a no-op success.
	if err := h.service.MarkRead(r.Context(), caller, domain.MessageID(id)); err != nil {
		respondError(h.log, w, errors.MapToStatus(err), err.Error())
		return
	}
	respondJSON(h.log, w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *handler) getUnread(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	state := h.service.GetUnread(caller)
	respondJSON(h.log, w, http.StatusOK, unreadResponse{
		Count: state.Count,
		Recent: lo.Map(state.Recent, func(m domain.Message, _ int) messageResponse {
			return toMessageResponse(m)
		}),
	})
}

func toMessageResponse(m domain.Message) messageResponse {
	return messageResponse{
		ID:          uint64(m.ID),
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Content:     m.Content,
		CreatedAt:   m.CreatedAt,
		IsRead:      m.IsRead,
	}
}

func toEventResponse(env session.Envelope) eventResponse {
	return eventResponse{
		Type:    string(env.Kind),
		Message: toMessageResponse(env.Message),
	}
}

func parseSince(raw string) (domain.MessageID, error) {
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return domain.MessageID(id), nil
}

func respondJSON(log *slog.Logger, w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error("failed to encode response", "error", err)
	}
}

func respondError(log *slog.Logger, w http.ResponseWriter, status int, message string) {
	respondJSON(log, w, status, map[string]string{"error": message})
}

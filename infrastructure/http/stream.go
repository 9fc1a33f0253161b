package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"deskrelay/auth"
	"deskrelay/domain"
	"deskrelay/errors"
	"deskrelay/session"

	"github.com/gorilla/websocket"
)

// resolveThread decides which thread a subscription backfills.
// A member always resumes their own thread. An operator resumes the
// member thread they are viewing when ?member= is given; without it
// the stream is live-only (the notification bell case).
func resolveThread(caller domain.Participant, r *http.Request) string {
	if caller.Class == domain.ClassMember {
		return caller.ID
	}
	return r.URL.Query().Get("member")
}

// subscribeSSE streams backlog then live events as Server-Sent Events.
// The subscription is released on every exit path: client disconnect,
// write failure, or server shutdown.
func (h *handler) subscribeSSE(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(h.log, w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	since, err := parseSince(r.URL.Query().Get("since"))
	if err != nil {
		respondError(h.log, w, http.StatusBadRequest, "since must be a message id")
		return
	}

	sess, backlog, err := h.service.OpenSession(caller, resolveThread(caller, r), since)
	if err != nil {
		respondError(h.log, w, errors.MapToStatus(err), err.Error())
		return
	}
	defer sess.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for _, env := range backlog {
		if err := writeSSE(w, flusher, env); err != nil {
			return
		}
	}

	for {
		select {
		case <-r.Context().Done():
			h.log.Debug("subscriber disconnected",
				"participant_id", caller.ID, "cursor", uint64(sess.Cursor()))
			return
		case evt := <-sess.Live():
			env, deliver := sess.Apply(evt)
			if !deliver {
				continue
			}
			if err := writeSSE(w, flusher, env); err != nil {
				h.log.Debug("failed to push event to stream",
					"participant_id", caller.ID, "error", err)
				return
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, env session.Envelope) error {
	payload, err := json.Marshal(toMessageResponse(env.Message))
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", env.Kind, payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// subscribeWS serves the same contract over a WebSocket. A reader
// goroutine watches for the client closing the socket and cancels the
// write loop.
func (h *handler) subscribeWS(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	since, err := parseSince(r.URL.Query().Get("since"))
	if err != nil {
		respondError(h.log, w, http.StatusBadRequest, "since must be a message id")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sess, backlog, err := h.service.OpenSession(caller, resolveThread(caller, r), since)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, err.Error()),
			time.Now().Add(time.Second))
		return
	}
	defer sess.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for _, env := range backlog {
		if err := conn.WriteJSON(toEventResponse(env)); err != nil {
			return
		}
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-closed:
			h.log.Debug("websocket subscriber disconnected",
				"participant_id", caller.ID, "cursor", uint64(sess.Cursor()))
			return
		case evt := <-sess.Live():
			env, deliver := sess.Apply(evt)
			if !deliver {
				continue
			}
			if err := conn.WriteJSON(toEventResponse(env)); err != nil {
				return
			}
		}
	}
}

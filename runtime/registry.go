package runtime

import (
	"sync"

	"deskrelay/contract"
	"deskrelay/domain"
)

type liveSession struct {
	participant domain.Participant
	sink        contract.EventSink
}

// Registry tracks live subscriber sessions. A participant may hold any
// number of concurrent sessions (several tabs, several devices); each
// registers its own sink under its own session id.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]liveSession
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]liveSession)}
}

// Subscribe registers a session's sink. The subscription lives until
// Unsubscribe; callers are expected to defer the release so it runs on
// every exit path of the connection handler.
func (r *Registry) Subscribe(sessionID string, p domain.Participant, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionID] = liveSession{participant: p, sink: sink}
}

func (r *Registry) Unsubscribe(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}

// MatchingSinks resolves the delivery set for a message: the direct
// recipient's sessions, every operator session for a pool message, and
// the sender's own sessions so their other tabs see the echo.
func (r *Registry) MatchingSinks(m domain.Message) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sinks []contract.EventSink
	for _, s := range r.sessions {
		if m.VisibleTo(s.participant) {
			sinks = append(sinks, s.sink)
		}
	}
	return sinks
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

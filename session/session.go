// Package session implements the per-connection view of the relay:
// backlog replay after the last cursor, then live delivery, with every
// message applied at most once per id.
package session

import (
	"sync"

	"deskrelay/contract"
	"deskrelay/domain"
	"deskrelay/domain/event"
	"deskrelay/sink"

	"github.com/google/uuid"
)

type State int

const (
	StateBackfilling State = iota
	StateLive
	StateClosed
)

type Kind string

const (
	KindMessage Kind = "message"
	KindRead    Kind = "read"
)

// Envelope is what a session emits to its transport.
type Envelope struct {
	Kind    Kind
	Message domain.Message
}

// Session owns one subscriber's cursor and de-duplication state. The
// transport handler drives it: register the sink, feed the backlog,
// then apply live events until the connection ends.
//
// The sequence a session emits across any number of reconnects equals,
// in id order and without gaps or duplicates, what a continuously
// connected session would have emitted: the sink is registered before
// the backlog query runs, so an event is always in the backlog, in the
// live buffer, or both, and Apply drops the overlap by id.
//
// The cursor orders exactly one thread, the one named at New and fed
// to Backfill. An operator session also receives live events from
// other members' threads; those carry unrelated, possibly lower ids
// and de-duplicate through the applied set alone.
type Session struct {
	ID string

	participant domain.Participant
	stream      *sink.StreamSink
	thread      string
	cursor      domain.MessageID
	applied     map[domain.MessageID]struct{}
	state       State

	release   func()
	closeOnce sync.Once
}

func New(p domain.Participant, thread string, since domain.MessageID, bufferSize int) *Session {
	return &Session{
		ID:          uuid.NewString(),
		participant: p,
		stream:      sink.NewStreamSink(bufferSize),
		thread:      thread,
		cursor:      since,
		applied:     make(map[domain.MessageID]struct{}),
		state:       StateBackfilling,
	}
}

func (s *Session) Participant() domain.Participant { return s.participant }
func (s *Session) Sink() contract.EventSink        { return s.stream }
func (s *Session) Cursor() domain.MessageID        { return s.cursor }
func (s *Session) State() State                    { return s.state }

// OnRelease installs the unsubscribe callback Close runs exactly once.
func (s *Session) OnRelease(fn func()) { s.release = fn }

// Backfill applies stored history in id order and moves the session to
// Live. Messages at or below the reconnect cursor are skipped.
func (s *Session) Backfill(messages []domain.Message) []Envelope {
	out := make([]Envelope, 0, len(messages))
	for _, m := range messages {
		if env, ok := s.apply(m); ok {
			out = append(out, env)
		}
	}
	s.state = StateLive
	return out
}

// Live exposes the channel the broker fanout delivers into.
func (s *Session) Live() <-chan event.DomainEvent { return s.stream.Events }

// Apply folds one live event into the session. The boolean reports
// whether the envelope must be forwarded; applying an already seen
// message id is a no-op.
func (s *Session) Apply(e event.DomainEvent) (Envelope, bool) {
	switch evt := e.(type) {
	case event.MessageStored:
		return s.apply(evt.Message)
	case event.MessageRead:
		// Read receipts carry no new content and are idempotent on the
		// client; forward them as is so bells converge.
		return Envelope{Kind: KindRead, Message: evt.Message}, true
	}
	return Envelope{}, false
}

func (s *Session) apply(m domain.Message) (Envelope, bool) {
	if _, seen := s.applied[m.ID]; seen {
		return Envelope{}, false
	}
	inThread := m.Conversation() == s.thread
	if inThread && m.ID <= s.cursor {
		return Envelope{}, false
	}
	s.applied[m.ID] = struct{}{}
	if inThread {
		s.cursor = m.ID
	}
	return Envelope{Kind: KindMessage, Message: m}, true
}

// Close releases the subscription. Safe to call from every exit path;
// the release callback runs exactly once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.state = StateClosed
		if s.release != nil {
			s.release()
		}
	})
}

// Package runtime wires the store, the broker fanout, and the derived
// projections together. It owns channels and lifecycles, not domain
// rules.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"deskrelay/contract"
	"deskrelay/domain"
	"deskrelay/domain/event"
	"deskrelay/projection"
	"deskrelay/runtime/workers"
)

type Orchestrator struct {
	log        *slog.Logger
	supervisor contract.ISupervisor
	registry   contract.IRegistry
	repository contract.IMessageRepository
	board      *projection.UnreadBoard

	events      chan event.DomainEvent
	sinkTimeout time.Duration
	lifecycle   context.Context

	mu        sync.Mutex
	convLocks map[string]*sync.Mutex
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor,
	registry contract.IRegistry, repository contract.IMessageRepository,
	board *projection.UnreadBoard, bufferSize int, sinkTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		log:         log,
		supervisor:  supervisor,
		registry:    registry,
		repository:  repository,
		board:       board,
		events:      make(chan event.DomainEvent, bufferSize),
		sinkTimeout: sinkTimeout,
		lifecycle:   context.Background(),
		convLocks:   make(map[string]*sync.Mutex),
	}
}

// Start rebuilds the unread projection from the store, then runs the
// fanout under supervision. The projection contract requires the board
// to be reconstructible from the repository alone; startup exercises
// that path every time.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.lifecycle = ctx
	unread, err := o.repository.Unread()
	if err != nil {
		return fmt.Errorf("unread rebuild: %w", err)
	}
	o.board.Rebuild(unread)
	o.log.Info("Unread board rebuilt", "messages", len(unread))

	fanout := workers.NewEventFanout(o.log, o.events, o.registry, o.sinkTimeout, o.board)
	o.supervisor.Add(fanout)
	go o.supervisor.Run(ctx)
	return nil
}

// Send resolves the addressing rule, appends, then publishes. A stored
// message is published exactly once; a failed append publishes nothing.
// Append and publish run under the conversation's lock: the id is
// assigned inside the critical section, so events enter the fanout
// channel in id order within a thread. Without that, a concurrent send
// could overtake a lower id and live sessions would drop the inverted
// message as already seen.
func (o *Orchestrator) Send(ctx context.Context, cmd domain.SendCommand) (domain.Message, error) {
	recipientID, err := domain.ResolveRecipient(cmd.Sender, cmd.TargetMember)
	if err != nil {
		return domain.Message{}, err
	}
	lock := o.conversationLock(domain.ConversationKey(cmd.Sender.ID, recipientID))
	lock.Lock()
	defer lock.Unlock()

	message, err := o.repository.Append(cmd.Sender.ID, recipientID, cmd.Content)
	if err != nil {
		return domain.Message{}, err
	}
	o.dispatch(event.MessageStored{
		Message:      message,
		Conversation: message.Conversation(),
	})
	return message, nil
}

// Thread returns the ordered history of a member's conversation with
// the operator side, starting after the given cursor.
func (o *Orchestrator) Thread(memberID string, since domain.MessageID) ([]domain.Message, error) {
	return o.repository.Query(memberID, since)
}

// MarkRead flips the shared read flag on behalf of a reader. Only an
// actual transition emits a MessageRead event, so the projection
// decrements at most once no matter how many sessions race on the same
// id. The receipt is published under the conversation lock so it can
// never overtake the MessageStored event it refers to.
func (o *Orchestrator) MarkRead(ctx context.Context, reader domain.Participant, id domain.MessageID) error {
	message, flipped, err := o.repository.MarkRead(reader, id)
	if err != nil {
		return err
	}
	if !flipped {
		return nil
	}
	lock := o.conversationLock(message.Conversation())
	lock.Lock()
	defer lock.Unlock()
	o.dispatch(event.MessageRead{
		Message:      message,
		Conversation: message.Conversation(),
	})
	return nil
}

// Unread reads the cached projection for one participant.
func (o *Orchestrator) Unread(p domain.Participant) domain.UnreadState {
	return o.board.Snapshot(p)
}

func (o *Orchestrator) RegisterSession(sessionID string, p domain.Participant, sink contract.EventSink) {
	o.registry.Subscribe(sessionID, p, sink)
}

func (o *Orchestrator) UnregisterSession(sessionID string) {
	o.registry.Unsubscribe(sessionID)
}

// conversationLock returns the mutex serializing append and publish
// for one member thread. Locks are created on first use and kept for
// the process lifetime; the set of active threads is small.
func (o *Orchestrator) conversationLock(key string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.convLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		o.convLocks[key] = lock
	}
	return lock
}

// dispatch never drops on a caller's whim: the event feeds the unread
// projection, so delivery is bound to the process lifecycle, not to the
// request that produced the write. A sender that hangs up right after
// its POST must still reach the board. Only shutdown can lose an event,
// and the next Start rebuilds the board from the store anyway.
func (o *Orchestrator) dispatch(evt event.DomainEvent) {
	select {
	case o.events <- evt:
	case <-o.lifecycle.Done():
		o.log.Warn("event dropped during shutdown",
			"conversation", evt.ConversationKey())
	}
}

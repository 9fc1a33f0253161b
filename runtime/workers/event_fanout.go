package workers

import (
	"context"
	"log/slog"
	"time"

	"deskrelay/contract"
	"deskrelay/domain/event"
)

// EventFanout is the broker's delivery loop. A single goroutine drains
// the event channel, so every subscriber observes events in append
// order; the per-conversation ordering guarantee follows from the
// store's monotonic ids.
//
// Delivery to live sessions is best effort: a slow or full session
// costs one delivery timeout and misses the event, then heals through
// backfill on its next connect. The permanent sinks (projections) are
// served first and without timeout, because losing an event there
// would desync the unread board until the next rebuild.
type EventFanout struct {
	log            *slog.Logger
	events         chan event.DomainEvent
	registry       contract.IRegistry
	permanentSinks []contract.EventSink
	sinkTimeout    time.Duration
}

func NewEventFanout(log *slog.Logger, events chan event.DomainEvent,
	registry contract.IRegistry, sinkTimeout time.Duration,
	permanentSinks ...contract.EventSink) *EventFanout {
	return &EventFanout{
		log:            log,
		events:         events,
		registry:       registry,
		permanentSinks: permanentSinks,
		sinkTimeout:    sinkTimeout,
	}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case evt := <-w.events:
			w.Fanout(ctx, evt)
		case <-ctx.Done():
			w.log.Debug("Context done, stopping event fanout")
			return nil
		}
	}
}

// Fanout delivers one event to the projections and to every live
// session matching the subject message.
func (w *EventFanout) Fanout(ctx context.Context, evt event.DomainEvent) {
	for _, s := range w.permanentSinks {
		if err := s.Consume(ctx, evt); err != nil {
			w.log.Warn("permanent sink rejected event",
				"conversation", evt.ConversationKey(), "error", err)
		}
	}

	subject := evt.Subject()
	for _, s := range w.registry.MatchingSinks(subject) {
		deliveryCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		if err := s.Consume(deliveryCtx, evt); err != nil {
			// Not an error: the session is gone or too slow, and the
			// backlog replay covers it on reconnect.
			w.log.Debug("live delivery missed",
				"message_id", uint64(subject.ID), "error", err)
		}
		cancel()
	}
}

package sink

import (
	"context"

	"deskrelay/domain/event"
)

// StreamSink bridges the fanout to one live subscriber session.
type StreamSink struct {
	Events chan event.DomainEvent
}

func NewStreamSink(bufferSize int) *StreamSink {
	return &StreamSink{Events: make(chan event.DomainEvent, bufferSize)}
}

// Consume is called by the fanout. The event is handed to the owning
// session through the channel; delivery is bounded by the caller's
// context, so a full buffer on a slow subscriber costs one delivery
// timeout and the event is lost for that session only. The subscriber
// heals through backfill on its next connect.
func (s *StreamSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case s.Events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

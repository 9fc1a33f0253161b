// Package projection builds derived views from observed events.
// Projections are caches over the store and must stay rebuildable from
// it; they are never a second source of truth.
package projection

import (
	"context"
	"sort"
	"sync"

	"deskrelay/domain"
	"deskrelay/domain/event"

	"github.com/samber/lo"
)

// UnreadBoard keeps every unread message and answers per-participant
// unread queries by filtering. Holding whole messages rather than
// per-participant counters makes the shared read flag exact: one
// MarkRead removes the entry for every operator at once, and a count
// can never drift from the formula it is defined by.
type UnreadBoard struct {
	mu     sync.RWMutex
	unread map[domain.MessageID]domain.Message
}

func NewUnreadBoard() *UnreadBoard {
	return &UnreadBoard{unread: make(map[domain.MessageID]domain.Message)}
}

// Consume keeps the board current from fanout events. Duplicate
// deliveries are harmless: inserts and deletes are idempotent by id.
func (b *UnreadBoard) Consume(_ context.Context, e event.DomainEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch evt := e.(type) {
	case event.MessageStored:
		b.unread[evt.Message.ID] = evt.Message
	case event.MessageRead:
		delete(b.unread, evt.Message.ID)
	}
	return nil
}

// Rebuild replaces the board with the store's unread scan.
func (b *UnreadBoard) Rebuild(messages []domain.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unread = make(map[domain.MessageID]domain.Message, len(messages))
	for _, m := range messages {
		b.unread[m.ID] = m
	}
}

// Snapshot computes p's unread state: every unread message whose true
// recipient is p, with the newest RecentCap entries first.
func (b *UnreadBoard) Snapshot(p domain.Participant) domain.UnreadState {
	b.mu.RLock()
	matched := lo.Filter(lo.Values(b.unread), func(m domain.Message, _ int) bool {
		return m.Notifies(p)
	})
	b.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	recent := matched
	if len(recent) > domain.RecentCap {
		recent = recent[:domain.RecentCap]
	}
	return domain.UnreadState{
		ParticipantID: p.ID,
		Count:         len(matched),
		Recent:        recent,
	}
}

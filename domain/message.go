package domain

import "time"

// MessageID is assigned by the store. Ids are monotonic across the
// whole log, so comparing two ids total-orders any two messages.
type MessageID uint64

// Message represents an immutable relay event. Only IsRead ever
// changes, exactly once, from false to true.
type Message struct {
	ID          MessageID
	SenderID    string
	RecipientID *string // nil addresses the operator pool
	Content     string
	CreatedAt   time.Time
	IsRead      bool
}

// Pool reports whether the message is addressed to the operator pool.
func (m Message) Pool() bool { return m.RecipientID == nil }

// VisibleTo implements the delivery filter: the direct recipient, any
// operator for a pool message, and the sender's own live sessions.
func (m Message) VisibleTo(p Participant) bool {
	if m.SenderID == p.ID {
		return true
	}
	if m.Pool() {
		return p.Class == ClassOperator
	}
	return *m.RecipientID == p.ID
}

// Notifies reports whether p's unread state counts this message:
// a true recipient which is not the sender.
func (m Message) Notifies(p Participant) bool {
	if m.SenderID == p.ID {
		return false
	}
	if m.Pool() {
		return p.Class == ClassOperator
	}
	return *m.RecipientID == p.ID
}

// Conversation recovers the thread key of a stored message.
func (m Message) Conversation() string {
	return ConversationKey(m.SenderID, m.RecipientID)
}

// ConversationKey computes the thread a message belongs to, before or
// after it is stored. Only members address the pool, so a pool message
// belongs to its sender's thread; a direct reply belongs to the
// targeted member's thread.
func ConversationKey(senderID string, recipientID *string) string {
	if recipientID != nil {
		return *recipientID
	}
	return senderID
}

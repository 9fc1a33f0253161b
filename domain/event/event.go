package event

import "deskrelay/domain"

// DomainEvent is keyed by conversation so delivery can be serialized
// per member thread.
type DomainEvent interface {
	ConversationKey() string
	Subject() domain.Message
}

// MessageStored is published exactly once per successful append.
type MessageStored struct {
	Message      domain.Message
	Conversation string
}

func (e MessageStored) ConversationKey() string { return e.Conversation }
func (e MessageStored) Subject() domain.Message { return e.Message }

// MessageRead is published when a message transitions to read, so live
// sessions and the unread projection converge without polling.
type MessageRead struct {
	Message      domain.Message
	Conversation string
}

func (e MessageRead) ConversationKey() string { return e.Conversation }
func (e MessageRead) Subject() domain.Message { return e.Message }

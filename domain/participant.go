// Package domain contains core concepts of the relay system.
// Participants, messages, addressing rules, and unread state.
package domain

// Class separates the two participant populations. Members open
// conversations with the operator pool; operators answer them.
type Class string

const (
	ClassMember   Class = "member"
	ClassOperator Class = "operator"
)

func (c Class) Valid() bool {
	return c == ClassMember || c == ClassOperator
}

// Participant is the identity slice this core consumes from the
// external auth provider. Display metadata lives elsewhere.
type Participant struct {
	ID    string
	Class Class
}

package domain

// RecentCap bounds the recent list carried by an UnreadState.
const RecentCap = 5

// UnreadState is a derived snapshot for one participant. It is a
// projection of the store's unread messages, never authoritative.
type UnreadState struct {
	ParticipantID string
	Count         int
	Recent        []Message // newest first, at most RecentCap entries
}

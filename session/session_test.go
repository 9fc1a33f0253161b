package session

import (
	"context"
	"testing"

	"deskrelay/domain"
	"deskrelay/domain/event"

	"github.com/stretchr/testify/require"
)

var member = domain.Participant{ID: "m1", Class: domain.ClassMember}

func msg(id uint64) domain.Message {
	return domain.Message{ID: domain.MessageID(id), SenderID: "m1", Content: "x"}
}

func storedEvent(id uint64) event.MessageStored {
	m := msg(id)
	return event.MessageStored{Message: m, Conversation: m.Conversation()}
}

func Test_Backfill_Then_Live_Without_Duplicates(t *testing.T) {
	req := require.New(t)
	sess := New(member, "m1", 0, 8)
	req.Equal(StateBackfilling, sess.State())

	// Given the sink was registered before the backlog query, the same
	// message can arrive through both paths
	req.NoError(sess.Sink().Consume(context.Background(), storedEvent(2)))

	backlog := sess.Backfill([]domain.Message{msg(1), msg(2)})
	req.Equal(StateLive, sess.State())
	req.Len(backlog, 2)
	req.Equal(domain.MessageID(2), sess.Cursor())

	// The buffered live copy of id 2 is dropped, id 3 goes through
	_, deliver := sess.Apply(<-sess.Live())
	req.False(deliver)

	env, deliver := sess.Apply(storedEvent(3))
	req.True(deliver)
	req.Equal(KindMessage, env.Kind)
	req.Equal(domain.MessageID(3), sess.Cursor())
}

func Test_Backfill_Skips_Messages_At_Or_Below_The_Cursor(t *testing.T) {
	req := require.New(t)
	sess := New(member, "m1", 2, 8)

	backlog := sess.Backfill([]domain.Message{msg(1), msg(2), msg(3), msg(4)})
	req.Len(backlog, 2)
	req.Equal(domain.MessageID(3), backlog[0].Message.ID)
	req.Equal(domain.MessageID(4), backlog[1].Message.ID)
}

func Test_Reconnect_Sequence_Equals_Continuous_Sequence(t *testing.T) {
	req := require.New(t)
	history := []domain.Message{msg(1), msg(2), msg(3), msg(4), msg(5)}

	// A continuously connected session observes everything once
	continuous := New(member, "m1", 0, 8)
	var continuousIDs []domain.MessageID
	for _, env := range continuous.Backfill(history) {
		continuousIDs = append(continuousIDs, env.Message.ID)
	}

	// A session that saw 1-2, disconnected, and reconnects after 3-5
	// were appended while offline
	first := New(member, "m1", 0, 8)
	first.Backfill([]domain.Message{msg(1), msg(2)})
	cursor := first.Cursor()
	first.Close()

	second := New(member, "m1", cursor, 8)
	var reconnectIDs []domain.MessageID
	for _, env := range second.Backfill([]domain.Message{msg(3), msg(4), msg(5)}) {
		reconnectIDs = append(reconnectIDs, env.Message.ID)
	}

	// Concatenating what both connections observed equals the full
	// history: no gaps, no repeats
	observed := append([]domain.MessageID{1, 2}, reconnectIDs...)
	req.Equal(continuousIDs, observed)
}

func Test_Read_Receipts_Are_Forwarded_As_Is(t *testing.T) {
	req := require.New(t)
	sess := New(member, "m1", 0, 8)
	sess.Backfill([]domain.Message{msg(1)})

	read := msg(1)
	read.IsRead = true
	env, deliver := sess.Apply(event.MessageRead{Message: read, Conversation: read.Conversation()})
	req.True(deliver)
	req.Equal(KindRead, env.Kind)
	req.True(env.Message.IsRead)

	// A receipt never advances the message cursor
	req.Equal(domain.MessageID(1), sess.Cursor())
}

// The cursor orders one thread only. An operator viewing member A's
// thread still receives live pool traffic from member B; B's ids are
// unrelated to A's cursor and must never be mistaken for duplicates.
func Test_Backfill_Cursor_Does_Not_Discard_Other_Threads(t *testing.T) {
	req := require.New(t)
	operator := domain.Participant{ID: "o1", Class: domain.ClassOperator}
	sess := New(operator, "a", 0, 8)

	// A pool message from member b lands in the live buffer while the
	// viewed thread backfills past its id
	fromB := domain.Message{ID: 1, SenderID: "b", Content: "x"}
	req.NoError(sess.Sink().Consume(context.Background(),
		event.MessageStored{Message: fromB, Conversation: fromB.Conversation()}))

	viewed := domain.Message{ID: 2, SenderID: "a", Content: "x"}
	sess.Backfill([]domain.Message{viewed})
	req.Equal(domain.MessageID(2), sess.Cursor())

	// Draining delivers b's lower id exactly once
	env, deliver := sess.Apply(<-sess.Live())
	req.True(deliver)
	req.Equal(domain.MessageID(1), env.Message.ID)

	_, deliver = sess.Apply(event.MessageStored{Message: fromB, Conversation: fromB.Conversation()})
	req.False(deliver)

	// The viewed thread's cursor is untouched by the other thread
	req.Equal(domain.MessageID(2), sess.Cursor())
}

func Test_Close_Releases_Exactly_Once(t *testing.T) {
	req := require.New(t)
	sess := New(member, "m1", 0, 8)

	released := 0
	sess.OnRelease(func() { released++ })

	sess.Close()
	sess.Close()
	req.Equal(1, released)
	req.Equal(StateClosed, sess.State())
}

package runtime_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"deskrelay/domain"
	"deskrelay/domain/event"
	"deskrelay/projection"
	"deskrelay/repositories"
	"deskrelay/runtime"
	"deskrelay/runtime/workers"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

type orderedSink struct {
	mu  sync.Mutex
	ids []domain.MessageID
}

func (s *orderedSink) Consume(_ context.Context, e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, e.Subject().ID)
	return nil
}

func (s *orderedSink) snapshot() []domain.MessageID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.MessageID, len(s.ids))
	copy(out, s.ids)
	return out
}

func newOrchestrator(t *testing.T, db *badger.DB) *runtime.Orchestrator {
	req := require.New(t)
	repository, err := repositories.NewMessageRepository(db, slog.Default())
	req.NoError(err)
	t.Cleanup(func() { _ = repository.Close() })

	sup := workers.NewSupervisor(slog.Default(), 20*time.Millisecond)
	return runtime.NewOrchestrator(slog.Default(), sup,
		runtime.NewRegistry(), repository, projection.NewUnreadBoard(),
		16, time.Second)
}

// The unread board is a cache: a fresh orchestrator over the same
// store must answer unread queries identically after Start.
func Test_Start_Rebuilds_The_Unread_Board_From_The_Store(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	operator := domain.Participant{ID: "o1", Class: domain.ClassOperator}

	first := newOrchestrator(t, db)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	req.NoError(first.Start(ctx))

	_, err = first.Send(ctx, domain.SendCommand{
		Sender:  domain.Participant{ID: "m1", Class: domain.ClassMember},
		Content: "persisted before restart",
	})
	req.NoError(err)
	req.Eventually(func() bool { return first.Unread(operator).Count == 1 },
		2*time.Second, 10*time.Millisecond)

	// A second orchestrator (fresh board, same store) starts cold
	second := newOrchestrator(t, db)
	req.NoError(second.Start(ctx))
	req.Equal(1, second.Unread(operator).Count)
}

// Racing sends into one thread must reach subscribers in id order; an
// inversion would make every live session drop the lower id as already
// seen, and it would never be re-delivered.
func Test_Concurrent_Sends_Reach_Subscribers_In_Id_Order(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	orchestrator := newOrchestrator(t, db)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	req.NoError(orchestrator.Start(ctx))

	bell := &orderedSink{}
	operator := domain.Participant{ID: "o1", Class: domain.ClassOperator}
	orchestrator.RegisterSession("bell", operator, bell)
	defer orchestrator.UnregisterSession("bell")

	member := domain.Participant{ID: "m1", Class: domain.ClassMember}
	const senders, perSender = 8, 25
	errs := make(chan error, senders*perSender)
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perSender; j++ {
				_, err := orchestrator.Send(context.Background(),
					domain.SendCommand{Sender: member, Content: "ping"})
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		req.NoError(err)
	}

	req.Eventually(func() bool { return len(bell.snapshot()) == senders*perSender },
		2*time.Second, 10*time.Millisecond)

	delivered := bell.snapshot()
	for i := 1; i < len(delivered); i++ {
		req.Less(delivered[i-1], delivered[i])
	}
}

// A sender hanging up right after the write must not cost the board an
// event: publication is bound to the process lifecycle, not to the
// request that produced it.
func Test_Send_With_A_Cancelled_Caller_Still_Feeds_The_Board(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	orchestrator := newOrchestrator(t, db)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	req.NoError(orchestrator.Start(ctx))

	gone, hangUp := context.WithCancel(context.Background())
	hangUp()

	member := domain.Participant{ID: "m1", Class: domain.ClassMember}
	const total = 100
	for i := 0; i < total; i++ {
		_, err := orchestrator.Send(gone, domain.SendCommand{Sender: member, Content: "fire and forget"})
		req.NoError(err)
	}

	operator := domain.Participant{ID: "o1", Class: domain.ClassOperator}
	req.Eventually(func() bool { return orchestrator.Unread(operator).Count == total },
		2*time.Second, 10*time.Millisecond)
}

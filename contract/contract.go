//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"deskrelay/domain"
	"deskrelay/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker
// lifecycle events, avoiding manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry tracks live subscriber sessions and resolves the delivery
// set for a published message.
type IRegistry interface {
	Subscribe(sessionID string, p domain.Participant, sink EventSink)
	Unsubscribe(sessionID string)
	MatchingSinks(m domain.Message) []EventSink
}

// IMessageRepository is the single writer of message truth.
type IMessageRepository interface {
	Append(senderID string, recipientID *string, content string) (domain.Message, error)
	Query(memberID string, since domain.MessageID) ([]domain.Message, error)
	MarkRead(reader domain.Participant, id domain.MessageID) (domain.Message, bool, error)
	Unread() ([]domain.Message, error)
}

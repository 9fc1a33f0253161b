//go:generate go run go.uber.org/mock/mockgen -source=relay_service.go -destination=../mocks/mock_relay_service.go -package=mocks
package services

import (
	"context"
	"fmt"

	"deskrelay/domain"
	"deskrelay/errors"
	"deskrelay/runtime"
	"deskrelay/session"

	"github.com/go-playground/validator/v10"
)

type IRelayService interface {
	SendMessage(ctx context.Context, sender domain.Participant, targetMemberID *string, content string) (domain.Message, error)
	FetchThread(memberID string, since domain.MessageID) ([]domain.Message, error)
	MarkRead(ctx context.Context, reader domain.Participant, id domain.MessageID) error
	GetUnread(p domain.Participant) domain.UnreadState
	OpenSession(p domain.Participant, threadMemberID string, since domain.MessageID) (*session.Session, []session.Envelope, error)
}

// RelayService is the facade the transports call. It validates inbound
// intents and delegates everything else to the orchestrator.
type RelayService struct {
	orchestrator     *runtime.Orchestrator
	validate         *validator.Validate
	bufferSize       int
	maxContentLength int
}

func NewRelayService(o *runtime.Orchestrator, bufferSize, maxContentLength int) *RelayService {
	return &RelayService{
		orchestrator:     o,
		validate:         validator.New(),
		bufferSize:       bufferSize,
		maxContentLength: maxContentLength,
	}
}

type sendRequest struct {
	SenderID string `validate:"required"`
	Content  string `validate:"required"`
}

// SendMessage validates and stores a message. Success means the
// message is durably stored, whoever is online.
func (s *RelayService) SendMessage(ctx context.Context, sender domain.Participant,
	targetMemberID *string, content string) (domain.Message, error) {
	if !sender.Class.Valid() {
		return domain.Message{}, errors.ErrUnknownSender
	}
	if err := s.validate.Struct(sendRequest{SenderID: sender.ID, Content: content}); err != nil {
		if sender.ID == "" {
			return domain.Message{}, errors.ErrUnknownSender
		}
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrEmptyContent, err)
	}
	if s.maxContentLength > 0 && len(content) > s.maxContentLength {
		return domain.Message{}, errors.ErrContentTooLong
	}
	return s.orchestrator.Send(ctx, domain.SendCommand{
		Sender:       sender,
		TargetMember: targetMemberID,
		Content:      content,
	})
}

func (s *RelayService) FetchThread(memberID string, since domain.MessageID) ([]domain.Message, error) {
	return s.orchestrator.Thread(memberID, since)
}

// MarkRead flips the flag as the given reader. A message the reader
// cannot see is left untouched, so nobody can clear another
// participant's notifications.
func (s *RelayService) MarkRead(ctx context.Context, reader domain.Participant, id domain.MessageID) error {
	return s.orchestrator.MarkRead(ctx, reader, id)
}

func (s *RelayService) GetUnread(p domain.Participant) domain.UnreadState {
	return s.orchestrator.Unread(p)
}

// OpenSession registers the live sink before reading the backlog, so
// nothing published in between can be missed; whatever both paths
// delivered is dropped by the session's id de-duplication. The caller
// must Close the returned session on every exit path.
func (s *RelayService) OpenSession(p domain.Participant, threadMemberID string,
	since domain.MessageID) (*session.Session, []session.Envelope, error) {
	sess := session.New(p, threadMemberID, since, s.bufferSize)
	s.orchestrator.RegisterSession(sess.ID, p, sess.Sink())
	sess.OnRelease(func() { s.orchestrator.UnregisterSession(sess.ID) })

	var history []domain.Message
	if threadMemberID != "" {
		var err error
		history, err = s.orchestrator.Thread(threadMemberID, since)
		if err != nil {
			sess.Close()
			return nil, nil, err
		}
	}
	backlog := sess.Backfill(history)
	return sess, backlog, nil
}

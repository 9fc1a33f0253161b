//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"deskrelay/domain"
	"deskrelay/errors"

	"github.com/dgraph-io/badger/v4"
)

const (
	msgPrefix    = "msg:"
	convPrefix   = "conv:"
	unreadPrefix = "unread:"

	seqKey       = "seq:message"
	seqBandwidth = 64
)

// MessageRepository persists the append-only message log in BadgerDB.
//
// Keys:
//   - "msg:{id_padded}"                -> JSON record, the message truth
//   - "conv:{member_id}:{id_padded}"   -> thread index (empty value)
//   - "unread:{id_padded}"             -> unread index, deleted on read
//
// Ids come from a Badger sequence and are padded to 19 digits so the
// lexicographic order Badger iterates in equals numeric id order.
type MessageRepository struct {
	db  *badger.DB
	seq *badger.Sequence
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) (*MessageRepository, error) {
	seq, err := db.GetSequence([]byte(seqKey), seqBandwidth)
	if err != nil {
		return nil, fmt.Errorf("message sequence: %w", err)
	}
	return &MessageRepository{db: db, seq: seq, log: log}, nil
}

// Close releases the id sequence lease. Unused leased ids are burned,
// never reused, which keeps ids monotonic across restarts.
func (r *MessageRepository) Close() error {
	return r.seq.Release()
}

type record struct {
	ID          uint64    `json:"id"`
	SenderID    string    `json:"sender_id"`
	RecipientID *string   `json:"recipient_id,omitempty"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
	IsRead      bool      `json:"is_read"`
}

func msgKey(id domain.MessageID) []byte {
	return []byte(fmt.Sprintf("%s%019d", msgPrefix, id))
}

func convKey(conversation string, id domain.MessageID) []byte {
	return []byte(fmt.Sprintf("%s%s:%019d", convPrefix, conversation, id))
}

func unreadKey(id domain.MessageID) []byte {
	return []byte(fmt.Sprintf("%s%019d", unreadPrefix, id))
}

// Append assigns the next monotonic id and persists the message with
// its thread and unread index entries in a single transaction. On any
// failure no message exists: there are no partial writes to clean up.
func (r *MessageRepository) Append(senderID string, recipientID *string, content string) (domain.Message, error) {
	n, err := r.seq.Next()
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	// Sequences hand out ids from zero; message ids start at one so a
	// zero cursor always means "from the beginning".
	id := domain.MessageID(n + 1)

	rec := record{
		ID:          uint64(id),
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     content,
		CreatedAt:   time.Now().UTC(),
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}

	message := toMessage(rec)
	err = r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(msgKey(id), raw); err != nil {
			return err
		}
		if err := txn.Set(convKey(message.Conversation(), id), nil); err != nil {
			return err
		}
		return txn.Set(unreadKey(id), nil)
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	return message, nil
}

// Query returns the thread between a member and the operator side:
// every message with id > since, ascending by id. Used both for full
// history and for backlog resume after a disconnect.
func (r *MessageRepository) Query(memberID string, since domain.MessageID) ([]domain.Message, error) {
	var out []domain.Message
	err := r.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("%s%s:", convPrefix, memberID)
		prefix := []byte(prefixStr)

		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(convKey(memberID, since+1)); it.ValidForPrefix(prefix); it.Next() {
			paddedID := it.Item().Key()[len(prefixStr):]
			rec, err := getRecord(txn, append([]byte(msgPrefix), paddedID...))
			if err != nil {
				return err
			}
			out = append(out, toMessage(rec))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	return out, nil
}

// MarkRead flips is_read exactly once, on behalf of a reader. The flip
// only happens when the reader can see the message; an unknown id, an
// already read message, or a message outside the reader's visibility is
// a successful no-op. The boolean reports whether this call made the
// transition.
func (r *MessageRepository) MarkRead(reader domain.Participant, id domain.MessageID) (domain.Message, bool, error) {
	var rec record
	var found, flipped bool
	err := r.db.Update(func(txn *badger.Txn) error {
		var err error
		rec, err = getRecord(txn, msgKey(id))
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !toMessage(rec).VisibleTo(reader) {
			return nil
		}
		found = true
		if rec.IsRead {
			return nil
		}
		rec.IsRead = true
		raw, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := txn.Set(msgKey(id), raw); err != nil {
			return err
		}
		if err := txn.Delete(unreadKey(id)); err != nil {
			return err
		}
		flipped = true
		return nil
	})
	if err != nil {
		return domain.Message{}, false, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	if !found {
		r.log.Debug("MarkRead no-op", "message_id", uint64(id), "reader_id", reader.ID)
		return domain.Message{}, false, nil
	}
	return toMessage(rec), flipped, nil
}

// Unread scans the unread index in id order. The notification
// projection rebuilds its whole board from this single call.
func (r *MessageRepository) Unread() ([]domain.Message, error) {
	var out []domain.Message
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(unreadPrefix)

		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			paddedID := it.Item().Key()[len(unreadPrefix):]
			rec, err := getRecord(txn, append([]byte(msgPrefix), paddedID...))
			if err != nil {
				return err
			}
			out = append(out, toMessage(rec))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	return out, nil
}

func getRecord(txn *badger.Txn, key []byte) (record, error) {
	item, err := txn.Get(key)
	if err != nil {
		return record{}, err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return record{}, err
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return record{}, err
	}
	return rec, nil
}

func toMessage(rec record) domain.Message {
	return domain.Message{
		ID:          domain.MessageID(rec.ID),
		SenderID:    rec.SenderID,
		RecipientID: rec.RecipientID,
		Content:     rec.Content,
		CreatedAt:   rec.CreatedAt,
		IsRead:      rec.IsRead,
	}
}

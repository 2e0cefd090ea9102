package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/core/ports"
	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
)

const messageStoreDir = "messages"

type messageDTO struct {
	Id        string
	Sender    string
	Recipient string
	Box       string
	Body      []byte
	CreatedAt int64
}

type messageStore struct {
	store *badgerhold.Store
	quit  chan struct{}
}

// NewMessageStore expects the base directory, empty for an in-memory store,
// and an optional badger logger.
func NewMessageStore(config ...interface{}) (ports.MessageStore, error) {
	if len(config) != 2 {
		return nil, fmt.Errorf("invalid config")
	}
	baseDir, ok := config[0].(string)
	if !ok {
		return nil, fmt.Errorf("invalid base directory")
	}
	var logger badger.Logger
	if config[1] != nil {
		logger, ok = config[1].(badger.Logger)
		if !ok {
			return nil, fmt.Errorf("invalid logger")
		}
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, messageStoreDir)
	}
	quit := make(chan struct{})
	store, err := createDB(dir, logger, quit)
	if err != nil {
		return nil, fmt.Errorf("failed to open message store: %s", err)
	}

	return &messageStore{store, quit}, nil
}

func (r *messageStore) Add(ctx context.Context, msg ports.Message) error {
	if len(msg.Id) <= 0 {
		return fmt.Errorf("missing message id")
	}
	dto := messageDTO{
		Id:        msg.Id,
		Sender:    msg.Sender,
		Recipient: msg.Recipient,
		Box:       msg.Box,
		Body:      msg.Body,
		CreatedAt: msg.CreatedAt.UnixNano(),
	}

	var err error
	for attempts := 1; attempts <= maxRetries; attempts++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err = r.store.Insert(dto.Id, dto)
		if err == nil || !errors.Is(err, badger.ErrConflict) {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if errors.Is(err, badgerhold.ErrKeyExists) {
		return fmt.Errorf("message %s already exists", msg.Id)
	}
	return err
}

func (r *messageStore) List(
	ctx context.Context, recipient, box string,
) ([]ports.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query := badgerhold.Where("Recipient").Eq(recipient).
		And("Box").Eq(box).
		SortBy("CreatedAt", "Id")

	var dtos []messageDTO
	if err := r.store.Find(&dtos, query); err != nil {
		return nil, err
	}

	messages := make([]ports.Message, 0, len(dtos))
	for _, dto := range dtos {
		messages = append(messages, ports.Message{
			Id:        dto.Id,
			Sender:    dto.Sender,
			Recipient: dto.Recipient,
			Box:       dto.Box,
			Body:      dto.Body,
			CreatedAt: time.Unix(0, dto.CreatedAt),
		})
	}
	return messages, nil
}

// Delete removes the given messages addressed to recipient. Unknown ids and
// messages of other recipients are ignored.
func (r *messageStore) Delete(
	ctx context.Context, recipient string, ids []string,
) error {
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}

		var dto messageDTO
		if err := r.store.Get(id, &dto); err != nil {
			if errors.Is(err, badgerhold.ErrNotFound) {
				continue
			}
			return err
		}
		if dto.Recipient != recipient {
			continue
		}
		if err := r.store.Delete(id, dto); err != nil &&
			!errors.Is(err, badgerhold.ErrNotFound) {
			return err
		}
	}
	return nil
}

func (r *messageStore) Close() {
	close(r.quit)
	// nolint:all
	r.store.Close()
}

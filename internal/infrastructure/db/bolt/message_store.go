package boltdb

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/core/ports"
	"go.etcd.io/bbolt"
)

const messageDbFile = "messages.bolt.db"

var messagesBucket = []byte("messages")

type messageDTO struct {
	Id        string
	Sender    string
	Recipient string
	Box       string
	Body      []byte
	CreatedAt int64
}

// messageStore keeps one nested bucket per recipient under the messages
// bucket, keyed by message id.
type messageStore struct {
	db *bbolt.DB
}

// NewMessageStore expects the base directory of the db file.
func NewMessageStore(config ...interface{}) (ports.MessageStore, error) {
	if len(config) != 1 {
		return nil, fmt.Errorf("invalid config")
	}
	baseDir, ok := config[0].(string)
	if !ok || len(baseDir) <= 0 {
		return nil, fmt.Errorf("invalid base directory")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %s", err)
	}

	db, err := bbolt.Open(
		filepath.Join(baseDir, messageDbFile), 0600,
		&bbolt.Options{Timeout: 1 * time.Second},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open message store: %s", err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(messagesBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &messageStore{db}, nil
}

func (s *messageStore) Add(ctx context.Context, msg ports.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(msg.Id) <= 0 {
		return fmt.Errorf("missing message id")
	}
	if len(msg.Recipient) <= 0 {
		return fmt.Errorf("missing recipient")
	}

	data, err := encode(messageDTO{
		Id:        msg.Id,
		Sender:    msg.Sender,
		Recipient: msg.Recipient,
		Box:       msg.Box,
		Body:      msg.Body,
		CreatedAt: msg.CreatedAt.UnixNano(),
	})
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.Bucket(messagesBucket).
			CreateBucketIfNotExists([]byte(msg.Recipient))
		if err != nil {
			return err
		}
		if bucket.Get([]byte(msg.Id)) != nil {
			return fmt.Errorf("message %s already exists", msg.Id)
		}
		return bucket.Put([]byte(msg.Id), data)
	})
}

func (s *messageStore) List(
	ctx context.Context, recipient, box string,
) ([]ports.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dtos := make([]messageDTO, 0)
	if err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(messagesBucket).Bucket([]byte(recipient))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(_, v []byte) error {
			var dto messageDTO
			if err := decode(v, &dto); err != nil {
				return err
			}
			if dto.Box == box {
				dtos = append(dtos, dto)
			}
			return nil
		})
	}); err != nil {
		return nil, err
	}

	sort.SliceStable(dtos, func(i, j int) bool {
		return dtos[i].CreatedAt < dtos[j].CreatedAt
	})

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

func (s *messageStore) Delete(
	ctx context.Context, recipient string, ids []string,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(messagesBucket).Bucket([]byte(recipient))
		if bucket == nil {
			return nil
		}
		for _, id := range ids {
			if err := bucket.Delete([]byte(id)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *messageStore) Close() {
	// nolint:all
	s.db.Close()
}

func encode(data interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(data []byte, target interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(target)
}

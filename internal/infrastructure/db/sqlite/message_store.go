package sqlitedb

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

const sqliteDbFile = "messages.sqlite.db"

const (
	insertMessage = `INSERT INTO message (id, sender, recipient, box, body, created_at)
VALUES (?, ?, ?, ?, ?, ?);`
	selectMessages = `SELECT id, sender, recipient, box, body, created_at FROM message
WHERE recipient = ? AND box = ? ORDER BY created_at, id;`
	deleteMessage = `DELETE FROM message WHERE recipient = ? AND id = ?;`
)

type messageStore struct {
	db *sql.DB
}

// NewMessageStore expects the base directory of the db file. Migrations are
// applied on open.
func NewMessageStore(config ...interface{}) (ports.MessageStore, error) {
	if len(config) != 1 {
		return nil, fmt.Errorf("invalid config")
	}
	baseDir, ok := config[0].(string)
	if !ok || len(baseDir) <= 0 {
		return nil, fmt.Errorf("invalid base directory")
	}

	db, err := OpenDb(filepath.Join(baseDir, sqliteDbFile))
	if err != nil {
		return nil, err
	}
	if err := MigrateDb(db); err != nil {
		// nolint:all
		db.Close()
		return nil, err
	}

	return &messageStore{db}, nil
}

func (s *messageStore) Add(ctx context.Context, msg ports.Message) error {
	if len(msg.Id) <= 0 {
		return fmt.Errorf("missing message id")
	}
	body := msg.Body
	if body == nil {
		body = []byte{}
	}
	if _, err := s.db.ExecContext(
		ctx, insertMessage, msg.Id, msg.Sender, msg.Recipient, msg.Box, body,
		msg.CreatedAt.UnixNano(),
	); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("message %s already exists", msg.Id)
		}
		return err
	}
	return nil
}

func (s *messageStore) List(
	ctx context.Context, recipient, box string,
) ([]ports.Message, error) {
	rows, err := s.db.QueryContext(ctx, selectMessages, recipient, box)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]ports.Message, 0)
	for rows.Next() {
		var (
			msg       ports.Message
			createdAt int64
		)
		if err := rows.Scan(
			&msg.Id, &msg.Sender, &msg.Recipient, &msg.Box, &msg.Body, &createdAt,
		); err != nil {
			return nil, err
		}
		msg.CreatedAt = time.Unix(0, createdAt)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (s *messageStore) Delete(
	ctx context.Context, recipient string, ids []string,
) error {
	if len(ids) <= 0 {
		return nil
	}
	return execTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, deleteMessage, recipient, id); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *messageStore) Close() {
	if err := s.db.Close(); err != nil {
		log.Warnf("failed to close message store: %s", err)
	}
}

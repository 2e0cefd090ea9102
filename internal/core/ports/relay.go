package ports

import (
	"context"
	"time"
)

type Message struct {
	Id        string
	Sender    string
	Recipient string
	Box       string
	Body      []byte
	CreatedAt time.Time
}

// Relay is a store-and-forward message service keyed by identity.
type Relay interface {
	SendMessage(ctx context.Context, recipient, box string, body []byte) error
	ListMessages(ctx context.Context, box string) ([]Message, error)
	AcknowledgeMessages(ctx context.Context, ids []string) error
}

// MessageStore persists relay messages on the serving side.
type MessageStore interface {
	Add(ctx context.Context, msg Message) error
	List(ctx context.Context, recipient, box string) ([]Message, error)
	Delete(ctx context.Context, recipient string, ids []string) error
	Close()
}

package localrelay

import (
	"context"
	"fmt"
	"time"

	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/core/ports"
	"github.com/google/uuid"
)

// relay reads and writes a message store shared by every identity on the
// same host.
type relay struct {
	store    ports.MessageStore
	identity string
}

func NewRelay(store ports.MessageStore, identity string) (ports.Relay, error) {
	if store == nil {
		return nil, fmt.Errorf("missing message store")
	}
	if len(identity) <= 0 {
		return nil, fmt.Errorf("missing identity key")
	}
	return &relay{store, identity}, nil
}

func (r *relay) SendMessage(
	ctx context.Context, recipient, box string, body []byte,
) error {
	if len(recipient) <= 0 {
		return fmt.Errorf("missing recipient")
	}
	if len(box) <= 0 {
		return fmt.Errorf("missing message box")
	}
	return r.store.Add(ctx, ports.Message{
		Id:        uuid.New().String(),
		Sender:    r.identity,
		Recipient: recipient,
		Box:       box,
		Body:      body,
		CreatedAt: time.Now(),
	})
}

func (r *relay) ListMessages(ctx context.Context, box string) ([]ports.Message, error) {
	return r.store.List(ctx, r.identity, box)
}

func (r *relay) AcknowledgeMessages(ctx context.Context, ids []string) error {
	return r.store.Delete(ctx, r.identity, ids)
}

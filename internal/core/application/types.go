package application

import (
	"context"
	"fmt"
	"time"

	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/core/domain"
)

// NotificationBox is the relay box peers are notified into.
const NotificationBox = "voicemail_inbox"

const (
	defaultSpendTimeout           = 30 * time.Second
	defaultSentCopySatoshis       = 1
	defaultListLimit              = 1000
	defaultReconstructConcurrency = 8

	// Contacts only need to carry the minimum value.
	contactSatoshis = 1
)

type Service interface {
	Start() error
	Stop()

	IdentityKey(ctx context.Context) (string, error)

	Send(ctx context.Context, intent SendIntent) (*SendResult, error)
	// Refresh rebuilds the given view from the wallet baskets. The returned
	// slice has one entry per scanned output, nil for the ones that could not
	// be reconstructed.
	Refresh(ctx context.Context, view domain.View) ([]domain.Record, error)
	RefreshAll(ctx context.Context) error

	Inbox(ctx context.Context) ([]*domain.Voicemail, error)
	Sent(ctx context.Context) ([]*domain.Voicemail, error)
	Archived(ctx context.Context) ([]*domain.Voicemail, error)
	RedeemAndArchive(ctx context.Context, outpoint domain.Outpoint) (domain.Outpoint, error)
	Forget(ctx context.Context, outpoint domain.Outpoint) error

	AddContact(ctx context.Context, name, identityKey string) (domain.Outpoint, error)
	Contacts(ctx context.Context) ([]*domain.Contact, error)
	RemoveContact(ctx context.Context, outpoint domain.Outpoint) error

	AddTask(ctx context.Context, description string, bounty uint64) (domain.Outpoint, error)
	Tasks(ctx context.Context) ([]*domain.Task, error)
	CompleteTask(ctx context.Context, outpoint domain.Outpoint) error

	// SyncInbox absorbs the pending notifications of the relay and returns
	// how many of them were internalized.
	SyncInbox(ctx context.Context) (int, error)
	Absorb(ctx context.Context, notification Notification) error
}

type Config struct {
	// SpendTimeout bounds the construction of every transaction.
	SpendTimeout time.Duration
	// ArchiveFee is subtracted from the value of a redeemed voicemail.
	ArchiveFee             uint64
	SentCopySatoshis       uint64
	ListLimit              int
	ReconstructConcurrency int
	// InboxSyncInterval in seconds, zero disables the periodic sync.
	InboxSyncInterval int64
}

func (c Config) withDefaults() Config {
	if c.SpendTimeout <= 0 {
		c.SpendTimeout = defaultSpendTimeout
	}
	if c.SentCopySatoshis <= 0 {
		c.SentCopySatoshis = defaultSentCopySatoshis
	}
	if c.ListLimit <= 0 {
		c.ListLimit = defaultListLimit
	}
	if c.ReconstructConcurrency <= 0 {
		c.ReconstructConcurrency = defaultReconstructConcurrency
	}
	return c
}

func (c Config) validate() error {
	if c.InboxSyncInterval < 0 {
		return fmt.Errorf("invalid inbox sync interval %d", c.InboxSyncInterval)
	}
	return nil
}

// SendIntent describes a voicemail to send. An empty recipient, "self" or
// the own identity key sends the voicemail to self.
type SendIntent struct {
	Recipient string
	Audio     []byte
	Note      string
	Satoshis  uint64
}

type SendResult struct {
	Txid      string
	Outpoint  domain.Outpoint
	SentCopy  *domain.Outpoint
	Lifecycle *domain.Lifecycle
}

// Notification is the relay payload telling a peer where to find a
// voicemail. Bundle is the hex proof bundle of the tx.
type Notification struct {
	Txid        string `json:"txid"`
	OutputIndex uint32 `json:"outputIndex"`
	Satoshis    uint64 `json:"satoshis"`
	Sender      string `json:"sender"`
	Bundle      string `json:"bundle"`
}

package domain

import "time"

// Token holds what every record reconstructed from a basket output shares.
// It carries everything needed to spend the output later on.
type Token struct {
	Outpoint      Outpoint
	Satoshis      uint64
	LockingScript []byte
	Basket        string
	Bundle        []byte
	// Key is the derivation used to lock the output, the same one must be
	// used to unlock it.
	Key       KeyRef
	Lifecycle *Lifecycle
}

type Record interface {
	GetToken() *Token
}

func (t *Token) GetToken() *Token {
	return t
}

type Voicemail struct {
	Token
	Sender           string
	Recipient        string
	Audio            []byte
	Timestamp        time.Time
	TimestampUnknown bool
	Note             string
	HasNote          bool
}

type Contact struct {
	Token
	Name        string
	IdentityKey string
	CreatedAt   time.Time
}

type Task struct {
	Token
	Description string
}

func (t *Task) Bounty() uint64 {
	return t.Satoshis
}

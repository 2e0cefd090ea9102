package ports

import (
	"context"

	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/core/domain"
)

type WalletService interface {
	Keys() KeyService
	Outputs() OutputService
	Actions() ActionService
	Close()
}

type KeyService interface {
	IdentityKey(ctx context.Context) (string, error)
	GetPublicKey(ctx context.Context, key domain.KeyRef, forSelf bool) (string, error)
	Encrypt(ctx context.Context, key domain.KeyRef, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, key domain.KeyRef, ciphertext []byte) ([]byte, error)
	CreateSignature(ctx context.Context, key domain.KeyRef, digest []byte) ([]byte, error)
}

type OutputService interface {
	ListOutputs(ctx context.Context, args ListOutputsArgs) ([]Output, error)
}

type ActionService interface {
	// CreateAction builds a transaction spending the given inputs, funded by
	// the wallet if needed. When every input belongs to the wallet the
	// transaction is signed right away, otherwise a signable transaction is
	// returned and the inputs stay reserved until SignAction or AbortAction.
	CreateAction(ctx context.Context, args CreateActionArgs) (*CreateActionResult, error)
	SignAction(ctx context.Context, reference string, spends map[uint32]SpendArgs) (*SignActionResult, error)
	AbortAction(ctx context.Context, reference string) error
	// InternalizeAction adds outputs of the subject tx of a proof bundle to
	// the given baskets. Outputs already known are ignored.
	InternalizeAction(ctx context.Context, args InternalizeActionArgs) error
}

type ListOutputsArgs struct {
	Basket        string
	IncludeBundle bool
	Limit         int
}

type Output struct {
	Outpoint      domain.Outpoint
	Satoshis      uint64
	LockingScript []byte
	Basket        string
	Bundle        []byte
	Spendable     bool
}

type ActionInput struct {
	Outpoint              domain.Outpoint
	UnlockingScriptLength int
	Description           string
}

type CreateActionArgs struct {
	Description string
	InputBundle []byte
	Inputs      []ActionInput
	Outputs     []domain.TokenOutput
}

type SignableTransaction struct {
	Reference string
	Tx        []byte
}

type CreateActionResult struct {
	Txid     string
	Tx       []byte
	Bundle   []byte
	Signable *SignableTransaction
}

type SpendArgs struct {
	UnlockingScript []byte
}

type SignActionResult struct {
	Txid   string
	Tx     []byte
	Bundle []byte
}

type InternalizeOutput struct {
	OutputIndex uint32
	Basket      string
}

type InternalizeActionArgs struct {
	Bundle      []byte
	Outputs     []InternalizeOutput
	Description string
}

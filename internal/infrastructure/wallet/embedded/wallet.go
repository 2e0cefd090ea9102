package embeddedwallet

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/core/domain"
	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/core/ports"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

const (
	walletStoreDir = "wallet"

	// DefaultBasket holds the general funds of the wallet, ie. faucet
	// outputs and change.
	DefaultBasket = "default"
)

var (
	ErrNotInitialized    = errors.New("wallet not initialized")
	ErrLocked            = errors.New("wallet is locked")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnknownAction     = errors.New("unknown action")
	ErrOutputNotFound    = errors.New("output not found")
)

type WalletConfig struct {
	// Datadir is the base directory of the wallet store, the store is kept
	// in memory if empty.
	Datadir string
	Logger  badger.Logger
}

// Service is a single key wallet keeping its outputs organized in baskets.
// It implements ports.WalletService.
type Service struct {
	store *store

	keyLock    *sync.RWMutex
	privateKey *secp256k1.PrivateKey
	walletData *walletDTO

	actionLock *sync.Mutex
	pending    map[string]*pendingAction
	reserved   map[string]string
}

func NewService(cfg WalletConfig) (*Service, error) {
	var dir string
	if len(cfg.Datadir) > 0 {
		dir = filepath.Join(cfg.Datadir, walletStoreDir)
	}
	store, err := newStore(dir, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open wallet store: %s", err)
	}

	walletData, err := store.getWallet()
	if err != nil {
		store.close()
		return nil, fmt.Errorf("failed to load wallet: %s", err)
	}

	return &Service{
		store:      store,
		keyLock:    &sync.RWMutex{},
		walletData: walletData,
		actionLock: &sync.Mutex{},
		pending:    make(map[string]*pendingAction),
		reserved:   make(map[string]string),
	}, nil
}

func (w *Service) Keys() ports.KeyService {
	return w
}

func (w *Service) Outputs() ports.OutputService {
	return w
}

func (w *Service) Actions() ports.ActionService {
	return w
}

func (w *Service) Close() {
	w.store.close()
}

// Create initializes the wallet with the given private key, or a random one
// if empty, sealed with password. It returns the hex private key.
func (w *Service) Create(
	_ context.Context, password, privateKey string,
) (string, error) {
	w.keyLock.Lock()
	defer w.keyLock.Unlock()

	if w.walletData != nil {
		return "", fmt.Errorf("wallet already initialized")
	}

	var prvkey *secp256k1.PrivateKey
	if len(privateKey) <= 0 {
		key, err := btcec.NewPrivateKey()
		if err != nil {
			return "", err
		}
		prvkey = key
	} else {
		buf, err := hex.DecodeString(privateKey)
		if err != nil {
			return "", fmt.Errorf("invalid private key: %s", err)
		}
		if len(buf) != secp256k1.PrivKeyBytesLen {
			return "", fmt.Errorf("invalid private key length")
		}
		prvkey = secp256k1.PrivKeyFromBytes(buf)
	}

	pwd := []byte(password)
	encryptedPrvkey, err := sealKey(prvkey.Serialize(), pwd)
	if err != nil {
		return "", err
	}

	data := walletDTO{
		EncryptedPrvkey: encryptedPrvkey,
		PubKey:          prvkey.PubKey().SerializeCompressed(),
	}
	if err := w.store.addWallet(data); err != nil {
		return "", err
	}

	w.walletData = &data

	return hex.EncodeToString(prvkey.Serialize()), nil
}

// Unlock decrypts the root key, it returns true if already unlocked.
func (w *Service) Unlock(_ context.Context, password string) (bool, error) {
	w.keyLock.Lock()
	defer w.keyLock.Unlock()

	if w.walletData == nil {
		return false, ErrNotInitialized
	}
	if w.privateKey != nil {
		return true, nil
	}

	buf, err := unsealKey(w.walletData.EncryptedPrvkey, []byte(password))
	if err != nil {
		return false, err
	}

	w.privateKey = secp256k1.PrivKeyFromBytes(buf)
	return false, nil
}

func (w *Service) Lock(_ context.Context, password string) error {
	w.keyLock.Lock()
	defer w.keyLock.Unlock()

	if w.walletData == nil {
		return ErrNotInitialized
	}
	if w.privateKey == nil {
		return nil
	}
	if _, err := unsealKey(w.walletData.EncryptedPrvkey, []byte(password)); err != nil {
		return err
	}

	w.privateKey = nil
	return nil
}

type Status struct {
	Initialized bool
	Unlocked    bool
	IdentityKey string
}

func (w *Service) Status(_ context.Context) Status {
	w.keyLock.RLock()
	defer w.keyLock.RUnlock()

	status := Status{
		Initialized: w.walletData != nil,
		Unlocked:    w.privateKey != nil,
	}
	if w.walletData != nil {
		status.IdentityKey = hex.EncodeToString(w.walletData.PubKey)
	}
	return status
}

func (w *Service) IsInitialized() bool {
	w.keyLock.RLock()
	defer w.keyLock.RUnlock()
	return w.walletData != nil
}

func (w *Service) IsLocked() bool {
	w.keyLock.RLock()
	defer w.keyLock.RUnlock()
	return w.privateKey == nil
}

// Balance returns the amount of general funds.
func (w *Service) Balance(_ context.Context) (uint64, error) {
	outputs, err := w.store.listSpendableOutputs(DefaultBasket, 0)
	if err != nil {
		return 0, err
	}
	balance := uint64(0)
	for _, out := range outputs {
		balance += out.Satoshis
	}
	return balance, nil
}

func (w *Service) ListOutputs(
	ctx context.Context, args ports.ListOutputsArgs,
) ([]ports.Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(args.Basket) <= 0 {
		return nil, fmt.Errorf("missing basket")
	}

	rows, err := w.store.listSpendableOutputs(args.Basket, args.Limit)
	if err != nil {
		return nil, err
	}

	outputs := make([]ports.Output, 0, len(rows))
	for _, row := range rows {
		out := ports.Output{
			Outpoint:      domain.NewOutpoint(row.Txid, row.VOut),
			Satoshis:      row.Satoshis,
			LockingScript: row.LockingScript,
			Basket:        row.Basket,
			Spendable:     row.Spendable,
		}
		if args.IncludeBundle {
			tx, err := w.store.getTx(row.Txid)
			if err != nil {
				return nil, err
			}
			if tx != nil {
				out.Bundle = tx.Bundle
			}
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}

func (w *Service) getPrivateKey() (*secp256k1.PrivateKey, error) {
	w.keyLock.RLock()
	defer w.keyLock.RUnlock()

	if w.walletData == nil {
		return nil, ErrNotInitialized
	}
	if w.privateKey == nil {
		return nil, ErrLocked
	}
	return w.privateKey, nil
}

func randomNonce() ([]byte, error) {
	nonce := make([]byte, 8)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return nonce, nil
}

package embeddedwallet

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/timshannon/badgerhold/v4"
)

const (
	walletDataKey = "wallet"
	maxRetries    = 5
)

type walletDTO struct {
	EncryptedPrvkey []byte
	PubKey          []byte
}

type outputDTO struct {
	Outpoint      string
	Txid          string
	VOut          uint32
	Satoshis      uint64
	LockingScript []byte
	Basket        string
	Spendable     bool
	SpentBy       string
	CreatedAt     int64
}

type txDTO struct {
	Txid      string
	Bundle    []byte
	CreatedAt int64
}

type store struct {
	db     *badgerhold.Store
	logger badger.Logger
	quit   chan struct{}
}

func newStore(dir string, logger badger.Logger) (*store, error) {
	isInMemory := len(dir) <= 0

	opts := badger.DefaultOptions(dir)
	opts.Logger = logger

	if isInMemory {
		opts.InMemory = true
	} else {
		opts.Compression = options.ZSTD
	}

	db, err := badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
	if err != nil {
		return nil, err
	}

	s := &store{db, logger, make(chan struct{})}

	if !isInMemory {
		ticker := time.NewTicker(30 * time.Minute)

		go func() {
			defer ticker.Stop()
			for {
				select {
				case <-s.quit:
					return
				case <-ticker.C:
					if err := db.Badger().RunValueLogGC(0.5); err != nil && err != badger.ErrNoRewrite {
						if logger != nil {
							logger.Errorf("%s", err)
						}
					}
				}
			}
		}()
	}

	return s, nil
}

func (s *store) getWallet() (*walletDTO, error) {
	var data walletDTO
	if err := s.db.Get(walletDataKey, &data); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &data, nil
}

func (s *store) addWallet(data walletDTO) error {
	if err := s.db.Insert(walletDataKey, data); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return fmt.Errorf("wallet already initialized")
		}
		return err
	}
	return nil
}

func (s *store) getOutput(outpoint string) (*outputDTO, error) {
	var out outputDTO
	if err := s.db.Get(outpoint, &out); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (s *store) listSpendableOutputs(basket string, limit int) ([]outputDTO, error) {
	query := badgerhold.Where("Basket").Eq(basket).And("Spendable").Eq(true).
		SortBy("CreatedAt")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var outputs []outputDTO
	if err := s.db.Find(&outputs, query); err != nil {
		return nil, err
	}
	return outputs, nil
}

func (s *store) getTx(txid string) (*txDTO, error) {
	var tx txDTO
	if err := s.db.Get(txid, &tx); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tx, nil
}

// commit atomically marks the spent outputs, adds the new ones and stores
// the proof bundle of the transaction.
func (s *store) commit(
	spent []string, spentBy string, outputs []outputDTO, tx txDTO,
) error {
	var err error
	for i := 0; i < maxRetries; i++ {
		err = s.commitOnce(spent, spentBy, outputs, tx)
		if err == nil || !errors.Is(err, badger.ErrConflict) {
			return err
		}
		time.Sleep(100 * time.Millisecond)
	}
	return err
}

func (s *store) commitOnce(
	spent []string, spentBy string, outputs []outputDTO, tx txDTO,
) error {
	txn := s.db.Badger().NewTransaction(true)
	defer txn.Discard()

	for _, key := range spent {
		var out outputDTO
		if err := s.db.TxGet(txn, key, &out); err != nil {
			return fmt.Errorf("failed to get spent output %s: %w", key, err)
		}
		if !out.Spendable {
			return fmt.Errorf("output %s already spent by %s", key, out.SpentBy)
		}
		out.Spendable = false
		out.SpentBy = spentBy
		if err := s.db.TxUpdate(txn, key, out); err != nil {
			return err
		}
	}

	for _, out := range outputs {
		if err := s.db.TxInsert(txn, out.Outpoint, out); err != nil {
			if errors.Is(err, badgerhold.ErrKeyExists) {
				continue
			}
			return err
		}
	}

	if err := s.db.TxUpsert(txn, tx.Txid, tx); err != nil {
		return err
	}

	return txn.Commit()
}

func (s *store) close() {
	close(s.quit)
	if err := s.db.Close(); err != nil && s.logger != nil {
		s.logger.Warningf("failed to close wallet store: %s", err)
	}
}

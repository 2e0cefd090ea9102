package application

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/core/domain"
	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/core/ports"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"
)

// viewCache holds the last reconstruction of every view. It is never
// persisted.
type viewCache struct {
	lock  *sync.RWMutex
	views map[domain.View][]domain.Record
}

func newViewCache() *viewCache {
	return &viewCache{&sync.RWMutex{}, make(map[domain.View][]domain.Record)}
}

func (c *viewCache) get(view domain.View) ([]domain.Record, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	records, ok := c.views[view]
	if !ok {
		return nil, false
	}
	return append([]domain.Record{}, records...), true
}

// set stores the non nil records of a reconstruction.
func (c *viewCache) set(view domain.View, records []domain.Record) {
	c.lock.Lock()
	defer c.lock.Unlock()

	live := make([]domain.Record, 0, len(records))
	for _, r := range records {
		if r != nil {
			live = append(live, r)
		}
	}
	c.views[view] = live
}

func (c *viewCache) find(
	view domain.View, outpoint domain.Outpoint,
) (domain.Record, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	for _, r := range c.views[view] {
		if r.GetToken().Outpoint == outpoint {
			return r, true
		}
	}
	return nil, false
}

func (c *viewCache) remove(view domain.View, outpoint domain.Outpoint) {
	c.lock.Lock()
	defer c.lock.Unlock()

	records, ok := c.views[view]
	if !ok {
		return
	}
	live := make([]domain.Record, 0, len(records))
	for _, r := range records {
		if r.GetToken().Outpoint != outpoint {
			live = append(live, r)
		}
	}
	c.views[view] = live
}

func (c *viewCache) invalidate(views ...domain.View) {
	c.lock.Lock()
	defer c.lock.Unlock()

	for _, view := range views {
		delete(c.views, view)
	}
}

func parsePubKey(key string) (*btcec.PublicKey, error) {
	buf, err := hex.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %s", err)
	}
	pubkey, err := btcec.ParsePubKey(buf)
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %s", err)
	}
	return pubkey, nil
}

func findOutput(outputs []ports.Output, outpoint domain.Outpoint) (*ports.Output, bool) {
	for _, out := range outputs {
		if out.Outpoint == outpoint {
			o := out
			return &o, true
		}
	}
	return nil, false
}

func findInput(tx *wire.MsgTx, outpoint domain.Outpoint) (int, error) {
	for i, in := range tx.TxIn {
		prevout := in.PreviousOutPoint
		if prevout.Hash.String() == outpoint.Txid && prevout.Index == outpoint.VOut {
			return i, nil
		}
	}
	return -1, fmt.Errorf("input %s not found in unsigned tx", outpoint)
}

func deserializeTx(buf []byte) (*wire.MsgTx, error) {
	tx := &wire.MsgTx{}
	if err := tx.DeserializeNoWitness(bytes.NewReader(buf)); err != nil {
		return nil, fmt.Errorf("invalid tx: %s", err)
	}
	return tx, nil
}

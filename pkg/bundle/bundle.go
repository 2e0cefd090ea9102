package bundle

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

const (
	version = byte(0x01)

	// maxTxSize bounds a single serialized transaction in a bundle.
	maxTxSize = 32 * 1024 * 1024
)

var (
	ErrTransactionNotFound = errors.New("transaction not found in bundle")
	ErrOutputNotFound      = errors.New("output not found in bundle")
	ErrMissingAncestor     = errors.New("bundle is missing an ancestor transaction")
)

// Bundle is a proof bundle: the transaction that created an output together
// with every ancestor needed to validate it. Ancestors always come before
// their descendants, so the last transaction is the subject of the bundle.
type Bundle struct {
	txs   []*wire.MsgTx
	index map[chainhash.Hash]int
}

func New(txs ...*wire.MsgTx) *Bundle {
	b := &Bundle{
		txs:   make([]*wire.MsgTx, 0, len(txs)),
		index: make(map[chainhash.Hash]int),
	}
	for _, tx := range txs {
		b.Add(tx)
	}
	return b
}

// Add appends the tx unless already present.
func (b *Bundle) Add(tx *wire.MsgTx) {
	txid := tx.TxHash()
	if _, ok := b.index[txid]; ok {
		return
	}
	b.index[txid] = len(b.txs)
	b.txs = append(b.txs, tx)
}

// Merge appends all transactions of other not yet in b, preserving their
// relative order.
func (b *Bundle) Merge(other *Bundle) {
	if other == nil {
		return
	}
	for _, tx := range other.txs {
		b.Add(tx)
	}
}

func (b *Bundle) Len() int {
	return len(b.txs)
}

func (b *Bundle) Txs() []*wire.MsgTx {
	return append([]*wire.MsgTx{}, b.txs...)
}

// Subject returns the last transaction of the bundle.
func (b *Bundle) Subject() *wire.MsgTx {
	if len(b.txs) <= 0 {
		return nil
	}
	return b.txs[len(b.txs)-1]
}

func (b *Bundle) Find(txid string) (*wire.MsgTx, error) {
	hash, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return nil, fmt.Errorf("invalid txid %s: %s", txid, err)
	}
	i, ok := b.index[*hash]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, txid)
	}
	return b.txs[i], nil
}

// FindOutput returns the output identified by txid and vout.
func (b *Bundle) FindOutput(txid string, vout uint32) (*wire.TxOut, error) {
	tx, err := b.Find(txid)
	if err != nil {
		return nil, err
	}
	if int(vout) >= len(tx.TxOut) {
		return nil, fmt.Errorf("%w: %s:%d", ErrOutputNotFound, txid, vout)
	}
	return tx.TxOut[vout], nil
}

// Validate makes sure every input of every transaction either spends an
// output of a previous transaction in the bundle or is a funding input,
// ie. one with a null previous outpoint.
func (b *Bundle) Validate() error {
	if len(b.txs) <= 0 {
		return fmt.Errorf("empty bundle")
	}
	for i, tx := range b.txs {
		for _, in := range tx.TxIn {
			prevout := in.PreviousOutPoint
			if IsFundingOutpoint(prevout) {
				continue
			}
			j, ok := b.index[prevout.Hash]
			if !ok || j >= i {
				return fmt.Errorf(
					"%w: %s required by %s", ErrMissingAncestor,
					prevout.Hash, tx.TxHash(),
				)
			}
			if int(prevout.Index) >= len(b.txs[j].TxOut) {
				return fmt.Errorf(
					"%w: %s", ErrOutputNotFound, prevout,
				)
			}
		}
	}
	return nil
}

// IsFundingOutpoint reports whether prevout is the null outpoint used by
// funding transactions that have no ancestor.
func IsFundingOutpoint(prevout wire.OutPoint) bool {
	return prevout.Hash == (chainhash.Hash{}) && prevout.Index == wire.MaxPrevOutIndex
}

// Serialize encodes the bundle as: version || varint(count) || varbytes(tx)...
// Transactions are serialized without witness data.
func (b *Bundle) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(version)
	if err := wire.WriteVarInt(&buf, 0, uint64(len(b.txs))); err != nil {
		return nil, err
	}
	for _, tx := range b.txs {
		var txBuf bytes.Buffer
		if err := tx.SerializeNoWitness(&txBuf); err != nil {
			return nil, err
		}
		if err := wire.WriteVarBytes(&buf, 0, txBuf.Bytes()); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func Deserialize(buf []byte) (*Bundle, error) {
	r := bytes.NewReader(buf)

	v, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("invalid bundle: %s", err)
	}
	if v != version {
		return nil, fmt.Errorf("unsupported bundle version %d", v)
	}

	count, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, fmt.Errorf("invalid bundle: %s", err)
	}
	if count > uint64(r.Len()) {
		return nil, fmt.Errorf("invalid bundle: tx count %d exceeds payload", count)
	}

	b := New()
	for i := uint64(0); i < count; i++ {
		rawTx, err := wire.ReadVarBytes(r, 0, maxTxSize, "tx")
		if err != nil {
			return nil, fmt.Errorf("invalid bundle tx %d: %s", i, err)
		}
		tx := &wire.MsgTx{}
		if err := tx.DeserializeNoWitness(bytes.NewReader(rawTx)); err != nil {
			return nil, fmt.Errorf("invalid bundle tx %d: %s", i, err)
		}
		b.Add(tx)
	}

	if _, err := r.ReadByte(); err != io.EOF {
		return nil, fmt.Errorf("invalid bundle: unexpected trailing data")
	}

	return b, nil
}

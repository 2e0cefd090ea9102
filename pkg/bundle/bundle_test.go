package bundle_test

import (
	"testing"

	"github.com/bsvhackathon/P2P-Voicemail-sub001/pkg/bundle"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

func fundingTx(value int64) *wire.MsgTx {
	tx := wire.NewMsgTx(1)
	tx.AddTxIn(wire.NewTxIn(
		wire.NewOutPoint(&chainhash.Hash{}, wire.MaxPrevOutIndex),
		[]byte{byte(value)}, nil,
	))
	tx.AddTxOut(wire.NewTxOut(value, []byte{0x51}))
	return tx
}

func spendingTx(parent *wire.MsgTx, vout uint32, value int64) *wire.MsgTx {
	txid := parent.TxHash()
	tx := wire.NewMsgTx(1)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&txid, vout), nil, nil))
	tx.AddTxOut(wire.NewTxOut(value, []byte{0x52}))
	return tx
}

func TestBundle(t *testing.T) {
	funding := fundingTx(1000)
	child := spendingTx(funding, 0, 900)
	grandchild := spendingTx(child, 0, 800)

	b := bundle.New(funding, child, grandchild)
	require.Equal(t, 3, b.Len())
	require.Equal(t, grandchild.TxHash(), b.Subject().TxHash())
	require.NoError(t, b.Validate())

	t.Run("serialize", func(t *testing.T) {
		buf, err := b.Serialize()
		require.NoError(t, err)

		got, err := bundle.Deserialize(buf)
		require.NoError(t, err)
		require.Equal(t, b.Len(), got.Len())
		for i, tx := range got.Txs() {
			require.Equal(t, b.Txs()[i].TxHash(), tx.TxHash())
		}

		_, err = bundle.Deserialize(append(buf, 0x00))
		require.Error(t, err)

		_, err = bundle.Deserialize(buf[:len(buf)-3])
		require.Error(t, err)

		_, err = bundle.Deserialize([]byte{0x02, 0x00})
		require.Error(t, err)
	})

	t.Run("find output", func(t *testing.T) {
		out, err := b.FindOutput(child.TxHash().String(), 0)
		require.NoError(t, err)
		require.Equal(t, int64(900), out.Value)

		_, err = b.FindOutput(child.TxHash().String(), 1)
		require.ErrorIs(t, err, bundle.ErrOutputNotFound)

		unknown := fundingTx(1)
		_, err = b.FindOutput(unknown.TxHash().String(), 0)
		require.ErrorIs(t, err, bundle.ErrTransactionNotFound)
	})

	t.Run("merge deduplicates", func(t *testing.T) {
		other := bundle.New(funding, child)
		other.Merge(b)
		require.Equal(t, 3, other.Len())
		require.NoError(t, other.Validate())
	})

	t.Run("missing ancestor", func(t *testing.T) {
		partial := bundle.New(child, grandchild)
		require.ErrorIs(t, partial.Validate(), bundle.ErrMissingAncestor)

		reversed := bundle.New(grandchild, child, funding)
		require.ErrorIs(t, reversed.Validate(), bundle.ErrMissingAncestor)
	})
}

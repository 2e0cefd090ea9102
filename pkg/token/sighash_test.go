package token_test

import (
	"testing"

	"github.com/bsvhackathon/P2P-Voicemail-sub001/pkg/token"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	otherKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	lockingScript, err := token.Encode(key.PubKey(), [][]byte{[]byte("field")})
	require.NoError(t, err)

	newTx := func() *wire.MsgTx {
		tx := wire.NewMsgTx(1)
		tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{0x01}, 0), nil, nil))
		tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{0x02}, 1), nil, nil))
		tx.AddTxOut(wire.NewTxOut(400, lockingScript))
		return tx
	}

	t.Run("valid", func(t *testing.T) {
		tx := newTx()
		unlockingScript, err := token.Sign(tx, 0, lockingScript, 500, key)
		require.NoError(t, err)
		tx.TxIn[0].SignatureScript = unlockingScript

		require.NoError(t, token.Verify(tx, 0, lockingScript, 500))

		// Filling other unlocking scripts must not invalidate the signature.
		tx.TxIn[1].SignatureScript = []byte{0x01, 0x02}
		require.NoError(t, token.Verify(tx, 0, lockingScript, 500))
	})

	t.Run("invalid", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(tx *wire.MsgTx) (int, uint64)
		}{
			{
				name: "wrong key",
				mutate: func(tx *wire.MsgTx) (int, uint64) {
					unlockingScript, err := token.Sign(tx, 0, lockingScript, 500, otherKey)
					require.NoError(t, err)
					tx.TxIn[0].SignatureScript = unlockingScript
					return 0, 500
				},
			},
			{
				name: "wrong value",
				mutate: func(tx *wire.MsgTx) (int, uint64) {
					unlockingScript, err := token.Sign(tx, 0, lockingScript, 500, key)
					require.NoError(t, err)
					tx.TxIn[0].SignatureScript = unlockingScript
					return 0, 501
				},
			},
			{
				name: "wrong input",
				mutate: func(tx *wire.MsgTx) (int, uint64) {
					unlockingScript, err := token.Sign(tx, 0, lockingScript, 500, key)
					require.NoError(t, err)
					tx.TxIn[1].SignatureScript = unlockingScript
					return 1, 500
				},
			},
			{
				name: "tampered outputs",
				mutate: func(tx *wire.MsgTx) (int, uint64) {
					unlockingScript, err := token.Sign(tx, 0, lockingScript, 500, key)
					require.NoError(t, err)
					tx.TxIn[0].SignatureScript = unlockingScript
					tx.TxOut[0].Value = 500
					return 0, 500
				},
			},
			{
				name: "empty unlocking script",
				mutate: func(tx *wire.MsgTx) (int, uint64) {
					return 0, 500
				},
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				tx := newTx()
				idx, sats := tt.mutate(tx)
				err := token.Verify(tx, idx, lockingScript, sats)
				require.ErrorIs(t, err, token.ErrInvalidSignature)
			})
		}
	})

	t.Run("out of range input", func(t *testing.T) {
		_, err := token.SignatureHash(newTx(), 2, lockingScript, 500)
		require.Error(t, err)
	})

	t.Run("unlocking script rejects garbage", func(t *testing.T) {
		_, err := token.UnlockingScript([]byte("not a signature"))
		require.ErrorIs(t, err, token.ErrInvalidSignature)
	})
}

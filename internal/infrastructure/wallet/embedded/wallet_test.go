package embeddedwallet_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"testing"

	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/core/domain"
	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/core/ports"
	embeddedwallet "github.com/bsvhackathon/P2P-Voicemail-sub001/internal/infrastructure/wallet/embedded"
	"github.com/bsvhackathon/P2P-Voicemail-sub001/pkg/token"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

const password = "password"

func newWallet(t *testing.T) *embeddedwallet.Service {
	t.Helper()
	ctx := context.Background()

	w, err := embeddedwallet.NewService(embeddedwallet.WalletConfig{})
	require.NoError(t, err)
	t.Cleanup(w.Close)

	_, err = w.Create(ctx, password, "")
	require.NoError(t, err)
	_, err = w.Unlock(ctx, password)
	require.NoError(t, err)
	return w
}

func identity(t *testing.T, w *embeddedwallet.Service) string {
	t.Helper()
	key, err := w.IdentityKey(context.Background())
	require.NoError(t, err)
	return key
}

func parsePubKey(t *testing.T, s string) *btcec.PublicKey {
	t.Helper()
	buf, err := hex.DecodeString(s)
	require.NoError(t, err)
	key, err := btcec.ParsePubKey(buf)
	require.NoError(t, err)
	return key
}

func TestWalletLifecycle(t *testing.T) {
	ctx := context.Background()

	w, err := embeddedwallet.NewService(embeddedwallet.WalletConfig{})
	require.NoError(t, err)
	defer w.Close()

	require.False(t, w.IsInitialized())
	_, err = w.Unlock(ctx, password)
	require.ErrorIs(t, err, embeddedwallet.ErrNotInitialized)

	prvkey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	dumped, err := w.Create(ctx, password, hex.EncodeToString(prvkey.Serialize()))
	require.NoError(t, err)
	require.Equal(t, hex.EncodeToString(prvkey.Serialize()), dumped)

	_, err = w.Create(ctx, password, "")
	require.Error(t, err)

	require.True(t, w.IsLocked())
	require.Equal(
		t, hex.EncodeToString(prvkey.PubKey().SerializeCompressed()), identity(t, w),
	)

	_, err = w.Encrypt(ctx, domain.NewKeyRef("ns-test", "self"), []byte("data"))
	require.ErrorIs(t, err, embeddedwallet.ErrLocked)

	_, err = w.Unlock(ctx, "wrong")
	require.Error(t, err)

	alreadyUnlocked, err := w.Unlock(ctx, password)
	require.NoError(t, err)
	require.False(t, alreadyUnlocked)
	require.False(t, w.IsLocked())

	require.Error(t, w.Lock(ctx, "wrong"))
	require.NoError(t, w.Lock(ctx, password))
	require.True(t, w.IsLocked())
}

func TestWalletReopen(t *testing.T) {
	ctx := context.Background()
	datadir := t.TempDir()

	w, err := embeddedwallet.NewService(embeddedwallet.WalletConfig{Datadir: datadir})
	require.NoError(t, err)
	_, err = w.Create(ctx, password, "")
	require.NoError(t, err)
	identityKey := identity(t, w)
	w.Close()

	w, err = embeddedwallet.NewService(embeddedwallet.WalletConfig{Datadir: datadir})
	require.NoError(t, err)
	defer w.Close()

	require.True(t, w.IsInitialized())
	require.True(t, w.IsLocked())
	require.Equal(t, identityKey, identity(t, w))

	// The password is only checked against the sealed key.
	_, err = w.Unlock(ctx, "wrong")
	require.Error(t, err)
	require.True(t, w.IsLocked())
	_, err = w.Unlock(ctx, "")
	require.Error(t, err)
	require.True(t, w.IsLocked())

	_, err = w.Unlock(ctx, password)
	require.NoError(t, err)
	require.False(t, w.IsLocked())

	require.Error(t, w.Lock(ctx, "wrong"))
	require.False(t, w.IsLocked())
	require.NoError(t, w.Lock(ctx, password))
	require.True(t, w.IsLocked())
}

func TestKeyDerivation(t *testing.T) {
	ctx := context.Background()
	alice := newWallet(t)
	bob := newWallet(t)
	aliceKey := identity(t, alice)
	bobKey := identity(t, bob)

	t.Run("child keys match across parties", func(t *testing.T) {
		lockKey, err := alice.GetPublicKey(ctx, domain.NewKeyRef("voicemail-rebuild", bobKey), false)
		require.NoError(t, err)
		ownKey, err := bob.GetPublicKey(ctx, domain.NewKeyRef("voicemail-rebuild", aliceKey), true)
		require.NoError(t, err)
		require.Equal(t, lockKey, ownKey)

		otherNs, err := alice.GetPublicKey(ctx, domain.NewKeyRef("voicemail-rebuild-sent", bobKey), false)
		require.NoError(t, err)
		require.NotEqual(t, lockKey, otherNs)
	})

	t.Run("signature", func(t *testing.T) {
		lockKey, err := alice.GetPublicKey(ctx, domain.NewKeyRef("voicemail-rebuild", bobKey), false)
		require.NoError(t, err)

		digest := bytes.Repeat([]byte{0x42}, 32)
		sig, err := bob.CreateSignature(ctx, domain.NewKeyRef("voicemail-rebuild", aliceKey), digest)
		require.NoError(t, err)

		parsed, err := ecdsa.ParseDERSignature(sig)
		require.NoError(t, err)
		require.True(t, parsed.Verify(digest, parsePubKey(t, lockKey)))

		// Signing as self instead of the sender yields the wrong key.
		sig, err = bob.CreateSignature(ctx, domain.NewKeyRef("voicemail-rebuild", "self"), digest)
		require.NoError(t, err)
		parsed, err = ecdsa.ParseDERSignature(sig)
		require.NoError(t, err)
		require.False(t, parsed.Verify(digest, parsePubKey(t, lockKey)))

		_, err = bob.CreateSignature(ctx, domain.NewKeyRef("voicemail-rebuild", aliceKey), []byte{0x01})
		require.Error(t, err)
	})

	t.Run("encryption", func(t *testing.T) {
		plaintext := []byte("call me")

		ciphertext, err := alice.Encrypt(ctx, domain.NewKeyRef("voicemail-rebuild", bobKey), plaintext)
		require.NoError(t, err)

		got, err := bob.Decrypt(ctx, domain.NewKeyRef("voicemail-rebuild", aliceKey), ciphertext)
		require.NoError(t, err)
		require.Equal(t, plaintext, got)

		got, err = alice.Decrypt(ctx, domain.NewKeyRef("voicemail-rebuild", bobKey), ciphertext)
		require.NoError(t, err)
		require.Equal(t, plaintext, got)

		tests := []struct {
			name   string
			wallet *embeddedwallet.Service
			key    domain.KeyRef
		}{
			{"wrong namespace", bob, domain.NewKeyRef("voicemail-rebuild-archived", aliceKey)},
			{"wrong counterparty", bob, domain.NewKeyRef("voicemail-rebuild", "self")},
			{"wrong key id", bob, domain.KeyRef{Namespace: "voicemail-rebuild", KeyID: "2", Counterparty: aliceKey}},
			{"third party", newWallet(t), domain.NewKeyRef("voicemail-rebuild", aliceKey)},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := tt.wallet.Decrypt(ctx, tt.key, ciphertext)
				require.Error(t, err)
				require.Nil(t, got)
			})
		}
	})

	t.Run("self encryption", func(t *testing.T) {
		ciphertext, err := alice.Encrypt(ctx, domain.NewKeyRef("todo-list", "self"), []byte("buy milk"))
		require.NoError(t, err)

		got, err := alice.Decrypt(ctx, domain.NewKeyRef("todo-list", aliceKey), ciphertext)
		require.NoError(t, err)
		require.Equal(t, []byte("buy milk"), got)

		_, err = bob.Decrypt(ctx, domain.NewKeyRef("todo-list", aliceKey), ciphertext)
		require.Error(t, err)
	})

	t.Run("invalid key refs", func(t *testing.T) {
		for _, key := range []domain.KeyRef{
			{Namespace: "", KeyID: "1", Counterparty: "self"},
			{Namespace: " padded ", KeyID: "1", Counterparty: "self"},
			{Namespace: "todo-list", KeyID: "", Counterparty: "self"},
			{Namespace: "todo-list", KeyID: "1", Counterparty: ""},
			{Namespace: "todo-list", KeyID: "1", Counterparty: "not-a-key"},
		} {
			_, err := alice.Encrypt(ctx, key, []byte("x"))
			require.Error(t, err, "%+v", key)
		}
	})
}

func TestActions(t *testing.T) {
	ctx := context.Background()
	w := newWallet(t)

	_, err := w.Fund(ctx, 10000)
	require.NoError(t, err)
	balance, err := w.Balance(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(10000), balance)

	key := domain.NewKeyRef("todo-list", "self")
	lockKey, err := w.GetPublicKey(ctx, key, false)
	require.NoError(t, err)
	lockingScript, err := token.Encode(parsePubKey(t, lockKey), [][]byte{[]byte("task")})
	require.NoError(t, err)

	res, err := w.CreateAction(ctx, ports.CreateActionArgs{
		Description: "create task",
		Outputs: []domain.TokenOutput{
			{LockingScript: lockingScript, Satoshis: 300, Basket: "tasks"},
			{LockingScript: lockingScript, Satoshis: 200},
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Txid)
	require.NotEmpty(t, res.Bundle)
	require.Nil(t, res.Signable)

	balance, err = w.Balance(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(9500), balance)

	outputs, err := w.ListOutputs(ctx, ports.ListOutputsArgs{Basket: "tasks", IncludeBundle: true})
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	task := outputs[0]
	require.Equal(t, uint64(300), task.Satoshis)
	require.Equal(t, res.Txid, task.Outpoint.Txid)
	require.NotEmpty(t, task.Bundle)

	spend := func(t *testing.T, signer domain.KeyRef) (*ports.CreateActionResult, map[uint32]ports.SpendArgs) {
		res, err := w.CreateAction(ctx, ports.CreateActionArgs{
			Description: "complete task",
			InputBundle: task.Bundle,
			Inputs:      []ports.ActionInput{{Outpoint: task.Outpoint, UnlockingScriptLength: 73}},
		})
		require.NoError(t, err)
		require.NotNil(t, res.Signable)

		tx := &wire.MsgTx{}
		require.NoError(t, tx.DeserializeNoWitness(bytes.NewReader(res.Signable.Tx)))
		digest, err := token.SignatureHash(tx, 0, task.LockingScript, task.Satoshis)
		require.NoError(t, err)
		sig, err := w.CreateSignature(ctx, signer, digest)
		require.NoError(t, err)
		unlockingScript, err := token.UnlockingScript(sig)
		require.NoError(t, err)
		return res, map[uint32]ports.SpendArgs{0: {UnlockingScript: unlockingScript}}
	}

	t.Run("reserved input", func(t *testing.T) {
		res, _ := spend(t, key)
		_, err := w.CreateAction(ctx, ports.CreateActionArgs{
			Inputs: []ports.ActionInput{{Outpoint: task.Outpoint}},
		})
		require.Error(t, err)
		require.NoError(t, w.AbortAction(ctx, res.Signable.Reference))
		require.ErrorIs(t, w.AbortAction(ctx, res.Signable.Reference), embeddedwallet.ErrUnknownAction)
	})

	t.Run("invalid unlocking script", func(t *testing.T) {
		res, spends := spend(t, domain.NewKeyRef("voicemail-rebuild", "self"))
		_, err := w.SignAction(ctx, res.Signable.Reference, spends)
		require.ErrorIs(t, err, token.ErrInvalidSignature)

		_, err = w.SignAction(ctx, res.Signable.Reference, nil)
		require.Error(t, err)

		require.NoError(t, w.AbortAction(ctx, res.Signable.Reference))

		outputs, err := w.ListOutputs(ctx, ports.ListOutputsArgs{Basket: "tasks"})
		require.NoError(t, err)
		require.Len(t, outputs, 1)
	})

	t.Run("valid unlocking script", func(t *testing.T) {
		res, spends := spend(t, key)
		signed, err := w.SignAction(ctx, res.Signable.Reference, spends)
		require.NoError(t, err)
		require.NotEmpty(t, signed.Txid)

		outputs, err := w.ListOutputs(ctx, ports.ListOutputsArgs{Basket: "tasks"})
		require.NoError(t, err)
		require.Empty(t, outputs)

		balance, err := w.Balance(ctx)
		require.NoError(t, err)
		require.Equal(t, uint64(9800), balance)

		_, err = w.SignAction(ctx, res.Signable.Reference, spends)
		require.ErrorIs(t, err, embeddedwallet.ErrUnknownAction)

		_, err = w.CreateAction(ctx, ports.CreateActionArgs{
			Inputs: []ports.ActionInput{{Outpoint: task.Outpoint}},
		})
		require.ErrorIs(t, err, embeddedwallet.ErrOutputNotFound)
	})

	t.Run("insufficient funds", func(t *testing.T) {
		_, err := w.CreateAction(ctx, ports.CreateActionArgs{
			Outputs: []domain.TokenOutput{{LockingScript: lockingScript, Satoshis: 1000000}},
		})
		require.ErrorIs(t, err, embeddedwallet.ErrInsufficientFunds)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := w.CreateAction(cctx, ports.CreateActionArgs{
			Outputs: []domain.TokenOutput{{LockingScript: lockingScript, Satoshis: 1}},
		})
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestInternalizeAction(t *testing.T) {
	ctx := context.Background()
	alice := newWallet(t)
	bob := newWallet(t)

	_, err := alice.Fund(ctx, 1000)
	require.NoError(t, err)

	lockKey, err := alice.GetPublicKey(ctx, domain.NewKeyRef("voicemail-rebuild", identity(t, bob)), false)
	require.NoError(t, err)
	lockingScript, err := token.Encode(parsePubKey(t, lockKey), [][]byte{[]byte("x")})
	require.NoError(t, err)

	res, err := alice.CreateAction(ctx, ports.CreateActionArgs{
		Outputs: []domain.TokenOutput{{LockingScript: lockingScript, Satoshis: 500}},
	})
	require.NoError(t, err)

	args := ports.InternalizeActionArgs{
		Bundle:  res.Bundle,
		Outputs: []ports.InternalizeOutput{{OutputIndex: 0, Basket: "internalize-inbox"}},
	}
	require.NoError(t, bob.InternalizeAction(ctx, args))
	require.NoError(t, bob.InternalizeAction(ctx, args))

	outputs, err := bob.ListOutputs(ctx, ports.ListOutputsArgs{Basket: "internalize-inbox"})
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	require.Equal(t, uint64(500), outputs[0].Satoshis)
	require.Equal(t, lockingScript, outputs[0].LockingScript)

	err = bob.InternalizeAction(ctx, ports.InternalizeActionArgs{
		Bundle:  res.Bundle,
		Outputs: []ports.InternalizeOutput{{OutputIndex: 5, Basket: "internalize-inbox"}},
	})
	require.ErrorIs(t, err, embeddedwallet.ErrOutputNotFound)

	err = bob.InternalizeAction(ctx, ports.InternalizeActionArgs{
		Bundle:  []byte{0x01, 0x00},
		Outputs: args.Outputs,
	})
	require.Error(t, err)
}

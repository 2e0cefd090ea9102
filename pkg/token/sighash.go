package token

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

var ErrInvalidSignature = errors.New("invalid signature")

// SignatureHash returns the digest committed to by the unlocking proof of
// the given input: sha256d(tx without unlocking scripts || le32(index) ||
// sha256(lockingScript) || le64(satoshis)).
func SignatureHash(
	tx *wire.MsgTx, inputIndex int, lockingScript []byte, satoshis uint64,
) ([]byte, error) {
	if tx == nil {
		return nil, fmt.Errorf("missing tx")
	}
	if inputIndex < 0 || inputIndex >= len(tx.TxIn) {
		return nil, fmt.Errorf("input index %d out of range", inputIndex)
	}

	stripped := tx.Copy()
	for _, in := range stripped.TxIn {
		in.SignatureScript = nil
	}

	var buf bytes.Buffer
	if err := stripped.SerializeNoWitness(&buf); err != nil {
		return nil, err
	}

	var scratch [8]byte
	binary.LittleEndian.PutUint32(scratch[:4], uint32(inputIndex))
	buf.Write(scratch[:4])

	scriptHash := sha256.Sum256(lockingScript)
	buf.Write(scriptHash[:])

	binary.LittleEndian.PutUint64(scratch[:], satoshis)
	buf.Write(scratch[:])

	return chainhash.DoubleHashB(buf.Bytes()), nil
}

// UnlockingScript wraps a DER encoded signature into the unlocking script of
// a token input.
func UnlockingScript(derSig []byte) ([]byte, error) {
	if _, err := ecdsa.ParseDERSignature(derSig); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSignature, err)
	}
	return txscript.NewScriptBuilder().AddData(derSig).Script()
}

// Sign produces the unlocking script for the given input with the private
// key matching the token locking key.
func Sign(
	tx *wire.MsgTx, inputIndex int, lockingScript []byte, satoshis uint64,
	key *btcec.PrivateKey,
) ([]byte, error) {
	digest, err := SignatureHash(tx, inputIndex, lockingScript, satoshis)
	if err != nil {
		return nil, err
	}
	sig := ecdsa.Sign(key, digest)
	return UnlockingScript(sig.Serialize())
}

// Verify checks that the unlocking script of the given input carries a valid
// signature for the locking key of the spent token.
func Verify(
	tx *wire.MsgTx, inputIndex int, lockingScript []byte, satoshis uint64,
) error {
	tok, err := Decode(lockingScript)
	if err != nil {
		return err
	}
	digest, err := SignatureHash(tx, inputIndex, lockingScript, satoshis)
	if err != nil {
		return err
	}

	tokenizer := txscript.MakeScriptTokenizer(
		0, tx.TxIn[inputIndex].SignatureScript,
	)
	if !tokenizer.Next() {
		return fmt.Errorf("%w: empty unlocking script", ErrInvalidSignature)
	}
	derSig := tokenizer.Data()
	if tokenizer.Next() {
		return fmt.Errorf("%w: unexpected data in unlocking script", ErrInvalidSignature)
	}

	sig, err := ecdsa.ParseDERSignature(derSig)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidSignature, err)
	}
	if !sig.Verify(digest, tok.LockingKey) {
		return ErrInvalidSignature
	}
	return nil
}

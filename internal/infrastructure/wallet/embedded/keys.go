package embeddedwallet

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/core/domain"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

const (
	// Every key is derived at security level 2, ie. bound to both the
	// namespace and the counterparty.
	securityLevel = 2

	anyoneCounterparty = "anyone"
	maxKeyIDLen        = 800
)

func (w *Service) IdentityKey(_ context.Context) (string, error) {
	w.keyLock.RLock()
	defer w.keyLock.RUnlock()

	if w.walletData == nil {
		return "", ErrNotInitialized
	}
	return hex.EncodeToString(w.walletData.PubKey), nil
}

// GetPublicKey returns the child public key for the given derivation.
// With forSelf the key is the one this wallet can sign for, otherwise it is
// the key the counterparty can sign for.
func (w *Service) GetPublicKey(
	_ context.Context, key domain.KeyRef, forSelf bool,
) (string, error) {
	root, err := w.getPrivateKey()
	if err != nil {
		return "", err
	}
	counterparty, invoice, err := w.parseKeyRef(root, key)
	if err != nil {
		return "", err
	}

	var pubkey *secp256k1.PublicKey
	if forSelf {
		child, err := derivePrivateKey(root, counterparty, invoice)
		if err != nil {
			return "", err
		}
		pubkey = child.PubKey()
	} else {
		pubkey, err = derivePublicKey(root, counterparty, invoice)
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(pubkey.SerializeCompressed()), nil
}

func (w *Service) Encrypt(
	_ context.Context, key domain.KeyRef, plaintext []byte,
) ([]byte, error) {
	symmetricKey, err := w.symmetricKey(key)
	if err != nil {
		return nil, err
	}
	return encrypt(symmetricKey, plaintext)
}

func (w *Service) Decrypt(
	_ context.Context, key domain.KeyRef, ciphertext []byte,
) ([]byte, error) {
	symmetricKey, err := w.symmetricKey(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := decrypt(symmetricKey, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %s", err)
	}
	return plaintext, nil
}

func (w *Service) CreateSignature(
	_ context.Context, key domain.KeyRef, digest []byte,
) ([]byte, error) {
	if len(digest) != sha256.Size {
		return nil, fmt.Errorf("invalid digest length %d", len(digest))
	}
	root, err := w.getPrivateKey()
	if err != nil {
		return nil, err
	}
	counterparty, invoice, err := w.parseKeyRef(root, key)
	if err != nil {
		return nil, err
	}
	child, err := derivePrivateKey(root, counterparty, invoice)
	if err != nil {
		return nil, err
	}
	return ecdsa.Sign(child, digest).Serialize(), nil
}

// symmetricKey is the ECDH secret between our child key and the
// counterparty's child key for the same invoice. Both ends compute the same
// value.
func (w *Service) symmetricKey(key domain.KeyRef) ([]byte, error) {
	root, err := w.getPrivateKey()
	if err != nil {
		return nil, err
	}
	counterparty, invoice, err := w.parseKeyRef(root, key)
	if err != nil {
		return nil, err
	}
	ourChild, err := derivePrivateKey(root, counterparty, invoice)
	if err != nil {
		return nil, err
	}
	theirChild, err := derivePublicKey(root, counterparty, invoice)
	if err != nil {
		return nil, err
	}
	return secp256k1.GenerateSharedSecret(ourChild, theirChild), nil
}

func (w *Service) parseKeyRef(
	root *secp256k1.PrivateKey, key domain.KeyRef,
) (*secp256k1.PublicKey, string, error) {
	invoice, err := invoiceNumber(key)
	if err != nil {
		return nil, "", err
	}
	counterparty, err := parseCounterparty(root, key.Counterparty)
	if err != nil {
		return nil, "", err
	}
	return counterparty, invoice, nil
}

func invoiceNumber(key domain.KeyRef) (string, error) {
	namespace := strings.TrimSpace(key.Namespace)
	if len(namespace) <= 0 || namespace != key.Namespace {
		return "", fmt.Errorf("invalid namespace %q", key.Namespace)
	}
	if len(key.KeyID) <= 0 || len(key.KeyID) > maxKeyIDLen {
		return "", fmt.Errorf("invalid key id %q", key.KeyID)
	}
	return fmt.Sprintf("%d-%s-%s", securityLevel, namespace, key.KeyID), nil
}

func parseCounterparty(
	root *secp256k1.PrivateKey, counterparty string,
) (*secp256k1.PublicKey, error) {
	switch counterparty {
	case "":
		return nil, fmt.Errorf("missing counterparty")
	case domain.SelfCounterparty:
		return root.PubKey(), nil
	case anyoneCounterparty:
		var one secp256k1.ModNScalar
		one.SetInt(1)
		return secp256k1.NewPrivateKey(&one).PubKey(), nil
	}

	buf, err := hex.DecodeString(counterparty)
	if err != nil {
		return nil, fmt.Errorf("invalid counterparty key: %s", err)
	}
	pubkey, err := secp256k1.ParsePubKey(buf)
	if err != nil {
		return nil, fmt.Errorf("invalid counterparty key: %s", err)
	}
	return pubkey, nil
}

// keyOffset is HMAC-SHA256 keyed by the shared secret between root and
// counterparty over the invoice number.
func keyOffset(
	root *secp256k1.PrivateKey, counterparty *secp256k1.PublicKey, invoice string,
) *secp256k1.ModNScalar {
	shared := secp256k1.GenerateSharedSecret(root, counterparty)
	mac := hmac.New(sha256.New, shared)
	mac.Write([]byte(invoice))

	var offset secp256k1.ModNScalar
	offset.SetByteSlice(mac.Sum(nil))
	return &offset
}

func derivePrivateKey(
	root *secp256k1.PrivateKey, counterparty *secp256k1.PublicKey, invoice string,
) (*secp256k1.PrivateKey, error) {
	offset := keyOffset(root, counterparty, invoice)

	var child secp256k1.ModNScalar
	child.Set(&root.Key)
	child.Add(offset)
	if child.IsZero() {
		return nil, fmt.Errorf("invalid derived private key")
	}
	return secp256k1.NewPrivateKey(&child), nil
}

func derivePublicKey(
	root *secp256k1.PrivateKey, counterparty *secp256k1.PublicKey, invoice string,
) (*secp256k1.PublicKey, error) {
	offset := keyOffset(root, counterparty, invoice)

	var offsetPoint, base, child secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(offset, &offsetPoint)
	counterparty.AsJacobian(&base)
	secp256k1.AddNonConst(&base, &offsetPoint, &child)
	child.ToAffine()

	if (child.X.IsZero() && child.Y.IsZero()) || child.Z.IsZero() {
		return nil, fmt.Errorf("invalid derived public key")
	}
	return secp256k1.NewPublicKey(&child.X, &child.Y), nil
}

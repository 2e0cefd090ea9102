package domain

import "fmt"

// KeyRef is the (namespace, keyID, counterparty) triple under which a token
// is locked and its fields are encrypted.
type KeyRef struct {
	Namespace    string
	KeyID        string
	Counterparty string
}

func NewKeyRef(namespace, counterparty string) KeyRef {
	return KeyRef{namespace, DefaultKeyID, counterparty}
}

func (k KeyRef) IsSelf() bool {
	return k.Counterparty == SelfCounterparty
}

type TokenOutput struct {
	LockingScript []byte
	Satoshis      uint64
	Basket        string
	Description   string
}

// SpendIntent collects what is needed to consume one token and create the
// outputs replacing it, if any.
type SpendIntent struct {
	Target        Outpoint
	LockingScript []byte
	Satoshis      uint64
	Bundle        []byte
	Key           KeyRef
	Outputs       []TokenOutput
	Description   string
}

func NewSpendIntent(
	token *Token, outputs []TokenOutput, description string,
) (*SpendIntent, error) {
	if token == nil || token.Outpoint.IsEmpty() {
		return nil, fmt.Errorf("missing target outpoint")
	}
	if len(token.LockingScript) <= 0 {
		return nil, fmt.Errorf("missing locking script")
	}
	if len(token.Key.Namespace) <= 0 || len(token.Key.Counterparty) <= 0 {
		return nil, fmt.Errorf("missing unlocking key")
	}
	for i, out := range outputs {
		if out.Satoshis <= 0 {
			return nil, fmt.Errorf("output %d must carry at least 1 satoshi", i)
		}
		if len(out.LockingScript) <= 0 {
			return nil, fmt.Errorf("output %d is missing locking script", i)
		}
	}

	return &SpendIntent{
		Target:        token.Outpoint,
		LockingScript: token.LockingScript,
		Satoshis:      token.Satoshis,
		Bundle:        token.Bundle,
		Key:           token.Key,
		Outputs:       outputs,
		Description:   description,
	}, nil
}

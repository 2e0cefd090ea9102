package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Outpoint identifies a committed token, encoded as "<txid>.<vout>".
type Outpoint struct {
	Txid string
	VOut uint32
}

func NewOutpoint(txid string, vout uint32) Outpoint {
	return Outpoint{txid, vout}
}

func ParseOutpoint(s string) (Outpoint, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return Outpoint{}, fmt.Errorf("invalid outpoint %s, must be in the form txid.vout", s)
	}
	if _, err := chainhash.NewHashFromStr(parts[0]); err != nil || len(parts[0]) != 2*chainhash.HashSize {
		return Outpoint{}, fmt.Errorf("invalid outpoint txid %s", parts[0])
	}
	vout, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return Outpoint{}, fmt.Errorf("invalid outpoint index %s", parts[1])
	}
	return Outpoint{parts[0], uint32(vout)}, nil
}

func (o Outpoint) String() string {
	return fmt.Sprintf("%s.%d", o.Txid, o.VOut)
}

func (o Outpoint) IsEmpty() bool {
	return len(o.Txid) <= 0
}

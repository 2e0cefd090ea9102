package token

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
)

// ErrMalformed is returned when a locking script does not have the shape of a
// token: <pubkey> OP_CHECKSIG <field>... followed by the drop opcodes that
// clear the fields from the stack.
var ErrMalformed = errors.New("malformed token")

// Token is the decoded form of a locking script carrying an ordered list of
// opaque fields. The codec does not know which fields are encrypted.
type Token struct {
	LockingKey *btcec.PublicKey
	Fields     [][]byte
}

// Encode serializes the locking key and fields into a locking script.
// Every field is a plain data push, using the shortest push opcode for its
// length and without the standard element size cap, so that large payloads
// such as audio fit into a single field. Single byte fields are never turned
// into small integer opcodes, which keeps 0x00 distinct from an empty field.
func Encode(lockingKey *btcec.PublicKey, fields [][]byte) ([]byte, error) {
	if lockingKey == nil {
		return nil, fmt.Errorf("missing locking key")
	}

	prefix, err := txscript.NewScriptBuilder().
		AddData(lockingKey.SerializeCompressed()).
		AddOp(txscript.OP_CHECKSIG).
		Script()
	if err != nil {
		return nil, err
	}

	script := bytes.NewBuffer(prefix)
	for _, field := range fields {
		writePush(script, field)
	}

	// The builder refuses to add opcodes once the script grows past the
	// standard size limit, drops are appended by hand.
	for i := 0; i < len(fields)/2; i++ {
		script.WriteByte(txscript.OP_2DROP)
	}
	if len(fields)%2 == 1 {
		script.WriteByte(txscript.OP_DROP)
	}

	return script.Bytes(), nil
}

// Decode parses a locking script produced by Encode.
// Any deviation from the canonical encoding is reported as ErrMalformed so
// that Encode(Decode(x)) always yields x.
func Decode(script []byte) (*Token, error) {
	tokenizer := txscript.MakeScriptTokenizer(0, script)

	if !tokenizer.Next() || len(tokenizer.Data()) != btcec.PubKeyBytesLenCompressed {
		return nil, fmt.Errorf("%w: missing locking key", ErrMalformed)
	}
	lockingKey, err := btcec.ParsePubKey(tokenizer.Data())
	if err != nil {
		return nil, fmt.Errorf("%w: invalid locking key: %s", ErrMalformed, err)
	}

	if !tokenizer.Next() || tokenizer.Opcode() != txscript.OP_CHECKSIG {
		return nil, fmt.Errorf("%w: missing OP_CHECKSIG", ErrMalformed)
	}

	fields := make([][]byte, 0)
	for tokenizer.Next() {
		op := tokenizer.Opcode()
		if op == txscript.OP_2DROP || op == txscript.OP_DROP {
			break
		}
		field, ok := pushedData(op, tokenizer.Data())
		if !ok {
			return nil, fmt.Errorf("%w: unexpected opcode 0x%02x", ErrMalformed, op)
		}
		fields = append(fields, field)
	}
	for tokenizer.Next() {
		op := tokenizer.Opcode()
		if op != txscript.OP_2DROP && op != txscript.OP_DROP {
			return nil, fmt.Errorf("%w: unexpected opcode 0x%02x", ErrMalformed, op)
		}
	}
	if err := tokenizer.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformed, err)
	}

	tok := &Token{lockingKey, fields}

	rebuilt, err := Encode(lockingKey, fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformed, err)
	}
	if !bytes.Equal(rebuilt, script) {
		return nil, fmt.Errorf("%w: non canonical encoding", ErrMalformed)
	}

	return tok, nil
}

// Script re-encodes the token.
func (t *Token) Script() ([]byte, error) {
	return Encode(t.LockingKey, t.Fields)
}

func writePush(buf *bytes.Buffer, data []byte) {
	size := len(data)
	switch {
	case size == 0:
		buf.WriteByte(txscript.OP_0)
		return
	case size < txscript.OP_PUSHDATA1:
		buf.WriteByte(byte(size))
	case size <= 0xff:
		buf.WriteByte(txscript.OP_PUSHDATA1)
		buf.WriteByte(byte(size))
	case size <= 0xffff:
		var l [2]byte
		binary.LittleEndian.PutUint16(l[:], uint16(size))
		buf.WriteByte(txscript.OP_PUSHDATA2)
		buf.Write(l[:])
	default:
		var l [4]byte
		binary.LittleEndian.PutUint32(l[:], uint32(size))
		buf.WriteByte(txscript.OP_PUSHDATA4)
		buf.Write(l[:])
	}
	buf.Write(data)
}

func pushedData(op byte, data []byte) ([]byte, bool) {
	if op > txscript.OP_PUSHDATA4 {
		return nil, false
	}
	return append([]byte{}, data...), true
}

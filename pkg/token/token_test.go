package token_test

import (
	"bytes"
	"testing"

	"github.com/bsvhackathon/P2P-Voicemail-sub001/pkg/token"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pubkey := key.PubKey()

	tests := []struct {
		name   string
		fields [][]byte
	}{
		{
			name:   "no fields",
			fields: [][]byte{},
		},
		{
			name:   "empty field",
			fields: [][]byte{{}},
		},
		{
			name:   "small integers",
			fields: [][]byte{{0x01}, {0x10}, {0x81}},
		},
		{
			name:   "single byte above small int range",
			fields: [][]byte{{0x11}, {0x00}},
		},
		{
			name:   "voicemail shaped",
			fields: [][]byte{pubkey.SerializeCompressed(), []byte("audio"), []byte("1700000000000"), {0x00}},
		},
		{
			name:   "field above element size limit",
			fields: [][]byte{bytes.Repeat([]byte{0xab}, 600)},
		},
		{
			name:   "field above script size limit",
			fields: [][]byte{bytes.Repeat([]byte{0xcd}, 70000), []byte("note")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script, err := token.Encode(pubkey, tt.fields)
			require.NoError(t, err)

			tok, err := token.Decode(script)
			require.NoError(t, err)
			require.True(t, pubkey.IsEqual(tok.LockingKey))
			require.Equal(t, tt.fields, tok.Fields)

			rebuilt, err := tok.Script()
			require.NoError(t, err)
			require.Equal(t, script, rebuilt)
		})
	}

	t.Run("missing locking key", func(t *testing.T) {
		_, err := token.Encode(nil, [][]byte{{0x01}})
		require.Error(t, err)
	})
}

func TestDecodeMalformed(t *testing.T) {
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pubkey := key.PubKey().SerializeCompressed()

	valid, err := token.Encode(key.PubKey(), [][]byte{[]byte("a"), []byte("b")})
	require.NoError(t, err)

	bare, err := token.Encode(key.PubKey(), nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		script []byte
	}{
		{
			name:   "empty script",
			script: []byte{},
		},
		{
			name:   "short key",
			script: append([]byte{0x05}, pubkey[:5]...),
		},
		{
			name:   "missing checksig",
			script: append([]byte{0x21}, pubkey...),
		},
		{
			name:   "extra drop",
			script: append(append([]byte{}, valid...), txscript.OP_DROP),
		},
		{
			name:   "missing drop",
			script: valid[:len(valid)-1],
		},
		{
			name: "non minimal push",
			script: append(
				append([]byte{}, bare...),
				txscript.OP_PUSHDATA1, 0x01, 0x05, txscript.OP_DROP,
			),
		},
		{
			name:   "trailing opcode",
			script: append(append([]byte{}, valid...), txscript.OP_NOP),
		},
		{
			name:   "truncated push",
			script: append(append([]byte{}, bare...), 0x10, 0x01),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := token.Decode(tt.script)
			require.ErrorIs(t, err, token.ErrMalformed)
			require.Nil(t, tok)
		})
	}
}

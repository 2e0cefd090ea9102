package application

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNoteSlot(t *testing.T) {
	tests := []struct {
		note    string
		encoded []byte
		hasNote bool
	}{
		{"", []byte{0x00}, false},
		{"call me back", append([]byte{0x01}, "call me back"...), true},
		{"\x00", []byte{0x01, 0x00}, true},
	}
	for _, tt := range tests {
		t.Run(tt.note, func(t *testing.T) {
			encoded := encodeNote(tt.note)
			require.Equal(t, tt.encoded, encoded)

			note, hasNote, err := decodeNote(encoded)
			require.NoError(t, err)
			require.Equal(t, tt.note, note)
			require.Equal(t, tt.hasNote, hasNote)
		})
	}

	t.Run("invalid", func(t *testing.T) {
		for _, buf := range [][]byte{nil, {0x02, 'a'}, {0x00, 'a'}} {
			_, _, err := decodeNote(buf)
			require.Error(t, err)
		}
	})
}

func TestTimestamp(t *testing.T) {
	now := time.Now()

	t.Run("valid", func(t *testing.T) {
		sent := now.Add(-time.Hour)
		ts, unknown := parseTimestamp(encodeTimestamp(sent), now)
		require.False(t, unknown)
		require.Equal(t, sent.UnixMilli(), ts.UnixMilli())

		// Within the tolerated clock skew.
		sent = now.Add(23 * time.Hour)
		ts, unknown = parseTimestamp(encodeTimestamp(sent), now)
		require.False(t, unknown)
		require.Equal(t, sent.UnixMilli(), ts.UnixMilli())
	})

	t.Run("unknown", func(t *testing.T) {
		for _, buf := range [][]byte{
			nil,
			[]byte("yesterday"),
			[]byte("1.5"),
			encodeTimestamp(now.Add(25 * time.Hour)),
			encodeTimestamp(time.Time{}),
		} {
			ts, unknown := parseTimestamp(buf, now)
			require.True(t, unknown)
			require.Equal(t, now, ts)
		}
	})
}

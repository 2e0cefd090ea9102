package application

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/core/domain"
	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/core/ports"
)

const (
	noteAbsent  byte = 0x00
	notePresent byte = 0x01

	maxClockSkew = 24 * time.Hour
)

// fieldCrypto protects and reveals token fields through the wallet.
type fieldCrypto struct {
	keys ports.KeyService
}

func (c fieldCrypto) protect(
	ctx context.Context, key domain.KeyRef, plaintext []byte,
) ([]byte, error) {
	return c.keys.Encrypt(ctx, key, plaintext)
}

func (c fieldCrypto) reveal(
	ctx context.Context, key domain.KeyRef, ciphertext []byte,
) ([]byte, error) {
	plaintext, err := c.keys.Decrypt(ctx, key, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrDecryptionFailure, err)
	}
	return plaintext, nil
}

func (c fieldCrypto) protectTimestamp(
	ctx context.Context, key domain.KeyRef, t time.Time,
) ([]byte, error) {
	return c.protect(ctx, key, encodeTimestamp(t))
}

// revealTimestamp never fails on content: an unreadable timestamp is
// replaced with now and flagged unknown.
func (c fieldCrypto) revealTimestamp(
	ctx context.Context, key domain.KeyRef, ciphertext []byte,
) (time.Time, bool) {
	plaintext, err := c.reveal(ctx, key, ciphertext)
	if err != nil {
		return time.Now(), true
	}
	return parseTimestamp(plaintext, time.Now())
}

func (c fieldCrypto) protectNote(
	ctx context.Context, key domain.KeyRef, note string,
) ([]byte, error) {
	return c.protect(ctx, key, encodeNote(note))
}

// revealNote defaults to no note if the slot can't be read.
func (c fieldCrypto) revealNote(
	ctx context.Context, key domain.KeyRef, ciphertext []byte,
) (string, bool) {
	plaintext, err := c.reveal(ctx, key, ciphertext)
	if err != nil {
		return "", false
	}
	note, hasNote, err := decodeNote(plaintext)
	if err != nil {
		return "", false
	}
	return note, hasNote
}

// encodeTimestamp leaves the slot empty for the zero time, which reads back
// as unknown.
func encodeTimestamp(t time.Time) []byte {
	if t.IsZero() {
		return []byte{}
	}
	return []byte(strconv.FormatInt(t.UnixMilli(), 10))
}

func parseTimestamp(buf []byte, now time.Time) (time.Time, bool) {
	millis, err := strconv.ParseInt(string(buf), 10, 64)
	if err != nil {
		return now, true
	}
	t := time.UnixMilli(millis)
	if t.After(now.Add(maxClockSkew)) {
		return now, true
	}
	return t, false
}

func encodeNote(note string) []byte {
	if len(note) <= 0 {
		return []byte{noteAbsent}
	}
	return append([]byte{notePresent}, note...)
}

func decodeNote(buf []byte) (string, bool, error) {
	if len(buf) <= 0 {
		return "", false, fmt.Errorf("empty note slot")
	}
	switch buf[0] {
	case noteAbsent:
		if len(buf) > 1 {
			return "", false, fmt.Errorf("unexpected data in empty note slot")
		}
		return "", false, nil
	case notePresent:
		return string(buf[1:]), true, nil
	default:
		return "", false, fmt.Errorf("invalid note marker %#x", buf[0])
	}
}

package messageboxrelay_test

import (
	"context"
	"encoding/hex"
	"net/http/httptest"
	"testing"

	badgerdb "github.com/bsvhackathon/P2P-Voicemail-sub001/internal/infrastructure/db/badger"
	messageboxrelay "github.com/bsvhackathon/P2P-Voicemail-sub001/internal/infrastructure/relay/messagebox"
	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/interface/messagebox"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"
)

func randomIdentity(t *testing.T) string {
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return hex.EncodeToString(key.PubKey().SerializeCompressed())
}

func TestNewRelay(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		identity string
	}{
		{"missing url", "", "02aa"},
		{"invalid scheme", "ftp://localhost", "02aa"},
		{"missing identity", "http://localhost:8080", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := messageboxrelay.NewRelay(tt.url, tt.identity)
			require.Error(t, err)
		})
	}
}

func TestRelay(t *testing.T) {
	ctx := context.Background()

	store, err := badgerdb.NewMessageStore("", nil)
	require.NoError(t, err)
	defer store.Close()

	server := httptest.NewServer(messagebox.NewRouter(store))
	defer server.Close()

	aliceKey, bobKey := randomIdentity(t), randomIdentity(t)

	alice, err := messageboxrelay.NewRelay(server.URL, aliceKey)
	require.NoError(t, err)
	bob, err := messageboxrelay.NewRelay(server.URL+"/", bobKey)
	require.NoError(t, err)

	body := []byte(`{"txid":"abcd","outputIndex":0}`)
	require.NoError(t, alice.SendMessage(ctx, bobKey, "voicemail_inbox", body))
	require.Error(t, alice.SendMessage(ctx, "not-a-key", "voicemail_inbox", body))

	messages, err := bob.ListMessages(ctx, "voicemail_inbox")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, aliceKey, messages[0].Sender)
	require.Equal(t, bobKey, messages[0].Recipient)
	require.Equal(t, body, messages[0].Body)

	messages, err = bob.ListMessages(ctx, "other box")
	require.NoError(t, err)
	require.Empty(t, messages)

	require.NoError(t, bob.AcknowledgeMessages(ctx, nil))

	messages, err = bob.ListMessages(ctx, "voicemail_inbox")
	require.NoError(t, err)
	require.NoError(t, bob.AcknowledgeMessages(ctx, []string{messages[0].Id}))

	messages, err = bob.ListMessages(ctx, "voicemail_inbox")
	require.NoError(t, err)
	require.Empty(t, messages)

	stranger, err := messageboxrelay.NewRelay(server.URL, "not-a-key")
	require.NoError(t, err)
	_, err = stranger.ListMessages(ctx, "voicemail_inbox")
	require.Error(t, err)
}

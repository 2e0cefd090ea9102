package localrelay_test

import (
	"context"
	"testing"

	badgerdb "github.com/bsvhackathon/P2P-Voicemail-sub001/internal/infrastructure/db/badger"
	localrelay "github.com/bsvhackathon/P2P-Voicemail-sub001/internal/infrastructure/relay/local"
	"github.com/stretchr/testify/require"
)

func TestRelay(t *testing.T) {
	ctx := context.Background()

	store, err := badgerdb.NewMessageStore("", nil)
	require.NoError(t, err)
	defer store.Close()

	_, err = localrelay.NewRelay(nil, "alice")
	require.Error(t, err)
	_, err = localrelay.NewRelay(store, "")
	require.Error(t, err)

	alice, err := localrelay.NewRelay(store, "alice")
	require.NoError(t, err)
	bob, err := localrelay.NewRelay(store, "bob")
	require.NoError(t, err)

	require.Error(t, alice.SendMessage(ctx, "", "inbox", []byte("hi")))
	require.Error(t, alice.SendMessage(ctx, "bob", "", []byte("hi")))
	require.NoError(t, alice.SendMessage(ctx, "bob", "inbox", []byte("hi")))

	messages, err := alice.ListMessages(ctx, "inbox")
	require.NoError(t, err)
	require.Empty(t, messages)

	messages, err = bob.ListMessages(ctx, "inbox")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, "alice", messages[0].Sender)
	require.Equal(t, []byte("hi"), messages[0].Body)

	require.NoError(t, alice.AcknowledgeMessages(ctx, []string{messages[0].Id}))
	messages, err = bob.ListMessages(ctx, "inbox")
	require.NoError(t, err)
	require.Len(t, messages, 1)

	require.NoError(t, bob.AcknowledgeMessages(ctx, []string{messages[0].Id}))
	messages, err = bob.ListMessages(ctx, "inbox")
	require.NoError(t, err)
	require.Empty(t, messages)
}

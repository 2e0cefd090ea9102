package domain_test

import (
	"testing"

	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/core/domain"
	"github.com/stretchr/testify/require"
)

var outpoint = domain.NewOutpoint(
	"0000000000000000000000000000000000000000000000000000000000000001", 0,
)

func TestLifecycle(t *testing.T) {
	t.Run("peer token", func(t *testing.T) {
		l := domain.NewLifecycle(domain.VoicemailToPeer)
		require.NotEmpty(t, l.Id)
		require.Equal(t, domain.CreatedStage, l.Stage)

		events, err := l.Commit(outpoint)
		require.NoError(t, err)
		require.Len(t, events, 1)
		require.Equal(t, domain.CommittedStage, l.Stage)
		require.Equal(t, outpoint, l.Outpoint)

		events, err = l.Notify()
		require.NoError(t, err)
		require.Len(t, events, 1)
		require.Equal(t, domain.NotifiedStage, l.Stage)
		require.True(t, l.IsSpendable())

		events, err = l.Redeem("txid")
		require.NoError(t, err)
		require.Len(t, events, 1)
		require.Equal(t, domain.RedeemedStage, l.Stage)
		require.Equal(t, "txid", l.SpentBy)
		require.True(t, l.IsTerminal())
		require.Len(t, l.Changes, 4)

		replayed := domain.NewLifecycleFromEvents(l.Changes)
		require.Equal(t, l.Stage, replayed.Stage)
		require.Equal(t, l.Outpoint, replayed.Outpoint)
		require.Equal(t, uint(4), replayed.Version)
	})

	t.Run("self token skips notification", func(t *testing.T) {
		l := domain.NewLifecycle(domain.VoicemailToSelf)
		_, err := l.Commit(outpoint)
		require.NoError(t, err)

		_, err = l.Notify()
		require.ErrorIs(t, err, domain.ErrInvalidTransition)
		require.Equal(t, domain.CommittedStage, l.Stage)

		_, err = l.Forget("txid")
		require.NoError(t, err)
		require.Equal(t, domain.ForgottenStage, l.Stage)
	})

	t.Run("restored", func(t *testing.T) {
		l := domain.RestoreLifecycle(domain.VoicemailToPeer, outpoint, true)
		require.Equal(t, domain.NotifiedStage, l.Stage)
		require.Equal(t, outpoint, l.Outpoint)

		l = domain.RestoreLifecycle(domain.TaskRecord, outpoint, false)
		require.Equal(t, domain.CommittedStage, l.Stage)
	})

	t.Run("invalid", func(t *testing.T) {
		tests := []struct {
			name       string
			lifecycle  func() *domain.Lifecycle
			transition func(l *domain.Lifecycle) error
		}{
			{
				name:      "redeem uncommitted",
				lifecycle: func() *domain.Lifecycle { return domain.NewLifecycle(domain.VoicemailToPeer) },
				transition: func(l *domain.Lifecycle) error {
					_, err := l.Redeem("txid")
					return err
				},
			},
			{
				name:      "forget uncommitted",
				lifecycle: func() *domain.Lifecycle { return domain.NewLifecycle(domain.TaskRecord) },
				transition: func(l *domain.Lifecycle) error {
					_, err := l.Forget("txid")
					return err
				},
			},
			{
				name:      "notify uncommitted",
				lifecycle: func() *domain.Lifecycle { return domain.NewLifecycle(domain.VoicemailToPeer) },
				transition: func(l *domain.Lifecycle) error {
					_, err := l.Notify()
					return err
				},
			},
			{
				name: "commit twice",
				lifecycle: func() *domain.Lifecycle {
					return domain.RestoreLifecycle(domain.VoicemailToPeer, outpoint, false)
				},
				transition: func(l *domain.Lifecycle) error {
					_, err := l.Commit(outpoint)
					return err
				},
			},
			{
				name: "forget redeemed",
				lifecycle: func() *domain.Lifecycle {
					l := domain.RestoreLifecycle(domain.VoicemailToPeer, outpoint, true)
					_, _ = l.Redeem("txid")
					return l
				},
				transition: func(l *domain.Lifecycle) error {
					_, err := l.Forget("txid")
					return err
				},
			},
			{
				name: "forget forgotten",
				lifecycle: func() *domain.Lifecycle {
					l := domain.RestoreLifecycle(domain.ContactRecord, outpoint, false)
					_, _ = l.Forget("txid")
					return l
				},
				transition: func(l *domain.Lifecycle) error {
					_, err := l.Forget("txid")
					return err
				},
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				l := tt.lifecycle()
				stage := l.Stage
				err := tt.transition(l)
				require.ErrorIs(t, err, domain.ErrInvalidTransition)
				require.Equal(t, stage, l.Stage)
			})
		}
	})
}

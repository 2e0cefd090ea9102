package appconfig_test

import (
	"context"
	"testing"
	"time"

	appconfig "github.com/bsvhackathon/P2P-Voicemail-sub001/internal/app-config"
	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/config"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, dbType string) *config.Config {
	return &config.Config{
		Datadir:                t.TempDir(),
		DbType:                 dbType,
		RelayType:              "local",
		SpendTimeout:           5 * time.Second,
		SentCopySatoshis:       1,
		ListLimit:              100,
		ReconstructConcurrency: 2,
		MessageboxPort:         7070,
	}
}

func TestAppService(t *testing.T) {
	for _, dbType := range []string{"badger", "bolt", "sqlite"} {
		t.Run(dbType, func(t *testing.T) {
			ctx := context.Background()
			cfg, err := appconfig.New(testConfig(t, dbType))
			require.NoError(t, err)
			defer cfg.Close()

			wallet, err := cfg.Wallet()
			require.NoError(t, err)

			// The relay is bound to the wallet identity.
			_, err = cfg.AppService(ctx)
			require.Error(t, err)

			_, err = wallet.Create(ctx, "password", "")
			require.NoError(t, err)
			_, err = wallet.Unlock(ctx, "password")
			require.NoError(t, err)

			svc, err := cfg.AppService(ctx)
			require.NoError(t, err)
			require.NoError(t, svc.Start())

			identity, err := svc.IdentityKey(ctx)
			require.NoError(t, err)
			walletIdentity, err := wallet.IdentityKey(ctx)
			require.NoError(t, err)
			require.Equal(t, walletIdentity, identity)

			absorbed, err := svc.SyncInbox(ctx)
			require.NoError(t, err)
			require.Zero(t, absorbed)
		})
	}
}

func TestInvalidConfig(t *testing.T) {
	_, err := appconfig.New(nil)
	require.Error(t, err)

	cfg := testConfig(t, "postgres")
	_, err = appconfig.New(cfg)
	require.Error(t, err)

	cfg = testConfig(t, "badger")
	cfg.RelayType = "smtp"
	_, err = appconfig.New(cfg)
	require.Error(t, err)

	cfg = testConfig(t, "badger")
	cfg.RelayType = "messagebox"
	_, err = appconfig.New(cfg)
	require.Error(t, err)
}

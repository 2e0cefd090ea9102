package appconfig

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/config"
	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/core/application"
	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/core/ports"
	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/infrastructure/db"
	localrelay "github.com/bsvhackathon/P2P-Voicemail-sub001/internal/infrastructure/relay/local"
	messageboxrelay "github.com/bsvhackathon/P2P-Voicemail-sub001/internal/infrastructure/relay/messagebox"
	scheduler "github.com/bsvhackathon/P2P-Voicemail-sub001/internal/infrastructure/scheduler/gocron"
	embeddedwallet "github.com/bsvhackathon/P2P-Voicemail-sub001/internal/infrastructure/wallet/embedded"
	interfaces "github.com/bsvhackathon/P2P-Voicemail-sub001/internal/interface"
	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/interface/messagebox"
	log "github.com/sirupsen/logrus"
)

const (
	// Messages of the local relay are shared by every wallet of the datadir.
	localRelayDir = "relay"
	messageboxDir = "messagebox"
)

var (
	supportedDbs = supportedType{
		"badger": {},
		"bolt":   {},
		"sqlite": {},
	}
	supportedRelays = supportedType{
		"local":      {},
		"messagebox": {},
	}
)

// Config lazily builds the services of the voicemail app out of the loaded
// configuration.
type Config struct {
	*config.Config

	wallet    *embeddedwallet.Service
	store     ports.MessageStore
	relay     ports.Relay
	scheduler ports.SchedulerService
	svc       application.Service
}

func New(cfg *config.Config) (*Config, error) {
	c := &Config{Config: cfg}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	if c.Config == nil {
		return fmt.Errorf("missing config")
	}
	if !supportedDbs.supports(c.DbType) {
		return fmt.Errorf("db type not supported, please select one of: %s", supportedDbs)
	}
	if !supportedRelays.supports(c.RelayType) {
		return fmt.Errorf("relay type not supported, please select one of: %s", supportedRelays)
	}
	return c.Config.Validate()
}

// Wallet returns the embedded wallet of the datadir, it might be neither
// initialized nor unlocked.
func (c *Config) Wallet() (*embeddedwallet.Service, error) {
	if c.wallet != nil {
		return c.wallet, nil
	}

	svc, err := embeddedwallet.NewService(embeddedwallet.WalletConfig{
		Datadir: c.Datadir,
		Logger:  badgerLogger(),
	})
	if err != nil {
		return nil, err
	}
	c.wallet = svc
	return c.wallet, nil
}

// AppService returns the voicemail service. The wallet must be unlocked
// since the relay is bound to its identity.
func (c *Config) AppService(ctx context.Context) (application.Service, error) {
	if c.svc != nil {
		return c.svc, nil
	}

	wallet, err := c.Wallet()
	if err != nil {
		return nil, err
	}
	if err := c.relayService(ctx, wallet); err != nil {
		return nil, err
	}
	if c.InboxSyncInterval > 0 {
		c.scheduler = scheduler.NewScheduler()
	}

	svc, err := application.NewService(application.Config{
		SpendTimeout:           c.SpendTimeout,
		ArchiveFee:             c.ArchiveFee,
		SentCopySatoshis:       c.SentCopySatoshis,
		ListLimit:              c.ListLimit,
		ReconstructConcurrency: c.ReconstructConcurrency,
		InboxSyncInterval:      c.InboxSyncInterval,
	}, wallet, c.relay, c.scheduler)
	if err != nil {
		return nil, err
	}
	c.svc = svc
	return c.svc, nil
}

// MessageboxService returns the relay server persisting messages in the
// datadir with the configured db type.
func (c *Config) MessageboxService() (interfaces.Service, error) {
	store, err := c.messageStore(filepath.Join(c.Datadir, messageboxDir))
	if err != nil {
		return nil, err
	}
	svc, err := messagebox.NewService(messagebox.Config{Port: c.MessageboxPort}, store)
	if err != nil {
		store.Close()
		return nil, err
	}
	return svc, nil
}

func (c *Config) Close() {
	if c.svc != nil {
		c.svc.Stop()
	}
	if c.store != nil {
		c.store.Close()
	}
	if c.wallet != nil {
		c.wallet.Close()
	}
}

func (c *Config) relayService(
	ctx context.Context, wallet *embeddedwallet.Service,
) error {
	identity, err := wallet.IdentityKey(ctx)
	if err != nil {
		return err
	}

	var relay ports.Relay
	switch c.RelayType {
	case "local":
		store, err := c.messageStore(filepath.Join(c.Datadir, localRelayDir))
		if err != nil {
			return err
		}
		c.store = store
		relay, err = localrelay.NewRelay(store, identity)
		if err != nil {
			return err
		}
	case "messagebox":
		relay, err = messageboxrelay.NewRelay(c.RelayURL, identity)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown relay type")
	}

	c.relay = relay
	return nil
}

func (c *Config) messageStore(dir string) (ports.MessageStore, error) {
	storeConfig := []interface{}{dir}
	if c.DbType == "badger" {
		storeConfig = append(storeConfig, badgerLogger())
	}
	return db.NewMessageStore(db.ServiceConfig{
		StoreType:   c.DbType,
		StoreConfig: storeConfig,
	})
}

func badgerLogger() *log.Logger {
	logger := log.New()
	logger.SetLevel(log.WarnLevel)
	return logger
}

type supportedType map[string]struct{}

func (t supportedType) String() string {
	types := make([]string, 0, len(t))
	for tt := range t {
		types = append(types, tt)
	}
	sort.Strings(types)
	return strings.Join(types, " | ")
}

func (t supportedType) supports(typeStr string) bool {
	_, ok := t[typeStr]
	return ok
}

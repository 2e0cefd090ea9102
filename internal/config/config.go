package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	Datadir        string
	LogLevel       log.Level
	WalletPassword string

	DbType    string
	RelayType string
	RelayURL  string

	InboxSyncInterval      int64
	SpendTimeout           time.Duration
	ArchiveFee             uint64
	SentCopySatoshis       uint64
	ListLimit              int
	ReconstructConcurrency int

	MessageboxPort uint32
}

var (
	Datadir                = "DATADIR"
	LogLevel               = "LOG_LEVEL"
	WalletPassword         = "WALLET_PASSWORD"
	DbType                 = "DB_TYPE"
	RelayType              = "RELAY_TYPE"
	RelayURL               = "RELAY_URL"
	InboxSyncInterval      = "INBOX_SYNC_INTERVAL"
	SpendTimeout           = "SPEND_TIMEOUT"
	ArchiveFee             = "ARCHIVE_FEE"
	SentCopySatoshis       = "SENT_COPY_SATOSHIS"
	ListLimit              = "LIST_LIMIT"
	ReconstructConcurrency = "RECONSTRUCT_CONCURRENCY"
	MessageboxPort         = "MESSAGEBOX_PORT"

	defaultDatadir                = btcutil.AppDataDir("vmail", false)
	defaultLogLevel               = "info"
	defaultDbType                 = "badger"
	defaultRelayType              = "local"
	defaultInboxSyncInterval      = 0
	defaultSpendTimeout           = 30 * time.Second
	defaultArchiveFee             = 0
	defaultSentCopySatoshis       = 1
	defaultListLimit              = 1000
	defaultReconstructConcurrency = 8
	defaultMessageboxPort         = 7070

	supportedRelays = []string{"local", "messagebox"}
)

func LoadConfig() (*Config, error) {
	viper.SetEnvPrefix("VOICEMAIL")
	viper.AutomaticEnv()

	viper.SetDefault(Datadir, defaultDatadir)
	viper.SetDefault(LogLevel, defaultLogLevel)
	viper.SetDefault(DbType, defaultDbType)
	viper.SetDefault(RelayType, defaultRelayType)
	viper.SetDefault(InboxSyncInterval, defaultInboxSyncInterval)
	viper.SetDefault(SpendTimeout, defaultSpendTimeout)
	viper.SetDefault(ArchiveFee, defaultArchiveFee)
	viper.SetDefault(SentCopySatoshis, defaultSentCopySatoshis)
	viper.SetDefault(ListLimit, defaultListLimit)
	viper.SetDefault(ReconstructConcurrency, defaultReconstructConcurrency)
	viper.SetDefault(MessageboxPort, defaultMessageboxPort)

	if err := initDatadir(); err != nil {
		return nil, fmt.Errorf("error while creating datadir: %s", err)
	}

	level, err := log.ParseLevel(viper.GetString(LogLevel))
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %s", err)
	}

	cfg := &Config{
		Datadir:                viper.GetString(Datadir),
		LogLevel:               level,
		WalletPassword:         viper.GetString(WalletPassword),
		DbType:                 strings.ToLower(viper.GetString(DbType)),
		RelayType:              strings.ToLower(viper.GetString(RelayType)),
		RelayURL:               viper.GetString(RelayURL),
		InboxSyncInterval:      viper.GetInt64(InboxSyncInterval),
		SpendTimeout:           viper.GetDuration(SpendTimeout),
		ArchiveFee:             viper.GetUint64(ArchiveFee),
		SentCopySatoshis:       viper.GetUint64(SentCopySatoshis),
		ListLimit:              viper.GetInt(ListLimit),
		ReconstructConcurrency: viper.GetInt(ReconstructConcurrency),
		MessageboxPort:         viper.GetUint32(MessageboxPort),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if len(c.Datadir) <= 0 {
		return fmt.Errorf("missing datadir")
	}
	if !contains(supportedRelays, c.RelayType) {
		return fmt.Errorf(
			"relay type not supported, please select one of: %s",
			strings.Join(supportedRelays, " | "),
		)
	}
	if c.RelayType == "messagebox" && len(c.RelayURL) <= 0 {
		return fmt.Errorf("missing relay url")
	}
	if c.InboxSyncInterval < 0 {
		return fmt.Errorf("inbox sync interval must not be negative")
	}
	if c.SpendTimeout <= 0 {
		return fmt.Errorf("spend timeout must be positive")
	}
	if c.SentCopySatoshis <= 0 {
		return fmt.Errorf("sent copy must carry at least 1 satoshi")
	}
	if c.ListLimit <= 0 {
		return fmt.Errorf("list limit must be positive")
	}
	if c.ReconstructConcurrency <= 0 {
		return fmt.Errorf("reconstruct concurrency must be positive")
	}
	if c.MessageboxPort <= 0 || c.MessageboxPort > 65535 {
		return fmt.Errorf("invalid messagebox port %d", c.MessageboxPort)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, l := range list {
		if l == s {
			return true
		}
	}
	return false
}

func initDatadir() error {
	datadir := viper.GetString(Datadir)
	return makeDirectoryIfNotExists(datadir)
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}

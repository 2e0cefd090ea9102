package db

import (
	"fmt"

	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/core/ports"
	badgerdb "github.com/bsvhackathon/P2P-Voicemail-sub001/internal/infrastructure/db/badger"
	boltdb "github.com/bsvhackathon/P2P-Voicemail-sub001/internal/infrastructure/db/bolt"
	sqlitedb "github.com/bsvhackathon/P2P-Voicemail-sub001/internal/infrastructure/db/sqlite"
)

var messageStoreTypes = map[string]func(...interface{}) (ports.MessageStore, error){
	"badger": badgerdb.NewMessageStore,
	"bolt":   boltdb.NewMessageStore,
	"sqlite": sqlitedb.NewMessageStore,
}

type ServiceConfig struct {
	StoreType   string
	StoreConfig []interface{}
}

func SupportedTypes() []string {
	types := make([]string, 0, len(messageStoreTypes))
	for t := range messageStoreTypes {
		types = append(types, t)
	}
	return types
}

func NewMessageStore(config ServiceConfig) (ports.MessageStore, error) {
	factory, ok := messageStoreTypes[config.StoreType]
	if !ok {
		return nil, fmt.Errorf("invalid message store type: %s", config.StoreType)
	}

	store, err := factory(config.StoreConfig...)
	if err != nil {
		return nil, fmt.Errorf("failed to create message store: %w", err)
	}
	return store, nil
}

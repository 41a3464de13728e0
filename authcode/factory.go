package authcode

import (
	"strings"

	"github.com/pkg/errors"
)

// StoreType selects a Store implementation.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeSQLite StoreType = "sqlite"
	StoreTypeRedis  StoreType = "redis"
)

// ParseStoreType parses a store type case-insensitively.
func ParseStoreType(s string) (StoreType, error) {
	t := StoreType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", errors.Errorf("[authcode.ParseStoreType] %q is not one of memory, sqlite, redis", s)
	}
	return t, nil
}

func (t StoreType) IsValid() bool {
	switch t {
	case StoreTypeMemory, StoreTypeSQLite, StoreTypeRedis:
		return true
	}
	return false
}

// StoreConfig describes which Store to build and how to reach it.
type StoreConfig struct {
	Type       StoreType
	SQLitePath string
	Redis      RedisOptions
}

// NewStore builds the Store described by cfg.
func NewStore(cfg StoreConfig) (Store, error) {
	switch cfg.Type {
	case StoreTypeMemory:
		return NewMemoryStore(), nil
	case StoreTypeSQLite:
		store, err := OpenSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoreTypeRedis:
		if cfg.Redis.Addr == "" {
			return nil, errors.New("[authcode.NewStore] redis address is required")
		}
		store, err := NewRedisStoreFromOptions(cfg.Redis)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, errors.Errorf("[authcode.NewStore] unsupported store type: %s", cfg.Type)
	}
}

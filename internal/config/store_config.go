package config

import (
	"github.com/jrsteele09/go-token-exchange/authcode"
)

type StoreConfig interface {
	GetAuthCodeStoreConfig() authcode.StoreConfig
}

type Store struct {
	StoreType     string `env:"STORE_TYPE" envDefault:"memory"`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"./data/codes.db"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
}

var _ StoreConfig = Store{}

// storeType is only called on a validated config; an unknown value is
// passed through so authcode.NewStore rejects it.
func (s Store) storeType() authcode.StoreType {
	t, err := authcode.ParseStoreType(s.StoreType)
	if err != nil {
		return authcode.StoreType(s.StoreType)
	}
	return t
}

func (s Store) GetAuthCodeStoreConfig() authcode.StoreConfig {
	return authcode.StoreConfig{
		Type:       s.storeType(),
		SQLitePath: s.SQLitePath,
		Redis: authcode.RedisOptions{
			Addr:     s.RedisAddr,
			Password: s.RedisPassword,
			DB:       s.RedisDB,
		},
	}
}

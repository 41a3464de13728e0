package authcode

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/rueidis"
)

const (
	// Key prefixes for Redis storage
	codePrefix     = "auth_code:"
	codeUsedPrefix = "auth_code_used:"
)

var _ Store = (*RedisStore)(nil)

// RedisStore keeps code records as JSON values with a TTL. Consumption is a
// SET NX on a companion key, which Redis executes atomically.
type RedisStore struct {
	client rueidis.Client
}

// RedisOptions contains configuration for Redis connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisStore(client rueidis.Client) *RedisStore {
	return &RedisStore{
		client: client,
	}
}

// NewRedisStoreFromOptions connects to Redis with simplified options.
func NewRedisStoreFromOptions(opts RedisOptions) (*RedisStore, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: []string{opts.Addr},
		Password:    opts.Password,
		SelectDB:    opts.DB,
	})
	if err != nil {
		return nil, errors.Wrap(err, "[NewRedisStoreFromOptions] failed to create redis client")
	}
	return NewRedisStore(client), nil
}

func retentionTTL(expiresAt time.Time) int64 {
	ttl := time.Until(expiresAt) + ExpiredRetention
	seconds := int64(ttl.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}

func (r *RedisStore) Save(ctx context.Context, details *Details) error {
	if err := details.validate(); err != nil {
		return err
	}
	data, err := json.Marshal(details)
	if err != nil {
		return errors.Wrap(err, "[RedisStore.Save] marshal")
	}

	cmd := r.client.B().Set().Key(codePrefix + details.Code).Value(string(data)).ExSeconds(retentionTTL(details.ExpiresAt)).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return errors.Wrap(err, "[RedisStore.Save] set")
	}
	if details.Used {
		marker := r.client.B().Set().Key(codeUsedPrefix + details.Code).Value("1").ExSeconds(retentionTTL(details.ExpiresAt)).Build()
		if err := r.client.Do(ctx, marker).Error(); err != nil {
			return errors.Wrap(err, "[RedisStore.Save] set used marker")
		}
	}
	return nil
}

func (r *RedisStore) DetailsFor(ctx context.Context, code string) (*Details, error) {
	if code == "" {
		return nil, ErrNotFound
	}
	results := r.client.DoMulti(ctx,
		r.client.B().Get().Key(codePrefix+code).Build(),
		r.client.B().Exists().Key(codeUsedPrefix+code).Build(),
	)

	raw, err := results[0].ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "[RedisStore.DetailsFor] get")
	}
	used, err := results[1].AsInt64()
	if err != nil {
		return nil, errors.Wrap(err, "[RedisStore.DetailsFor] exists")
	}

	var details Details
	if err := json.Unmarshal([]byte(raw), &details); err != nil {
		return nil, errors.Wrap(err, "[RedisStore.DetailsFor] unmarshal")
	}
	details.Used = details.Used || used > 0
	return &details, nil
}

func (r *RedisStore) Consume(ctx context.Context, code string) (*Details, error) {
	details, err := r.DetailsFor(ctx, code)
	if err != nil {
		return nil, err
	}

	cmd := r.client.B().Set().Key(codeUsedPrefix + code).Value("1").Nx().ExSeconds(retentionTTL(details.ExpiresAt)).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, ErrAlreadyUsed
		}
		return nil, errors.Wrap(err, "[RedisStore.Consume] set nx")
	}
	details.Used = true
	return details, nil
}

// DeleteExpired is a no-op; Redis evicts records through their TTL.
func (r *RedisStore) DeleteExpired(context.Context, time.Time) error {
	return nil
}

func (r *RedisStore) Close() error {
	r.client.Close()
	return nil
}

package credstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	agerrors "github.com/felixgeelhaar/agriconnect/internal/errors"
)

// RedisStore keeps the four keys as fields of one Redis hash, so several
// console processes can share a single operator's credentials.
type RedisStore struct {
	client redis.UniversalClient
	key    string
}

// NewRedisStore stores credentials under agriconnect:credentials:<profile>.
func NewRedisStore(client redis.UniversalClient, profile string) *RedisStore {
	if profile == "" {
		profile = "default"
	}
	return &RedisStore{
		client: client,
		key:    fmt.Sprintf("agriconnect:credentials:%s", profile),
	}
}

// Key returns the hash key used by this store.
func (r *RedisStore) Key() string {
	return r.key
}

// Save writes all four fields in one HSET.
func (r *RedisStore) Save(ctx context.Context, snap Snapshot) error {
	fields := make(map[string]interface{}, len(Keys))
	for k, v := range snap.toMap() {
		fields[k] = v
	}
	if err := r.client.HSet(ctx, r.key, fields).Err(); err != nil {
		return agerrors.NewStoreWriteError(r.key, err)
	}
	return nil
}

// Load reads the hash. A missing hash loads as an empty snapshot.
func (r *RedisStore) Load(ctx context.Context) (Snapshot, error) {
	values, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return Snapshot{}, agerrors.NewStoreReadError(r.key, err)
	}
	return snapshotFromMap(values), nil
}

// Clear deletes the hash.
func (r *RedisStore) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return agerrors.Wrap(agerrors.ErrCodeStoreClearFailed, "failed to remove credentials", err)
	}
	return nil
}

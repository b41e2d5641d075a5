package feed

import (
	"context"
	"time"
)

// NullStore is a Store that never holds anything: every read misses and
// every write is discarded. Used when the cache backend is disabled, so the
// manager serves straight from the relational store.
type NullStore struct{}

func (NullStore) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, nil
}

func (NullStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}

func (NullStore) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	return make([][]byte, len(keys)), nil
}

func (NullStore) Delete(ctx context.Context, keys ...string) error {
	return nil
}

func (NullStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return 1, nil
}

func (NullStore) ScanDelete(ctx context.Context, prefix string) error {
	return nil
}

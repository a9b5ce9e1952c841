// Package redisstore provides a redis-backed checkpoint store. Each key maps
// to one redis string holding the serialized state; saves overwrite.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/orchestral/conductor/checkpoint"
	"github.com/orchestral/conductor/internal/metrickeys"
	"github.com/orchestral/conductor/metrics"
)

type Store struct {
	rdb       redis.UniversalClient
	keyPrefix string
	options   checkpoint.Options
}

// NewStore creates a store on the given redis client. keyPrefix namespaces
// all checkpoint keys, e.g. "conductor:checkpoint:".
func NewStore(rdb redis.UniversalClient, keyPrefix string, opts ...checkpoint.Option) *Store {
	return &Store{
		rdb:       rdb,
		keyPrefix: keyPrefix,
		options:   checkpoint.ApplyOptions(opts...),
	}
}

var _ checkpoint.Store = (*Store)(nil)

func (s *Store) Save(ctx context.Context, key string, state any) error {
	payload, err := s.options.Converter.To(state)
	if err != nil {
		return &checkpoint.IOError{Op: "save", Key: key, Err: err}
	}

	if err := s.rdb.Set(ctx, s.key(key), payload, 0).Err(); err != nil {
		return &checkpoint.IOError{Op: "save", Key: key, Err: err}
	}

	s.options.Metrics.Counter(metrickeys.CheckpointSaved, metrics.Tags{metrickeys.Store: "redis"}, 1)

	return nil
}

func (s *Store) Load(ctx context.Context, key string, vptr any) error {
	payload, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return checkpoint.ErrNotFound
		}
		return &checkpoint.IOError{Op: "load", Key: key, Err: err}
	}

	if err := s.options.Converter.From(payload, vptr); err != nil {
		return &checkpoint.IOError{Op: "load", Key: key, Err: err}
	}

	s.options.Metrics.Counter(metrickeys.CheckpointLoaded, metrics.Tags{metrickeys.Store: "redis"}, 1)

	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.key(key)).Err(); err != nil {
		return &checkpoint.IOError{Op: "delete", Key: key, Err: err}
	}

	return nil
}

func (s *Store) key(key string) string {
	return fmt.Sprintf("%s%s", s.keyPrefix, key)
}

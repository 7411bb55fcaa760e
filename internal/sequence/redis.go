// Package sequence holds the Redis-backed token counter.
package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// keyTTL keeps yesterday's counter around for late reads; new days start fresh anyway.
const keyTTL = 48 * time.Hour

// RedisSequencer issues token numbers with INCR on one key per business date.
type RedisSequencer struct {
	client redis.Cmdable
	prefix string
}

func NewRedisSequencer(client redis.Cmdable) *RedisSequencer {
	return &RedisSequencer{client: client, prefix: "queue:token"}
}

func (s *RedisSequencer) key(businessDate string) string {
	return fmt.Sprintf("%s:%s", s.prefix, businessDate)
}

func (s *RedisSequencer) Next(ctx context.Context, businessDate string) (int, error) {
	key := s.key(businessDate)

	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, keyTTL)
		return nil
	})
	if err != nil {
		return 0, errors.Wrapf(err, "incr %s", key)
	}
	return int(incr.Val()), nil
}

func (s *RedisSequencer) Reset(ctx context.Context, businessDate string) error {
	if err := s.client.Del(ctx, s.key(businessDate)).Err(); err != nil {
		return errors.Wrapf(err, "del %s", s.key(businessDate))
	}
	return nil
}

package version

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	rstore "github.com/unkn0wn-root/rcache/store/redis"
)

// Redis shares the namespace version across processes and survives restarts.
// A missing counter reads as the initial version. With a TTL the counter key
// expires after inactivity and readers fall back to the initial version.
//
// Transport failures are returned as *store.ConnError, so an unreachable
// counter fails the cache over like an unreachable node does.
type Redis struct {
	rdb     redis.UniversalClient
	ns      string
	initial int
	ttl     time.Duration // 0 disables expiry
	owned   bool
}

var _ Source = (*Redis)(nil)

// NewRedis creates a Redis-backed source without TTL. The client stays owned by the caller.
func NewRedis(client redis.UniversalClient, namespace string, initial int) *Redis {
	return &Redis{rdb: client, ns: namespace, initial: initial}
}

// NewRedisWithTTL is NewRedis with an expiry refreshed on every bump. ttl <= 0 disables it.
func NewRedisWithTTL(client redis.UniversalClient, namespace string, initial int, ttl time.Duration) *Redis {
	return &Redis{rdb: client, ns: namespace, initial: initial, ttl: ttl}
}

// Owned makes Close close the client as well.
func (s *Redis) Owned() *Redis {
	s.owned = true
	return s
}

func (s *Redis) key() string { return "ver:" + s.ns }

func (s *Redis) Current(ctx context.Context) (int, error) {
	res, err := s.rdb.Get(ctx, s.key()).Result()
	if err == redis.Nil {
		return s.initial, nil
	}
	if err != nil {
		return 0, rstore.Classify(s.key(), err)
	}
	v, err := strconv.Atoi(res)
	if err != nil {
		return 0, fmt.Errorf("redis version parse: %w", err)
	}
	return v, nil
}

// Bump seeds a missing counter with the initial version and increments it in
// one round trip.
func (s *Redis) Bump(ctx context.Context, delta int) (int, error) {
	k := s.key()
	var incr *redis.IntCmd
	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.SetNX(ctx, k, s.initial, 0)
		incr = p.IncrBy(ctx, k, int64(delta))
		if s.ttl > 0 {
			p.Expire(ctx, k, s.ttl)
		}
		return nil
	})
	if err != nil {
		return 0, rstore.Classify(k, err)
	}
	return int(incr.Val()), nil
}

func (s *Redis) Close(context.Context) error {
	if !s.owned {
		return nil
	}
	return s.rdb.Close()
}

package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/rcache/provider"
	rstore "github.com/unkn0wn-root/rcache/store/redis"
)

var ErrNoClient = errors.New("redis provider: neither Client nor Addr set")

// Redis stores fallback entries on a separate Redis instance.
type Redis struct {
	rdb         goredis.UniversalClient
	closeClient bool
}

var _ provider.Provider = (*Redis)(nil)

type Config struct {
	// Client is used as is. Set CloseClient only if this provider exclusively owns it.
	Client      goredis.UniversalClient
	CloseClient bool

	// Addr opens a dedicated client when Client is nil. Same formats as the
	// cache nodes: "host:port:db", "unix:path:db" or "host:port".
	Addr     string
	Password string
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client != nil {
		return &Redis{rdb: cfg.Client, closeClient: cfg.CloseClient}, nil
	}
	if cfg.Addr == "" {
		return nil, ErrNoClient
	}
	addr, err := rstore.ParseAddress(cfg.Addr)
	if err != nil {
		return nil, err
	}
	rdb := goredis.NewClient(&goredis.Options{
		Network:  addr.Network,
		Addr:     addr.Addr,
		DB:       addr.DB,
		Password: cfg.Password,
	})
	return &Redis{rdb: rdb, closeClient: true}, nil
}

func (p *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := p.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (p *Redis) Set(ctx context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		ttl = 0
	}
	if err := p.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Redis) Del(ctx context.Context, key string) error {
	return p.rdb.Del(ctx, key).Err()
}

// Close releases the client only when this provider owns it. Repeated calls are no-ops.
func (p *Redis) Close(context.Context) error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}

package lock

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/dmitrijs2005/crosspost/internal/logging"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still carries our token.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

type redisClient interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// Redis is a Locker shared by every process using the same Redis. Keys expire
// after ttl so a crashed holder cannot block an item forever.
type Redis struct {
	client redisClient
	prefix string
	ttl    time.Duration
	log    logging.Logger
}

type RedisOptions struct {
	Addr     string
	Username string
	Password string
	DB       int
	TTL      time.Duration
	Log      logging.Logger
}

func NewRedis(opts RedisOptions) *Redis {
	c := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Username: opts.Username,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return newRedis(c, opts.TTL, opts.Log)
}

func newRedis(c redisClient, ttl time.Duration, log logging.Logger) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Redis{client: c, prefix: "crosspost:lock:", ttl: ttl, log: log.With("module", "lock")}
}

func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	k := r.prefix + key
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, k, token, r.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLocked
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			rctx := context.WithoutCancel(ctx)
			if err := r.client.Eval(rctx, releaseScript, []string{k}, token).Err(); err != nil {
				// the key stays held until ttl expires
				r.log.Warn(rctx, "lock release failed", "key", k, "ttl", r.ttl.String(), "error", err)
			}
		})
	}, nil
}

// Close releases the underlying client's connections.
func (r *Redis) Close() error {
	if c, ok := r.client.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

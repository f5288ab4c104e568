package lock

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/crosspost/internal/logging"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNop(t *testing.T) {
	var l Locker = Nop{}
	r1, err := l.Acquire(context.Background(), "a")
	require.NoError(t, err)
	r2, err := l.Acquire(context.Background(), "a")
	require.NoError(t, err)
	r1()
	r2()
}

func TestLocal(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "item-1")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "item-1")
	assert.ErrorIs(t, err, ErrLocked)

	other, err := l.Acquire(ctx, "item-2")
	require.NoError(t, err)
	other()

	release()
	release()

	again, err := l.Acquire(ctx, "item-1")
	require.NoError(t, err)
	again()
}

func TestLocal_Concurrent(t *testing.T) {
	l := NewLocal()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Acquire(context.Background(), "k"); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, winners)
}

type fakeRedis struct {
	mu      sync.Mutex
	store   map[string]string
	ttls    map[string]time.Duration
	err     error
	evalErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{store: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	if _, ok := f.store[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.store[key] = value.(string)
	f.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Eval(_ context.Context, script string, keys []string, args ...any) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.evalErr != nil {
		return redis.NewCmdResult(nil, f.evalErr)
	}
	if f.store[keys[0]] == args[0].(string) {
		delete(f.store, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func TestRedis(t *testing.T) {
	f := newFakeRedis()
	l := newRedis(f, 0, nil)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "item-1")
	require.NoError(t, err)
	assert.Contains(t, f.store, "crosspost:lock:item-1")
	assert.Equal(t, 10*time.Minute, f.ttls["crosspost:lock:item-1"])

	_, err = l.Acquire(ctx, "item-1")
	assert.ErrorIs(t, err, ErrLocked)

	release()
	assert.NotContains(t, f.store, "crosspost:lock:item-1")

	again, err := l.Acquire(ctx, "item-1")
	require.NoError(t, err)
	again()
}

func TestRedis_ReleaseKeepsForeignToken(t *testing.T) {
	f := newFakeRedis()
	l := newRedis(f, time.Minute, nil)

	release, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)

	// lock expired and was taken over by another holder
	f.store["crosspost:lock:k"] = "someone-else"
	release()
	assert.Equal(t, "someone-else", f.store["crosspost:lock:k"])
}

func TestRedis_Error(t *testing.T) {
	f := newFakeRedis()
	f.err = errors.New("connection refused")

	_, err := newRedis(f, time.Minute, nil).Acquire(context.Background(), "k")
	assert.EqualError(t, err, "connection refused")
}

func TestRedis_Close(t *testing.T) {
	assert.NoError(t, newRedis(newFakeRedis(), 0, nil).Close())

	r := NewRedis(RedisOptions{Addr: "127.0.0.1:0"})
	assert.NoError(t, r.Close())
}

func TestRedis_ReleaseErrorLogged(t *testing.T) {
	f := newFakeRedis()
	var buf bytes.Buffer
	l := newRedis(f, time.Minute, logging.New(&buf, "text", "debug"))

	release, err := l.Acquire(context.Background(), "item-1")
	require.NoError(t, err)

	f.evalErr = errors.New("i/o timeout")
	release()

	assert.Contains(t, buf.String(), "lock release failed")
	assert.Contains(t, buf.String(), "crosspost:lock:item-1")
	assert.Contains(t, buf.String(), "i/o timeout")
	assert.Contains(t, f.store, "crosspost:lock:item-1")
}

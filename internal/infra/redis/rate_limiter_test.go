//go:build !integration

package redis

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeRedisClient struct {
	counters map[string]int64
	expires  map[string]time.Duration
	incrErr  error
}

func newFakeRedisClient() *fakeRedisClient {
	return &fakeRedisClient{counters: make(map[string]int64), expires: make(map[string]time.Duration)}
}

func (f *fakeRedisClient) Ping(ctx context.Context) error { return nil }
func (f *fakeRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return nil
}
func (f *fakeRedisClient) Get(ctx context.Context, key string) (string, error) { return "", Nil }
func (f *fakeRedisClient) Incr(ctx context.Context, key string) (int64, error) {
	if f.incrErr != nil {
		return 0, f.incrErr
	}
	f.counters[key]++
	return f.counters[key], nil
}
func (f *fakeRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	f.expires[key] = expiration
	return nil
}
func (f *fakeRedisClient) Del(ctx context.Context, keys ...string) error { return nil }
func (f *fakeRedisClient) Close() error                                  { return nil }

var _ RedisClient = (*fakeRedisClient)(nil)

func TestRateLimiterAllow(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedisClient()
	rl := NewRateLimiter(fake)
	key := PhoneInitiateKey("254712345678")

	for i := 1; i <= 3; i++ {
		ok, err := rl.Allow(ctx, key, 3, time.Minute)
		if err != nil {
			t.Fatalf("Allow call %d returned error: %v", i, err)
		}
		if !ok {
			t.Fatalf("call %d should be within the limit", i)
		}
	}

	ok, err := rl.Allow(ctx, key, 3, time.Minute)
	if err != nil {
		t.Fatalf("Allow returned error: %v", err)
	}
	if ok {
		t.Error("fourth call should exceed the limit")
	}

	// The window TTL is set exactly once, on the first increment.
	if fake.expires[key] != time.Minute {
		t.Errorf("expected window TTL of 1m on key, got %v", fake.expires[key])
	}
}

func TestRateLimiterKeyIsolation(t *testing.T) {
	ctx := context.Background()
	rl := NewRateLimiter(newFakeRedisClient())

	if ok, _ := rl.Allow(ctx, PhoneInitiateKey("254700000001"), 1, time.Minute); !ok {
		t.Fatal("first phone should be allowed")
	}
	if ok, _ := rl.Allow(ctx, PhoneInitiateKey("254700000002"), 1, time.Minute); !ok {
		t.Error("second phone must not share the first phone's counter")
	}
}

func TestRateLimiterPropagatesBackendError(t *testing.T) {
	fake := newFakeRedisClient()
	fake.incrErr = errors.New("connection refused")
	rl := NewRateLimiter(fake)

	if _, err := rl.Allow(context.Background(), "k", 1, time.Minute); err == nil {
		t.Error("expected the backend error to surface to the caller")
	}
}

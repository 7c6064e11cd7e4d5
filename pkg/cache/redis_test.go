package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCacheFromClient(client, "tr:"), mr
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t)

	if _, hit, err := c.Get(ctx, "k"); hit || err != nil {
		t.Errorf("Get on empty = hit %v err %v", hit, err)
	}
	if err := c.Set(ctx, "k", []byte("frame"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if !mr.Exists("tr:k") {
		t.Error("key not stored with prefix")
	}
	data, hit, err := c.Get(ctx, "k")
	if err != nil || !hit || string(data) != "frame" {
		t.Errorf("Get = %q, %v, %v", data, hit, err)
	}

	mr.FastForward(2 * time.Minute)
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("entry should have expired")
	}

	_ = c.Set(ctx, "d", []byte("x"), 0)
	if err := c.Delete(ctx, "d"); err != nil {
		t.Fatal(err)
	}
	if mr.Exists("tr:d") {
		t.Error("Delete did not remove key")
	}
}

func TestNewRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(context.Background(), RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}

	mr.Close()
	if _, err := NewRedisCache(context.Background(), RedisConfig{Addr: mr.Addr()}); err == nil {
		t.Error("expected ping failure against closed server")
	}
}

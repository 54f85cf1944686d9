package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// setupTestRedis starts an in-process miniredis and returns a client for it.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return client
}

func TestGet_Miss(t *testing.T) {
	m := NewManager(setupTestRedis(t))

	_, err := m.Get(context.Background(), Key{Identifier: "10002"})
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("err = %v, want ErrCacheMiss", err)
	}
}

func TestSetAndGet(t *testing.T) {
	m := NewManager(setupTestRedis(t))
	ctx := context.Background()
	key := Key{Identifier: "10002"}
	payload := []byte(`{"account_status":"active","reset_time":1700000000}`)

	entry := NewEntry(payload, time.Minute)
	if err := m.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := m.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got.Payload) != string(payload) {
		t.Errorf("Payload = %s, want %s", got.Payload, payload)
	}
	if got.TTL() <= 0 {
		t.Errorf("TTL = %v, want > 0", got.TTL())
	}
}

func TestSet_ExpiredEntryNotStored(t *testing.T) {
	m := NewManager(setupTestRedis(t))
	ctx := context.Background()
	key := Key{Identifier: "1"}

	entry := NewEntry([]byte(`{}`), -time.Second)
	if err := m.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, err := m.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("err = %v, want ErrCacheMiss", err)
	}
}

func TestSet_NilEntry(t *testing.T) {
	m := NewManager(setupTestRedis(t))

	if err := m.Set(context.Background(), Key{Identifier: "1"}, nil); err == nil {
		t.Error("expected error for nil entry")
	}
}

func TestGet_CorruptedEntry(t *testing.T) {
	client := setupTestRedis(t)
	m := NewManager(client)
	ctx := context.Background()
	key := Key{Identifier: "7"}

	if err := client.Set(ctx, key.String(), "not json", time.Minute).Err(); err != nil {
		t.Fatalf("seed redis: %v", err)
	}

	_, err := m.Get(ctx, key)
	if !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("err = %v, want ErrInvalidEntry", err)
	}
}

func TestDelete(t *testing.T) {
	m := NewManager(setupTestRedis(t))
	ctx := context.Background()
	key := Key{Identifier: "10002"}

	if err := m.Set(ctx, key, NewEntry([]byte(`{}`), time.Minute)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := m.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := m.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("err = %v, want ErrCacheMiss after delete", err)
	}
}

func TestKeyString(t *testing.T) {
	key := Key{Identifier: "1000000000000000000000000000000000"}
	want := "statusq:status:1000000000000000000000000000000000"
	if key.String() != want {
		t.Errorf("Key.String() = %q, want %q", key.String(), want)
	}
}

func TestEntryExpiry(t *testing.T) {
	fresh := NewEntry([]byte(`{}`), time.Minute)
	if fresh.IsExpired() {
		t.Error("fresh entry should not be expired")
	}

	stale := NewEntry([]byte(`{}`), -time.Minute)
	if !stale.IsExpired() {
		t.Error("stale entry should be expired")
	}
	if stale.TTL() != 0 {
		t.Errorf("stale TTL = %v, want 0", stale.TTL())
	}
}

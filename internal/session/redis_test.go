package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/region23/salonbot/internal/testutil"
)

func newTestRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), mr.Addr(), "", 0)
	testutil.AssertNoError(t, err, "NewRedisClient")
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client, ttl), mr
}

func TestRedisStore_GetMissing(t *testing.T) {
	store, _ := newTestRedisStore(t, time.Minute)

	state, err := store.Get(context.Background(), 1)
	testutil.AssertNoError(t, err, "Missing key is not an error")
	if state != nil {
		t.Errorf("Expected nil state, got %v", state)
	}
}

func TestRedisStore_PutGetWithTTL(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t, 30*time.Minute)

	want := Rescheduling{BookingID: 7, Slots: 2}.PickDate("2030-05-02")
	testutil.AssertNoError(t, store.Put(ctx, 42, want), "Put")

	testutil.AssertEqual(t, 30*time.Minute, mr.TTL(key(42)), "Session TTL")

	got, err := store.Get(ctx, 42)
	testutil.AssertNoError(t, err, "Get")
	testutil.AssertEqual(t, want, got, "Restored state")

	mr.FastForward(30 * time.Minute)
	got, err = store.Get(ctx, 42)
	testutil.AssertNoError(t, err, "Get after TTL")
	if got != nil {
		t.Errorf("Expected expired state to be gone, got %v", got)
	}
}

func TestRedisStore_Clear(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t, time.Minute)

	testutil.AssertNoError(t, store.Put(ctx, 1, Start().Toggle(3)), "Put")
	testutil.AssertNoError(t, store.Clear(ctx, 1), "Clear")
	testutil.AssertEqual(t, false, mr.Exists(key(1)), "Key removed")

	testutil.AssertNoError(t, store.Clear(ctx, 1), "Clearing twice is fine")
}

func TestRedisStore_CorruptValue(t *testing.T) {
	store, mr := newTestRedisStore(t, time.Minute)
	testutil.AssertNoError(t, mr.Set(key(5), "not json"), "Set")

	if _, err := store.Get(context.Background(), 5); err == nil {
		t.Error("Expected decode error for corrupt value")
	}
}

func TestRedisStore_ServerDown(t *testing.T) {
	store, mr := newTestRedisStore(t, time.Minute)
	addr := mr.Addr()
	mr.Close()

	if err := store.Put(context.Background(), 1, Start()); err == nil {
		t.Error("Expected error when Redis is unavailable")
	}
	if _, err := NewRedisClient(context.Background(), addr, "", 0); err == nil {
		t.Error("Expected ping failure for stopped server")
	}
}

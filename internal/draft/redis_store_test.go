package draft

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, s
}

func TestNewRedisStore(t *testing.T) {
	store, _ := setupTestRedis(t)
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}

func TestNewRedisStoreRejectsBadURL(t *testing.T) {
	if _, err := NewRedisStore("not a url"); err == nil {
		t.Fatal("expected error for invalid redis url")
	}
}

func TestSaveAndLoadDraft(t *testing.T) {
	store, s := setupTestRedis(t)
	ctx := context.Background()

	content := json.RawMessage(`[{"id":"__body","type":"__body","content":[]}]`)
	if err := store.SaveDraft(ctx, "page-1", Draft{SessionID: "s1", Author: "alice", Content: content, Revision: 3}, time.Hour); err != nil {
		t.Fatalf("SaveDraft() error = %v", err)
	}
	if !s.Exists("draft:page-1") {
		t.Fatal("expected draft key in redis")
	}

	got, ok, err := store.LoadDraft(ctx, "page-1")
	if err != nil || !ok {
		t.Fatalf("LoadDraft() = %v, %v", ok, err)
	}
	if got.SessionID != "s1" || got.Revision != 3 || string(got.Content) != string(content) || got.SavedAt.IsZero() {
		t.Fatalf("LoadDraft() = %+v", got)
	}
}

func TestLoadMissingDraft(t *testing.T) {
	store, _ := setupTestRedis(t)
	_, ok, err := store.LoadDraft(context.Background(), "nope")
	if err != nil {
		t.Fatalf("LoadDraft() error = %v", err)
	}
	if ok {
		t.Fatal("expected no draft")
	}
}

func TestDraftExpires(t *testing.T) {
	store, s := setupTestRedis(t)
	ctx := context.Background()

	if err := store.SaveDraft(ctx, "page-1", Draft{Revision: 1}, time.Minute); err != nil {
		t.Fatalf("SaveDraft() error = %v", err)
	}
	s.FastForward(2 * time.Minute)

	if _, ok, err := store.LoadDraft(ctx, "page-1"); err != nil || ok {
		t.Fatalf("LoadDraft() after expiry = %v, %v", ok, err)
	}
}

func TestDefaultTTL(t *testing.T) {
	store, s := setupTestRedis(t)
	if err := store.SaveDraft(context.Background(), "page-1", Draft{}, 0); err != nil {
		t.Fatalf("SaveDraft() error = %v", err)
	}
	if ttl := s.TTL("draft:page-1"); ttl != DefaultTTL {
		t.Fatalf("TTL = %v, want %v", ttl, DefaultTTL)
	}
}

func TestLastWriteWins(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	for rev := 1; rev <= 3; rev++ {
		if err := store.SaveDraft(ctx, "page-1", Draft{Revision: rev}, time.Hour); err != nil {
			t.Fatalf("SaveDraft(%d) error = %v", rev, err)
		}
	}
	got, _, err := store.LoadDraft(ctx, "page-1")
	if err != nil {
		t.Fatalf("LoadDraft() error = %v", err)
	}
	if got.Revision != 3 {
		t.Fatalf("Revision = %d, want 3", got.Revision)
	}
}

func TestDeleteDraft(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	if err := store.SaveDraft(ctx, "page-1", Draft{Revision: 1}, time.Hour); err != nil {
		t.Fatalf("SaveDraft() error = %v", err)
	}
	if err := store.SaveDraft(ctx, "page-2", Draft{Revision: 1}, time.Hour); err != nil {
		t.Fatalf("SaveDraft() error = %v", err)
	}
	if err := store.DeleteDraft(ctx, "page-1"); err != nil {
		t.Fatalf("DeleteDraft() error = %v", err)
	}
	if err := store.DeleteDraft(ctx, "never-saved"); err != nil {
		t.Fatalf("DeleteDraft(missing) error = %v", err)
	}
	if _, ok, _ := store.LoadDraft(ctx, "page-1"); ok {
		t.Fatal("page-1 draft should be gone")
	}
	if _, ok, _ := store.LoadDraft(ctx, "page-2"); !ok {
		t.Fatal("page-2 draft should remain")
	}
}

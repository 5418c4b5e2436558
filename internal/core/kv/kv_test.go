package kv

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/inovalupa/govtech-analyzer/internal/core"
)

func exerciseStore(t *testing.T, s core.KVStore) {
	t.Helper()
	ctx := context.Background()

	if _, found, err := s.Get(ctx, "govtech_users"); err != nil || found {
		t.Fatalf("empty store: found=%v err=%v", found, err)
	}
	if err := s.Set(ctx, "govtech_users", `[{"id":"admin-1"}]`); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, found, err := s.Get(ctx, "govtech_users")
	if err != nil || !found {
		t.Fatalf("get after set: found=%v err=%v", found, err)
	}
	if v != `[{"id":"admin-1"}]` {
		t.Errorf("value = %q", v)
	}
	if err := s.Set(ctx, "govtech_users", "[]"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if v, _, _ := s.Get(ctx, "govtech_users"); v != "[]" {
		t.Errorf("overwrite value = %q", v)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(context.Background(), mr.Addr(), "", 0, "analyzer:")
	if err != nil {
		t.Fatalf("new redis store: %v", err)
	}
	defer s.Close()

	exerciseStore(t, s)

	if !mr.Exists("analyzer:govtech_users") {
		t.Error("expected key to be stored with prefix")
	}
}

func TestRedisStoreRequiresAddr(t *testing.T) {
	if _, err := NewRedisStore(context.Background(), " ", "", 0, ""); err == nil {
		t.Fatal("expected error for empty addr")
	}
}

func TestRedisStoreSurfacesBackendErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(context.Background(), mr.Addr(), "", 0, "")
	if err != nil {
		t.Fatalf("new redis store: %v", err)
	}
	defer s.Close()
	mr.Close()

	if _, _, err := s.Get(context.Background(), "govtech_projects"); err == nil {
		t.Fatal("expected error when redis is down")
	}
}

package store

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	st, err := NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestMigrate_Idempotent(t *testing.T) {
	st := testStore(t)
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestSQLiteStore_GetSetRemove(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	if _, ok, err := st.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) ok=%v err=%v", ok, err)
	}

	if err := st.Set(ctx, "a", "1"); err != nil {
		t.Fatal(err)
	}
	if err := st.Set(ctx, "a", "2"); err != nil {
		t.Fatal(err)
	}
	v, ok, err := st.Get(ctx, "a")
	if err != nil || !ok || v != "2" {
		t.Fatalf("Get(a) = %q %v %v, want 2", v, ok, err)
	}

	if err := st.Remove(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if err := st.Remove(ctx, "a"); err != nil {
		t.Errorf("removing an absent key: %v", err)
	}
	if _, ok, _ := st.Get(ctx, "a"); ok {
		t.Error("key still present after Remove")
	}
}

func TestSQLiteStore_Batch(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	if err := st.SetMany(ctx, map[string]string{"x": "1", "y": "2", "z": "3"}); err != nil {
		t.Fatal(err)
	}
	keys, err := st.Keys(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 3 || keys[0] != "x" || keys[2] != "z" {
		t.Errorf("Keys() = %v", keys)
	}

	if err := st.RemoveMany(ctx, "x", "z"); err != nil {
		t.Fatal(err)
	}
	keys, _ = st.Keys(ctx)
	if len(keys) != 1 || keys[0] != "y" {
		t.Errorf("Keys() after RemoveMany = %v", keys)
	}
}

func TestSQLiteStore_NamespacesAreIsolated(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	path := filepath.Join(t.TempDir(), "libra.db")
	ctx := context.Background()

	a, err := NewSQLiteStore(path, logger, WithNamespace("http://a/api/"))
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	if err := a.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	b, err := NewSQLiteStore(path, logger, WithNamespace("http://b/api/"))
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if err := a.Set(ctx, KeyAuthToken, "token-a"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := b.Get(ctx, KeyAuthToken); ok {
		t.Error("namespace b sees namespace a's token")
	}
	if err := b.Set(ctx, KeyAuthToken, "token-b"); err != nil {
		t.Fatal(err)
	}
	if v, _, _ := a.Get(ctx, KeyAuthToken); v != "token-a" {
		t.Errorf("namespace a token = %q", v)
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	path := filepath.Join(t.TempDir(), "libra.db")
	ctx := context.Background()

	st, err := NewSQLiteStore(path, logger)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	if err := st.Set(ctx, "k", "v"); err != nil {
		t.Fatal(err)
	}
	st.Close()

	st, err = NewSQLiteStore(path, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if v, ok, err := st.Get(ctx, "k"); err != nil || !ok || v != "v" {
		t.Errorf("after reopen Get = %q %v %v", v, ok, err)
	}
}

func TestNewSQLiteStore_NilLogger(t *testing.T) {
	st, err := NewSQLiteStore(":memory:", nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()
	ctx := context.Background()
	if err := st.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := st.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}
}

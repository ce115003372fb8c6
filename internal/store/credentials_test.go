package store

import (
	"context"
	"errors"
	"testing"

	"github.com/me/libra/pkg/model"
)

// plainStore hides MemoryStore's Batcher methods.
type plainStore struct {
	s *MemoryStore
}

func (p plainStore) Get(ctx context.Context, k string) (string, bool, error) { return p.s.Get(ctx, k) }
func (p plainStore) Set(ctx context.Context, k, v string) error               { return p.s.Set(ctx, k, v) }
func (p plainStore) Remove(ctx context.Context, k string) error               { return p.s.Remove(ctx, k) }
func (p plainStore) Close() error                                              { return nil }

// flakyPlain fails writes to failKey.
type flakyPlain struct {
	plainStore
	failKey string
}

func (f flakyPlain) Set(ctx context.Context, key, value string) error {
	if key == f.failKey {
		return errors.New("disk full")
	}
	return f.plainStore.Set(ctx, key, value)
}

func TestCredentials_SaveLoadClear(t *testing.T) {
	backends := map[string]Store{
		"sqlite": testStore(t),
		"memory": NewMemoryStore(),
		"plain":  plainStore{s: NewMemoryStore()},
	}
	for name, kv := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			creds := NewCredentials(kv, nil)

			rec, err := creds.Load(ctx)
			if err != nil || rec != nil {
				t.Fatalf("empty Load = %+v, %v", rec, err)
			}

			user := &model.UserProfile{ID: 3, Username: "ana", Email: "ana@example.org"}
			if err := creds.Save(ctx, Record{AuthToken: "tok", User: user}); err != nil {
				t.Fatal(err)
			}
			rec, err = creds.Load(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if rec.AuthToken != "tok" || rec.User.Username != "ana" || rec.User.ID != 3 {
				t.Errorf("Load = %+v", rec)
			}
			if tok, _ := creds.Token(ctx); tok != "tok" {
				t.Errorf("Token = %q", tok)
			}

			if err := creds.Clear(ctx); err != nil {
				t.Fatal(err)
			}
			if tok, _ := creds.Token(ctx); tok != "" {
				t.Errorf("Token after Clear = %q", tok)
			}
			if rec, _ := creds.Load(ctx); rec != nil {
				t.Errorf("Load after Clear = %+v", rec)
			}
		})
	}
}

func TestCredentials_SaveRejectsHalfRecord(t *testing.T) {
	creds := NewCredentials(NewMemoryStore(), nil)
	if err := creds.Save(context.Background(), Record{AuthToken: "tok"}); !errors.Is(err, ErrIncompleteRecord) {
		t.Errorf("Save without user = %v", err)
	}
	if err := creds.Save(context.Background(), Record{User: &model.UserProfile{}}); !errors.Is(err, ErrIncompleteRecord) {
		t.Errorf("Save without token = %v", err)
	}
}

func TestCredentials_SaveRollsBackToken(t *testing.T) {
	mem := NewMemoryStore()
	kv := flakyPlain{plainStore: plainStore{s: mem}, failKey: KeyUserData}
	creds := NewCredentials(kv, nil)

	err := creds.Save(context.Background(), Record{AuthToken: "tok", User: &model.UserProfile{Username: "ana"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if mem.Len() != 0 {
		t.Errorf("store holds %d keys after failed save, want 0", mem.Len())
	}
}

func TestCredentials_LoadIncomplete(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryStore()
	kv.Set(ctx, KeyAuthToken, "tok")
	creds := NewCredentials(kv, nil)

	if _, err := creds.Load(ctx); !errors.Is(err, ErrIncompleteRecord) {
		t.Errorf("Load with token only = %v", err)
	}

	kv.Set(ctx, KeyUserData, "{not json")
	if _, err := creds.Load(ctx); err == nil {
		t.Error("expected decode error")
	}
}

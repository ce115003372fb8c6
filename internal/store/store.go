// Package store is the client's durable key-value storage: the persistent
// credential store, the push-registration marker and the installation id
// all live here.
package store

import "context"

// Store is a durable, asynchronous key-value interface scoped to one
// installation of the client.
type Store interface {
	// Get returns the value for key; ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set writes key.
	Set(ctx context.Context, key, value string) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// Lifecycle
	Close() error
}

// Batcher is implemented by stores that can write or delete several keys
// atomically.
type Batcher interface {
	SetMany(ctx context.Context, values map[string]string) error
	RemoveMany(ctx context.Context, keys ...string) error
}

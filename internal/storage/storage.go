// Package storage provides the durable key-value persistence backend used
// by the local record store. Each record collection is serialized as one
// blob under a fixed key.
//
// Two backends are provided:
//
//   - sqlite: a single-table SQLite database (WAL mode), the default
//   - file: one JSON blob file per key in a data directory
//
// Backends register themselves with the package registry from init()
// functions and are opened through Open:
//
//	kv, err := storage.Open(storage.KindSQLite, ".rollbook/local.db")
//	if err != nil {
//	    return err
//	}
//	defer kv.Close()
package storage

import (
	"context"
	"fmt"
	"sync"
)

// KV is the persistence contract consumed by the local record store.
//
// Get returns the blob for a key and whether it was present; an absent key
// is not an error. Set overwrites the blob for a key. Remove deletes the
// given keys; removing an absent key is a no-op.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, blob []byte) error
	Remove(ctx context.Context, keys ...string) error
	Close() error
}

// Kind identifies a storage backend implementation.
type Kind string

const (
	// KindSQLite stores all blobs in one SQLite database file.
	KindSQLite Kind = "sqlite"
	// KindFile stores each blob as its own file in a directory.
	KindFile Kind = "file"
)

// Constructor creates a KV backend rooted at the given path (a database
// file for sqlite, a directory for file).
type Constructor func(path string) (KV, error)

var (
	registry   = make(map[Kind]Constructor)
	registryMu sync.RWMutex
)

// Register registers a backend constructor. Called from init() functions
// in this package; calling twice for the same kind panics.
func Register(k Kind, constructor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if constructor == nil {
		panic(fmt.Sprintf("storage: Register constructor is nil for kind %s", k))
	}
	if _, exists := registry[k]; exists {
		panic(fmt.Sprintf("storage: Register called twice for kind %s", k))
	}
	registry[k] = constructor
}

// Open creates a KV backend of the given kind rooted at path.
func Open(k Kind, path string) (KV, error) {
	registryMu.RLock()
	constructor := registry[k]
	registryMu.RUnlock()

	if constructor == nil {
		return nil, fmt.Errorf("storage: unknown backend kind %q", k)
	}
	return constructor(path)
}

// Kinds returns all registered backend kinds.
func Kinds() []Kind {
	registryMu.RLock()
	defer registryMu.RUnlock()

	kinds := make([]Kind, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	return kinds
}

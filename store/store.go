// Package store provides a uniform key/value persistence layer over several
// embedded database backends. A Store maps opaque byte keys to opaque byte
// values inside a single file or directory on disk.
//
// Handles are not safe for concurrent use; each consumer owns its handle and
// operations on a handle are strictly ordered.
package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Fetch for a missing key. It is not recorded as
// a failure anywhere; absence is an expected outcome.
var ErrNotFound = errors.New("store: key not found")

// Store is an open database handle. Fetch returns a copy of the stored
// value; the caller owns it. No operation may be called after Close.
type Store interface {
	// Fetch retrieves the value stored under key, or ErrNotFound.
	Fetch(key []byte) ([]byte, error)
	// Store writes value under key, overwriting any existing value.
	Store(key, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(key []byte) error
	// Close flushes pending writes and releases the handle.
	Close() error
}

// Backend describes one database implementation.
type Backend struct {
	// Name identifies the backend in configuration.
	Name string
	// Open opens the database at path. When create is false and nothing
	// exists at path, Open fails.
	Open func(path string, create bool) (Store, error)
	// Version is a human-readable backend identifier.
	Version string
}

// backends is ordered; the first entry is the default. Fixed at init,
// read-only afterwards.
var backends = []*Backend{
	boltBackend,
	badgerBackend,
	leveldbBackend,
	sqliteBackend,
}

// Backends returns the registered backend names in default-preference
// order.
func Backends() []string {
	names := make([]string, len(backends))
	for i, b := range backends {
		names[i] = b.Name
	}
	return names
}

// Lookup returns the backend with the given name. The empty string selects
// the default backend. Unknown names return nil.
func Lookup(name string) *Backend {
	if name == "" {
		return backends[0]
	}
	for _, b := range backends {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// Open opens a database with the named backend. An empty name selects the
// default backend.
func Open(name, path string, create bool) (Store, error) {
	b := Lookup(name)
	if b == nil {
		return nil, fmt.Errorf("store: unknown backend %q", name)
	}
	return b.Open(path, create)
}

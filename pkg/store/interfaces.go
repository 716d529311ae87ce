// Package store provides namespaced key-value persistence for workflow data.
package store

import "errors"

// ErrKeyNotFound is returned by Get when no value exists under (namespace, key)
var ErrKeyNotFound = errors.New("key not found")

// Provider defines the interface for persistence backends
type Provider interface {
	// Initialize sets up the storage backend
	Initialize() error

	// Close cleans up resources
	Close() error

	// Get retrieves the value stored under (namespace, key).
	// Returns ErrKeyNotFound when no value exists.
	Get(namespace, key string) ([]byte, error)

	// Put stores a value under (namespace, key), overwriting any existing value
	Put(namespace, key string, value []byte) error
}

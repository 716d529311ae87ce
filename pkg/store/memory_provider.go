package store

import "sync"

// MemoryProvider implements the Provider interface using in-memory storage
type MemoryProvider struct {
	namespaces map[string]map[string][]byte
	mu         sync.RWMutex
}

// NewMemoryProvider creates a new in-memory storage provider
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		namespaces: make(map[string]map[string][]byte),
	}
}

// Initialize sets up the storage backend
func (p *MemoryProvider) Initialize() error {
	// Nothing to initialize for in-memory storage
	return nil
}

// Close cleans up resources
func (p *MemoryProvider) Close() error {
	// Nothing to close for in-memory storage
	return nil
}

// Get retrieves the value stored under (namespace, key)
func (p *MemoryProvider) Get(namespace, key string) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	// Check if namespace exists
	ns, ok := p.namespaces[namespace]
	if !ok {
		return nil, ErrKeyNotFound
	}

	// Check if key exists
	value, ok := ns[key]
	if !ok {
		return nil, ErrKeyNotFound
	}

	// Return a copy so callers cannot mutate stored data
	out := make([]byte, len(value))
	copy(out, value)

	return out, nil
}

// Put stores a value under (namespace, key)
func (p *MemoryProvider) Put(namespace, key string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Create namespace map if it doesn't exist
	if _, ok := p.namespaces[namespace]; !ok {
		p.namespaces[namespace] = make(map[string][]byte)
	}

	// Store a copy of the value
	stored := make([]byte, len(value))
	copy(stored, value)
	p.namespaces[namespace][key] = stored

	return nil
}

package store

import "fmt"

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendSnapshot = "snapshot"
	BackendBolt     = "bolt"
)

// Open returns a store for the named backend. path is ignored by the
// memory backend.
func Open(backend, path string) (Store, error) {
	switch backend {
	case "", BackendMemory:
		return NewMemory(), nil
	case BackendSnapshot, BackendBolt:
		if path == "" {
			return nil, fmt.Errorf("store: backend %s needs a path", backend)
		}
		if backend == BackendBolt {
			return OpenBolt(path)
		}
		return OpenSnapshot(path)
	}
	return nil, fmt.Errorf("store: unknown backend %q", backend)
}

package decoder

import (
	"sync"

	"github.com/zsiec/xine-engine/internal/media"
)

// Registry maps a codec-family kind (media.Kind.Family()) to an installed
// decoder plugin for one stream class. Populated at engine startup;
// lookups are pure and far more frequent than registration, so reads take
// only a read lock. Grounded on the teacher's internal/ingest.Registry
// (map + RWMutex + simple register/unregister/get).
type Registry[D any] struct {
	mu     sync.RWMutex
	byKind map[media.Kind]D
}

// NewRegistry creates an empty Registry.
func NewRegistry[D any]() *Registry[D] {
	return &Registry[D]{byKind: make(map[media.Kind]D)}
}

// Register installs d for the given codec-family kind, replacing any
// previously registered plugin for that family.
func (r *Registry[D]) Register(family media.Kind, d D) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKind[family] = d
}

// Unregister removes the plugin installed for family, if any.
func (r *Registry[D]) Unregister(family media.Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byKind, family)
}

// Lookup returns the plugin installed for kind's codec family, masking off
// the stream-index bits per spec.md §4.4.
func (r *Registry[D]) Lookup(kind media.Kind) (D, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byKind[kind.Family()]
	return d, ok
}

package capture

import (
	"sync"

	"github.com/google/uuid"
)

// registry maps the opaque handle given to the audio source to the live
// session context. The producer only ever reaches a context through lookup,
// so once an entry is removed late callbacks find nothing.
type registry struct {
	mu       sync.RWMutex
	contexts map[uuid.UUID]*sharedContext
}

func newRegistry() *registry {
	return &registry{contexts: make(map[uuid.UUID]*sharedContext)}
}

func (r *registry) add(token uuid.UUID, ctx *sharedContext) {
	r.mu.Lock()
	r.contexts[token] = ctx
	r.mu.Unlock()
}

func (r *registry) remove(token uuid.UUID) {
	r.mu.Lock()
	delete(r.contexts, token)
	r.mu.Unlock()
}

func (r *registry) lookup(token uuid.UUID) (*sharedContext, bool) {
	r.mu.RLock()
	ctx, ok := r.contexts[token]
	r.mu.RUnlock()
	return ctx, ok
}

func (r *registry) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.contexts)
}

// internal/syncer/locks.go
package syncer

import (
	"sync"

	"github.com/google/uuid"
)

// ownerLocks is an in-process claim registry keyed by owner id. A second
// sync request for an owner whose claim is held is rejected rather than
// racing the first; serializing across instances would need a shared lease.
type ownerLocks struct {
	mu     sync.Mutex
	active map[uuid.UUID]struct{}
}

func newOwnerLocks() *ownerLocks {
	return &ownerLocks{active: make(map[uuid.UUID]struct{})}
}

func (l *ownerLocks) tryAcquire(id uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, held := l.active[id]; held {
		return false
	}
	l.active[id] = struct{}{}
	return true
}

func (l *ownerLocks) release(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.active, id)
}

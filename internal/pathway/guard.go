package pathway

import (
	"context"
	"sync"
)

// SingleFlight guards a generation session so at most one draft or
// finalize call is in flight per key. Requests that lose the race are
// rejected, never queued behind or interleaved with the running one.
type SingleFlight interface {
	TryAcquire(ctx context.Context, key string) bool
	Release(ctx context.Context, key string)
}

// MemoryFlight is an in-process SingleFlight.
type MemoryFlight struct {
	mu   sync.Mutex
	busy map[string]struct{}
}

func NewMemoryFlight() *MemoryFlight {
	return &MemoryFlight{busy: make(map[string]struct{})}
}

func (f *MemoryFlight) TryAcquire(_ context.Context, key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.busy[key]; ok {
		return false
	}
	f.busy[key] = struct{}{}
	return true
}

func (f *MemoryFlight) Release(_ context.Context, key string) {
	f.mu.Lock()
	delete(f.busy, key)
	f.mu.Unlock()
}

// SessionKey scopes a single-flight guard to one user's trip.
func SessionKey(userID, tripID string) string {
	return "pathway:" + userID + ":" + tripID
}

package reconcile

import "sync"

// keyedMutex serializes work per key. The poll loop and the webhook
// handler can deliver the same token's events concurrently; holding the
// token's lock across the read-modify-write keeps their interleavings
// equivalent to some serial order.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key, creating it on first use. The
// per-key mutexes are never reclaimed; the key space is the set of
// launched tokens, which is small and grows slowly.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}

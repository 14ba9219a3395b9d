package store

import "sync"

// KeyedMutex hands out one mutex per account id. Mutexes are never removed;
// one per known account is cheap.
type KeyedMutex struct {
	mu sync.Map
}

func (k *KeyedMutex) For(id int64) *sync.Mutex {
	mu, _ := k.mu.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

package shared

import (
	"fmt"
	"sync"
)

// VendorImportLockKey builds redis keys guarding one import run per vendor.
func VendorImportLockKey(vendorID int64) string {
	return fmt.Sprintf("vendorsync:import:vendor:%d", vendorID)
}

// ProductOffersLockKey names the critical section around a product's offers.
func ProductOffersLockKey(productID int64) string {
	return fmt.Sprintf("vendorsync:offers:product:%d", productID)
}

// KeyedMutex hands out one mutex per key. Entries are dropped once no
// goroutine holds or waits on them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedMutex constructs an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedEntry)}
}

// Lock blocks until key is held and returns the release func.
func (k *KeyedMutex) Lock(key string) func() {
	entry := k.acquire(key)
	entry.mu.Lock()
	return func() { k.release(key, entry) }
}

// TryLock acquires key without waiting. ok is false when it is already held.
func (k *KeyedMutex) TryLock(key string) (unlock func(), ok bool) {
	entry := k.acquire(key)
	if !entry.mu.TryLock() {
		k.drop(key, entry)
		return nil, false
	}
	return func() { k.release(key, entry) }, true
}

func (k *KeyedMutex) acquire(key string) *keyedEntry {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedEntry)
	}
	entry, ok := k.locks[key]
	if !ok {
		entry = &keyedEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	return entry
}

func (k *KeyedMutex) release(key string, entry *keyedEntry) {
	entry.mu.Unlock()
	k.drop(key, entry)
}

func (k *KeyedMutex) drop(key string, entry *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(k.locks, key)
	}
}

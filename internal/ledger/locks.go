package ledger

import (
	"sort"
	"sync"
)

// keyedMutex serializes work per key. Multiple keys are always acquired in
// sorted order so two callers locking overlapping sets cannot deadlock.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock acquires every key and returns the matching unlock function.
func (k *keyedMutex) Lock(keys ...string) (unlock func()) {
	sorted := dedupeSorted(keys)
	for _, key := range sorted {
		k.acquire(key)
	}
	return func() {
		for i := len(sorted) - 1; i >= 0; i-- {
			k.release(sorted[i])
		}
	}
}

func (k *keyedMutex) acquire(key string) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.mu.Lock()
}

func (k *keyedMutex) release(key string) {
	k.mu.Lock()
	m := k.locks[key]
	m.refs--
	if m.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()

	m.mu.Unlock()
}

// held reports how many keys currently have holders or waiters.
func (k *keyedMutex) held() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

func dedupeSorted(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// covers reports whether every key in want is present in have.
func covers(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, key := range have {
		set[key] = struct{}{}
	}
	for _, key := range want {
		if key == "" {
			continue
		}
		if _, ok := set[key]; !ok {
			return false
		}
	}
	return true
}

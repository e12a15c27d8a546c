// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

package store

import (
	"bytes"
	"context"
	"sync"

	"github.com/strata-db/strata/fragment"
	"github.com/strata-db/strata/hash"
)

// MemoryStore is the map-backed store used in tests and as a scratch
// inventory during sync sessions.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[hash.Hash][]byte
}

var _ FragmentStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[hash.Hash][]byte{}}
}

func (ms *MemoryStore) Put(_ context.Context, f *fragment.Fragment) (hash.Hash, error) {
	h := f.Address()
	data := f.MarshalBinary()

	ms.mu.Lock()
	defer ms.mu.Unlock()
	if existing, ok := ms.records[h]; ok {
		if !bytes.Equal(existing, data) {
			return hash.Hash{}, &DigestCollisionError{Addr: h}
		}
		return h, nil
	}
	ms.records[h] = data
	return h, nil
}

func (ms *MemoryStore) Get(_ context.Context, h hash.Hash) (*fragment.Fragment, error) {
	ms.mu.RLock()
	data, ok := ms.records[h]
	ms.mu.RUnlock()
	if !ok {
		return nil, &NotFoundError{Addr: h}
	}
	return fragment.UnmarshalFragment(data)
}

func (ms *MemoryStore) Has(_ context.Context, h hash.Hash) (bool, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	_, ok := ms.records[h]
	return ok, nil
}

func (ms *MemoryStore) HasMany(_ context.Context, hashes hash.HashSet) (hash.HashSet, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	absent := hash.HashSet{}
	for h := range hashes {
		if _, ok := ms.records[h]; !ok {
			absent.Insert(h)
		}
	}
	return absent, nil
}

func (ms *MemoryStore) Addresses(_ context.Context) (hash.HashSet, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	out := make(hash.HashSet, len(ms.records))
	for h := range ms.records {
		out.Insert(h)
	}
	return out, nil
}

func (ms *MemoryStore) Evict(_ context.Context, h hash.Hash) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.records, h)
	return nil
}

func (ms *MemoryStore) Close() error {
	return nil
}

// Len reports the number of stored fragments.
func (ms *MemoryStore) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.records)
}

// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

package store

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/strata-db/strata/fragment"
	"github.com/strata-db/strata/hash"
)

// CachingStore keeps recently read or written fragments in an LRU in front of
// a backing store. Fragments are immutable, so the cache never needs
// invalidation beyond eviction.
type CachingStore struct {
	backing FragmentStore
	cache   *lru.Cache[hash.Hash, *fragment.Fragment]
}

var _ FragmentStore = (*CachingStore)(nil)

func NewCachingStore(backing FragmentStore, size int) (*CachingStore, error) {
	cache, err := lru.New[hash.Hash, *fragment.Fragment](size)
	if err != nil {
		return nil, err
	}
	return &CachingStore{backing: backing, cache: cache}, nil
}

func (cs *CachingStore) Put(ctx context.Context, f *fragment.Fragment) (hash.Hash, error) {
	h, err := cs.backing.Put(ctx, f)
	if err != nil {
		return hash.Hash{}, err
	}
	cs.cache.Add(h, f)
	return h, nil
}

func (cs *CachingStore) Get(ctx context.Context, h hash.Hash) (*fragment.Fragment, error) {
	if f, ok := cs.cache.Get(h); ok {
		return f, nil
	}
	f, err := cs.backing.Get(ctx, h)
	if err != nil {
		return nil, err
	}
	cs.cache.Add(h, f)
	return f, nil
}

func (cs *CachingStore) Has(ctx context.Context, h hash.Hash) (bool, error) {
	if cs.cache.Contains(h) {
		return true, nil
	}
	return cs.backing.Has(ctx, h)
}

func (cs *CachingStore) HasMany(ctx context.Context, hashes hash.HashSet) (hash.HashSet, error) {
	unknown := hash.HashSet{}
	for h := range hashes {
		if !cs.cache.Contains(h) {
			unknown.Insert(h)
		}
	}
	if len(unknown) == 0 {
		return hash.HashSet{}, nil
	}
	return cs.backing.HasMany(ctx, unknown)
}

func (cs *CachingStore) Addresses(ctx context.Context) (hash.HashSet, error) {
	return cs.backing.Addresses(ctx)
}

// Evict drops the fragment from both the cache and the backing store, when
// the backing store supports removal.
func (cs *CachingStore) Evict(ctx context.Context, h hash.Hash) error {
	cs.cache.Remove(h)
	if ev, ok := cs.backing.(Evicter); ok {
		return ev.Evict(ctx, h)
	}
	return nil
}

func (cs *CachingStore) Close() error {
	return cs.backing.Close()
}

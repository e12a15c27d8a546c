// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

package store

import (
	"bytes"
	"context"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	ldbutil "github.com/syndtr/goleveldb/leveldb/util"

	"github.com/strata-db/strata/fragment"
	"github.com/strata-db/strata/hash"
)

var fragmentPrefix = []byte("/fragment/")

func toFragmentKey(h hash.Hash) []byte {
	return append(append([]byte{}, fragmentPrefix...), h[:]...)
}

// LevelDBStore persists fragment records in LevelDB, keyed by address under a
// /fragment/ prefix. Records are already snappy-compressed, so the database's
// own compression is disabled.
type LevelDBStore struct {
	db *leveldb.DB
	mu sync.Mutex // serializes Put's check-then-write
}

var _ FragmentStore = (*LevelDBStore)(nil)
var _ Evicter = (*LevelDBStore)(nil)

func NewLevelDBStore(dir string) (*LevelDBStore, error) {
	if dir == "" {
		return nil, errors.New("store: empty leveldb directory")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.Wrap(err, "store: create leveldb dir")
	}
	db, err := leveldb.OpenFile(dir, &opt.Options{
		Compression: opt.NoCompression,
		Filter:      filter.NewBloomFilter(10), // 10 bits/key
		WriteBuffer: 1 << 24,                   // 16MiB
	})
	if err != nil {
		return nil, errors.Wrap(err, "store: open leveldb")
	}
	return &LevelDBStore{db: db}, nil
}

func (l *LevelDBStore) Put(_ context.Context, f *fragment.Fragment) (hash.Hash, error) {
	h := f.Address()
	key := toFragmentKey(h)
	data := f.MarshalBinary()

	l.mu.Lock()
	defer l.mu.Unlock()

	existing, err := l.db.Get(key, nil)
	if err == nil {
		if !bytes.Equal(existing, data) {
			return hash.Hash{}, &DigestCollisionError{Addr: h}
		}
		return h, nil
	}
	if err != ldberrors.ErrNotFound {
		return hash.Hash{}, errors.Wrap(err, "store: read during put")
	}

	// Sync so a crash never leaves a half-visible fragment.
	if err := l.db.Put(key, data, &opt.WriteOptions{Sync: true}); err != nil {
		return hash.Hash{}, errors.Wrap(err, "store: write fragment")
	}
	return h, nil
}

func (l *LevelDBStore) Get(_ context.Context, h hash.Hash) (*fragment.Fragment, error) {
	data, err := l.db.Get(toFragmentKey(h), nil)
	if err == ldberrors.ErrNotFound {
		return nil, &NotFoundError{Addr: h}
	}
	if err != nil {
		return nil, errors.Wrap(err, "store: read fragment")
	}
	return fragment.UnmarshalFragment(data)
}

func (l *LevelDBStore) Has(_ context.Context, h hash.Hash) (bool, error) {
	ok, err := l.db.Has(toFragmentKey(h), &opt.ReadOptions{DontFillCache: true})
	if err != nil {
		return false, errors.Wrap(err, "store: existence check")
	}
	return ok, nil
}

func (l *LevelDBStore) HasMany(ctx context.Context, hashes hash.HashSet) (hash.HashSet, error) {
	absent := hash.HashSet{}
	for h := range hashes {
		ok, err := l.Has(ctx, h)
		if err != nil {
			return nil, err
		}
		if !ok {
			absent.Insert(h)
		}
	}
	return absent, nil
}

func (l *LevelDBStore) Addresses(_ context.Context) (hash.HashSet, error) {
	out := hash.HashSet{}
	iter := l.db.NewIterator(ldbutil.BytesPrefix(fragmentPrefix), nil)
	defer iter.Release()
	for iter.Next() {
		out.Insert(hash.New(iter.Key()[len(fragmentPrefix):]))
	}
	if err := iter.Error(); err != nil {
		return nil, errors.Wrap(err, "store: inventory scan")
	}
	return out, nil
}

func (l *LevelDBStore) Evict(_ context.Context, h hash.Hash) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return errors.Wrap(l.db.Delete(toFragmentKey(h), &opt.WriteOptions{Sync: true}), "store: evict fragment")
}

func (l *LevelDBStore) Close() error {
	return l.db.Close()
}

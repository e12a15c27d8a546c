// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

// Package catalog tracks which images reference which fragments and is the
// single source of truth for reference counts. It is the only component
// permitted to trigger fragment eviction.
package catalog

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/strata-db/strata/hash"
	"github.com/strata-db/strata/store"
)

var refsBucket = []byte("catalog.refs")

// Catalog persists, per fragment address, the set of image ids referencing
// it. The reference count is the size of that set. It shares a bolt database
// with the commit graph so retain/release happen in the same transaction as
// image creation and deletion.
type Catalog struct {
	db     *bolt.DB
	logger *zap.Logger
}

func New(db *bolt.DB, logger *zap.Logger) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(refsBucket)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "catalog: init bucket")
	}
	return &Catalog{db: db, logger: logger}, nil
}

// RetainInTx records imageID as a referrer of every address in addrs, inside
// the caller's write transaction. Referencing the same fragment from the
// same image twice is a no-op, so commits may pass their full fragment set
// without deduplicating against parents first.
func (c *Catalog) RetainInTx(tx *bolt.Tx, imageID hash.Hash, addrs hash.HashSet) error {
	b := tx.Bucket(refsBucket)
	for _, addr := range addrs.Sorted() {
		ids, err := decodeRefs(b.Get(addr[:]))
		if err != nil {
			return err
		}
		if ids.Has(imageID) {
			continue
		}
		ids.Insert(imageID)
		if err := b.Put(addr[:], encodeRefs(ids)); err != nil {
			return errors.Wrap(err, "catalog: write refs")
		}
	}
	return nil
}

// ReleaseInTx removes imageID from the referrer sets of addrs. Entries that
// drop to zero referrers are kept (empty) so Sweep can find them.
func (c *Catalog) ReleaseInTx(tx *bolt.Tx, imageID hash.Hash, addrs hash.HashSet) error {
	b := tx.Bucket(refsBucket)
	for _, addr := range addrs.Sorted() {
		raw := b.Get(addr[:])
		if raw == nil {
			continue
		}
		ids, err := decodeRefs(raw)
		if err != nil {
			return err
		}
		if !ids.Has(imageID) {
			continue
		}
		ids.Remove(imageID)
		if err := b.Put(addr[:], encodeRefs(ids)); err != nil {
			return errors.Wrap(err, "catalog: write refs")
		}
	}
	return nil
}

// Count returns the reference count for addr. Untracked addresses count as
// zero.
func (c *Catalog) Count(addr hash.Hash) (int, error) {
	n := 0
	err := c.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(refsBucket).Get(addr[:])
		if raw == nil {
			return nil
		}
		ids, err := decodeRefs(raw)
		if err != nil {
			return err
		}
		n = ids.Size()
		return nil
	})
	return n, err
}

// Referencing returns the ids of the images referencing addr, in id order.
func (c *Catalog) Referencing(addr hash.Hash) (hash.HashSlice, error) {
	var out hash.HashSlice
	err := c.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(refsBucket).Get(addr[:])
		if raw == nil {
			return nil
		}
		ids, err := decodeRefs(raw)
		if err != nil {
			return err
		}
		out = ids.Sorted()
		return nil
	})
	return out, err
}

// Unreferenced returns the tracked addresses whose reference count has
// dropped to zero.
func (c *Catalog) Unreferenced(ctx context.Context) (hash.HashSet, error) {
	out := hash.HashSet{}
	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(refsBucket).ForEach(func(k, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ids, err := decodeRefs(v)
			if err != nil {
				return err
			}
			if ids.Size() == 0 {
				out.Insert(hash.New(k))
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Sweep evicts every zero-reference fragment from fs and drops its catalog
// entry. Returns the evicted addresses. The initial scan only nominates
// candidates; liveness is decided again per address inside a write
// transaction, so a commit that re-references a candidate between the scan
// and its turn keeps both the fragment and its refs record.
func (c *Catalog) Sweep(ctx context.Context, fs store.FragmentStore) (hash.HashSlice, error) {
	candidates, err := c.Unreferenced(ctx)
	if err != nil {
		return nil, err
	}
	evicted := make(hash.HashSlice, 0, candidates.Size())
	for _, addr := range candidates.Sorted() {
		if err := ctx.Err(); err != nil {
			return evicted, err
		}
		swept, err := c.sweepOne(ctx, fs, addr)
		if err != nil {
			return evicted, err
		}
		if swept {
			evicted = append(evicted, addr)
		}
	}
	if len(evicted) > 0 {
		c.logger.Info("swept unreferenced fragments", zap.Int("count", len(evicted)))
	}
	return evicted, nil
}

// sweepOne evicts addr if it is still unreferenced. The emptiness re-check,
// the store eviction and the entry deletion all happen under one bolt write
// transaction, which serializes against RetainInTx running inside a commit's
// own write transaction.
func (c *Catalog) sweepOne(ctx context.Context, fs store.FragmentStore, addr hash.Hash) (bool, error) {
	ev, canEvict := fs.(store.Evicter)
	swept := false
	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(refsBucket)
		raw := b.Get(addr[:])
		if raw == nil {
			// Entry already gone; nothing to sweep.
			return nil
		}
		ids, err := decodeRefs(raw)
		if err != nil {
			return err
		}
		if ids.Size() > 0 {
			// Re-referenced since the candidate scan.
			return nil
		}
		if canEvict {
			if err := ev.Evict(ctx, addr); err != nil {
				return err
			}
		}
		if err := b.Delete(addr[:]); err != nil {
			return err
		}
		swept = true
		return nil
	})
	if err != nil {
		return false, errors.Wrap(err, "catalog: sweep entry")
	}
	return swept, nil
}

func encodeRefs(ids hash.HashSet) []byte {
	buf := &bytes.Buffer{}
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], uint64(ids.Size()))
	buf.Write(tmp[:n])
	for _, id := range ids.Sorted() {
		buf.Write(id[:])
	}
	return buf.Bytes()
}

func decodeRefs(raw []byte) (hash.HashSet, error) {
	ids := hash.HashSet{}
	if raw == nil {
		return ids, nil
	}
	r := bytes.NewReader(raw)
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, errors.Wrap(err, "catalog: corrupt refs record")
	}
	for i := uint64(0); i < n; i++ {
		var raw [hash.ByteLen]byte
		if _, err := io.ReadFull(r, raw[:]); err != nil {
			return nil, errors.Wrap(err, "catalog: corrupt refs record")
		}
		ids.Insert(hash.Hash(raw))
	}
	return ids, nil
}

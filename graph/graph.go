// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

// Package graph owns the commit DAG: immutable images, mutable tags, and the
// ancestry queries sync planning depends on. All mutation goes through a
// single-writer lock plus one bolt write transaction, so a half-recorded
// image is never visible to readers.
package graph

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/strata-db/strata/catalog"
	"github.com/strata-db/strata/hash"
)

var (
	imagesBucket   = []byte("graph.images")
	tagsBucket     = []byte("graph.tags")
	childrenBucket = []byte("graph.children")
)

// Graph is the explicit handle callers pass around; there is no implicit
// shared global.
type Graph struct {
	db     *bolt.DB
	cat    *catalog.Catalog
	logger *zap.Logger

	// commitMu is the serialization boundary for writes. Reads go through
	// bolt view transactions and never wait on it.
	commitMu sync.Mutex
}

func Open(db *bolt.DB, cat *catalog.Catalog, logger *zap.Logger) (*Graph, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{imagesBucket, tagsBucket, childrenBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "graph: init buckets")
	}
	return &Graph{db: db, cat: cat, logger: logger}, nil
}

// CommitOpts describes a new image. Parents order and per-table layer order
// are preserved exactly; layer order is the replay order.
type CommitOpts struct {
	Parents []hash.Hash
	Tables  map[string]hash.HashSlice
	Meta    Meta
}

// Commit records a new image and retains its fragments in the catalog, all
// in one transaction. Committing an identical image twice returns the same
// id without side effects. Merge images (two or more parents) are recorded
// as-is: their fragment lists must arrive already reconciled, and only
// structural consistency is validated here.
func (g *Graph) Commit(ctx context.Context, opts CommitOpts) (hash.Hash, error) {
	g.commitMu.Lock()
	defer g.commitMu.Unlock()
	return g.commitLocked(ctx, opts)
}

// CommitTo commits and moves tag to the new image, but only if the tag still
// points at expectedHead (the zero hash for a tag being created). A moved
// tag means another writer won the race: the caller gets
// ConcurrentCommitError and should rebase and retry.
func (g *Graph) CommitTo(ctx context.Context, tag string, expectedHead hash.Hash, opts CommitOpts) (hash.Hash, error) {
	g.commitMu.Lock()
	defer g.commitMu.Unlock()

	var actual hash.Hash
	err := g.db.View(func(tx *bolt.Tx) error {
		if raw := tx.Bucket(tagsBucket).Get([]byte(tag)); raw != nil {
			actual = hash.New(raw)
		}
		return nil
	})
	if err != nil {
		return hash.Hash{}, errors.Wrap(err, "graph: read tag head")
	}
	if actual != expectedHead {
		return hash.Hash{}, &ConcurrentCommitError{Tag: tag, Expected: expectedHead, Actual: actual}
	}

	id, err := g.commitLocked(ctx, opts)
	if err != nil {
		return hash.Hash{}, err
	}
	err = g.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(tagsBucket).Put([]byte(tag), id[:])
	})
	if err != nil {
		return hash.Hash{}, errors.Wrap(err, "graph: move tag")
	}
	return id, nil
}

func (g *Graph) commitLocked(ctx context.Context, opts CommitOpts) (hash.Hash, error) {
	if err := ctx.Err(); err != nil {
		return hash.Hash{}, err
	}
	if err := validateTables(opts.Tables); err != nil {
		return hash.Hash{}, err
	}
	meta := opts.Meta
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}

	var id hash.Hash
	err := g.db.Update(func(tx *bolt.Tx) error {
		images := tx.Bucket(imagesBucket)

		height := uint64(1)
		for _, p := range opts.Parents {
			raw := images.Get(p[:])
			if raw == nil {
				return &UnknownParentError{ID: p}
			}
			parent, err := decodeImage(p, raw)
			if err != nil {
				return err
			}
			if parent.Height+1 > height {
				height = parent.Height + 1
			}
		}

		id = hash.Of(identityBytes(opts.Parents, opts.Tables, meta))
		if images.Get(id[:]) != nil {
			// Identical image already recorded; idempotent.
			return nil
		}

		img := &Image{
			ID:      id,
			Parents: opts.Parents,
			Tables:  opts.Tables,
			Meta:    meta,
			Height:  height,
		}
		if err := images.Put(id[:], encodeImage(img)); err != nil {
			return err
		}
		children := tx.Bucket(childrenBucket)
		for _, p := range opts.Parents {
			if err := children.Put(childKey(p, id), nil); err != nil {
				return err
			}
		}
		// Every referenced fragment is counted for this image, including
		// ones shared with parents; only the set membership is new.
		return g.cat.RetainInTx(tx, id, img.FragmentSet())
	})
	if err != nil {
		return hash.Hash{}, err
	}
	g.logger.Debug("recorded image", zap.Stringer("id", id), zap.Int("parents", len(opts.Parents)))
	return id, nil
}

func validateTables(tables map[string]hash.HashSlice) error {
	for name, layers := range tables {
		if name == "" {
			return &InvalidCommitError{Reason: "empty table name"}
		}
		seen := hash.HashSet{}
		for _, h := range layers {
			if h.IsEmpty() {
				return &InvalidCommitError{Reason: "empty fragment address in table " + name}
			}
			if seen.Has(h) {
				return &InvalidCommitError{Reason: "duplicate fragment " + h.String() + " in table " + name}
			}
			seen.Insert(h)
		}
	}
	return nil
}

// Get returns the image with the given id.
func (g *Graph) Get(ctx context.Context, id hash.Hash) (*Image, error) {
	var img *Image
	err := g.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(imagesBucket).Get(id[:])
		if raw == nil {
			return &UnknownRefError{Ref: id.String()}
		}
		var err error
		img, err = decodeImage(id, raw)
		return err
	})
	if err != nil {
		return nil, err
	}
	return img, nil
}

// Has reports whether the image exists.
func (g *Graph) Has(ctx context.Context, id hash.Hash) (bool, error) {
	var ok bool
	err := g.db.View(func(tx *bolt.Tx) error {
		ok = tx.Bucket(imagesBucket).Get(id[:]) != nil
		return nil
	})
	return ok, err
}

// Delete removes an image that no other image descends from, releasing its
// fragment references and any tags pointing at it. Exists to drive garbage
// collection; history rewriting is not a goal.
func (g *Graph) Delete(ctx context.Context, id hash.Hash) error {
	g.commitMu.Lock()
	defer g.commitMu.Unlock()

	return g.db.Update(func(tx *bolt.Tx) error {
		images := tx.Bucket(imagesBucket)
		raw := images.Get(id[:])
		if raw == nil {
			return &UnknownRefError{Ref: id.String()}
		}
		img, err := decodeImage(id, raw)
		if err != nil {
			return err
		}

		children := tx.Bucket(childrenBucket)
		c := children.Cursor()
		if k, _ := c.Seek(id[:]); k != nil && bytes.HasPrefix(k, id[:]) {
			return ErrHasChildren
		}

		for _, p := range img.Parents {
			if err := children.Delete(childKey(p, id)); err != nil {
				return err
			}
		}
		tags := tx.Bucket(tagsBucket)
		// Collect first: bolt forbids mutation during ForEach.
		var stale [][]byte
		_ = tags.ForEach(func(name, target []byte) error {
			if hash.New(target) == id {
				stale = append(stale, append([]byte{}, name...))
			}
			return nil
		})
		for _, name := range stale {
			if err := tags.Delete(name); err != nil {
				return err
			}
		}
		if err := images.Delete(id[:]); err != nil {
			return err
		}
		return g.cat.ReleaseInTx(tx, id, img.FragmentSet())
	})
}

func childKey(parent, child hash.Hash) []byte {
	key := make([]byte, 0, 2*hash.ByteLen)
	key = append(key, parent[:]...)
	key = append(key, child[:]...)
	return key
}

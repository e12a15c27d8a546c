// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

// Package store maps fragment addresses to fragment records. Stores are
// reference-count-agnostic: retention bookkeeping belongs to the catalog and
// happens only through image creation.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/strata-db/strata/fragment"
	"github.com/strata-db/strata/hash"
)

// FragmentStore is the persistence surface for fragments.
//
// Put must be idempotent: writing a fragment whose address is already present
// is a no-op after verifying payload equality, and a payload mismatch at the
// same address is a DigestCollision (hash collision or corruption, never
// silently absorbed). Fragments are immutable once stored, so concurrent
// reads need no coordination.
type FragmentStore interface {
	// Put persists f and returns its address. Only complete, verified
	// records become visible; there is no partially-written state.
	Put(ctx context.Context, f *fragment.Fragment) (hash.Hash, error)

	// Get returns the fragment at h, or NotFound.
	Get(ctx context.Context, h hash.Hash) (*fragment.Fragment, error)

	// Has is the cheap existence check sync planning leans on.
	Has(ctx context.Context, h hash.Hash) (bool, error)

	// HasMany returns the subset of hashes absent from the store.
	HasMany(ctx context.Context, hashes hash.HashSet) (absent hash.HashSet, err error)

	// Addresses enumerates the store's full fragment inventory.
	Addresses(ctx context.Context) (hash.HashSet, error)

	Close() error
}

// Evicter is implemented by stores that support physical removal of a
// fragment. Only the catalog's sweep is permitted to call it; everything
// else treats stores as append-only.
type Evicter interface {
	Evict(ctx context.Context, h hash.Hash) error
}

// NotFoundError reports a fragment address absent from the store.
type NotFoundError struct {
	Addr hash.Hash
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("fragment %s: not found", e.Addr)
}

// DigestCollisionError reports two distinct payloads at one address.
type DigestCollisionError struct {
	Addr hash.Hash
}

func (e *DigestCollisionError) Error() string {
	return fmt.Sprintf("fragment %s: payload mismatch at existing address", e.Addr)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsDigestCollision(err error) bool {
	var dc *DigestCollisionError
	return errors.As(err, &dc)
}

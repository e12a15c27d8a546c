// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

package graph

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/strata-db/strata/hash"
)

// SetTag points name at id, creating or moving the tag. Tag movement is the
// only mutation images ever observe.
func (g *Graph) SetTag(ctx context.Context, name string, id hash.Hash) error {
	if name == "" {
		return errors.New("graph: empty tag name")
	}
	g.commitMu.Lock()
	defer g.commitMu.Unlock()
	return g.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(imagesBucket).Get(id[:]) == nil {
			return &UnknownRefError{Ref: id.String()}
		}
		return tx.Bucket(tagsBucket).Put([]byte(name), id[:])
	})
}

// DeleteTag removes a tag. Removing an absent tag is a no-op.
func (g *Graph) DeleteTag(ctx context.Context, name string) error {
	g.commitMu.Lock()
	defer g.commitMu.Unlock()
	return g.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(tagsBucket).Delete([]byte(name))
	})
}

// Tag returns the image a tag points at, or UnknownRef.
func (g *Graph) Tag(ctx context.Context, name string) (hash.Hash, error) {
	var id hash.Hash
	err := g.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(tagsBucket).Get([]byte(name))
		if raw == nil {
			return &UnknownRefError{Ref: name}
		}
		id = hash.New(raw)
		return nil
	})
	return id, err
}

// Tags returns the full tag mapping.
func (g *Graph) Tags(ctx context.Context) (map[string]hash.Hash, error) {
	out := map[string]hash.Hash{}
	err := g.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(tagsBucket).ForEach(func(name, target []byte) error {
			out[string(name)] = hash.New(target)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Resolve turns a user-supplied ref into a full image id. Tags win over
// ids; otherwise the ref may be a full id or a unique id prefix.
func (g *Graph) Resolve(ctx context.Context, ref string) (hash.Hash, error) {
	if ref == "" {
		return hash.Hash{}, &UnknownRefError{Ref: ref}
	}

	if id, err := g.Tag(ctx, ref); err == nil {
		return id, nil
	}

	if full, ok := hash.MaybeParse(ref); ok {
		exists, err := g.Has(ctx, full)
		if err != nil {
			return hash.Hash{}, err
		}
		if exists {
			return full, nil
		}
		return hash.Hash{}, &UnknownRefError{Ref: ref}
	}

	if len(ref) > hash.StringLen {
		return hash.Hash{}, &UnknownRefError{Ref: ref}
	}

	var matches hash.HashSlice
	err := g.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(imagesBucket).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			id := hash.New(k)
			if strings.HasPrefix(id.String(), ref) {
				matches = append(matches, id)
				if len(matches) > maxReportedMatches {
					// Ambiguous either way; no point finishing the scan.
					break
				}
			}
		}
		return nil
	})
	if err != nil {
		return hash.Hash{}, err
	}
	switch len(matches) {
	case 0:
		return hash.Hash{}, &UnknownRefError{Ref: ref}
	case 1:
		return matches[0], nil
	default:
		return hash.Hash{}, &AmbiguousRefError{Ref: ref, Matches: matches}
	}
}

const maxReportedMatches = 8

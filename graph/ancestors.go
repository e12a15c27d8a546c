// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

package graph

import (
	"container/heap"
	"context"

	"github.com/strata-db/strata/hash"
)

// AncestorIter lazily enumerates an image's transitive parents, highest
// generation first (parent-first reverse-chronological), with no duplicates.
// History can be arbitrarily long, so nothing is materialized up front; each
// Next call touches at most one image record per emitted id. Iterators are
// restartable per call: create a fresh one to walk again.
type AncestorIter struct {
	g        *Graph
	frontier nodeHeap
	visited  hash.HashSet
}

// Ancestors returns an iterator over the transitive parent set of id. The
// starting image itself is not included.
func (g *Graph) Ancestors(ctx context.Context, id hash.Hash) (*AncestorIter, error) {
	img, err := g.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	it := &AncestorIter{g: g, visited: hash.NewHashSet(id)}
	heap.Init(&it.frontier)
	if err := it.pushParents(ctx, img); err != nil {
		return nil, err
	}
	return it, nil
}

// Next returns the next ancestor id. The second result is false when the
// walk is exhausted.
func (it *AncestorIter) Next(ctx context.Context) (hash.Hash, bool, error) {
	for it.frontier.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return hash.Hash{}, false, err
		}
		n := heap.Pop(&it.frontier).(node)
		if it.visited.Has(n.id) {
			continue
		}
		it.visited.Insert(n.id)
		img, err := it.g.Get(ctx, n.id)
		if err != nil {
			return hash.Hash{}, false, err
		}
		if err := it.pushParents(ctx, img); err != nil {
			return hash.Hash{}, false, err
		}
		return n.id, true, nil
	}
	return hash.Hash{}, false, nil
}

func (it *AncestorIter) pushParents(ctx context.Context, img *Image) error {
	for _, p := range img.Parents {
		if it.visited.Has(p) {
			continue
		}
		parent, err := it.g.Get(ctx, p)
		if err != nil {
			return err
		}
		heap.Push(&it.frontier, node{id: p, height: parent.Height})
	}
	return nil
}

// IsAncestor reports whether a is reachable from b by following parent
// edges; an image is its own ancestor. Used to detect fast-forward sync
// opportunities, where pure fragment-set union suffices.
func (g *Graph) IsAncestor(ctx context.Context, a, b hash.Hash) (bool, error) {
	if a == b {
		ok, err := g.Has(ctx, a)
		if err != nil {
			return false, err
		}
		return ok, nil
	}
	it, err := g.Ancestors(ctx, b)
	if err != nil {
		return false, err
	}
	for {
		id, ok, err := it.Next(ctx)
		if err != nil || !ok {
			return false, err
		}
		if id == a {
			return true, nil
		}
	}
}

type node struct {
	id     hash.Hash
	height uint64
}

// nodeHeap is a max-heap by height, ties broken by id so traversal order is
// deterministic.
type nodeHeap []node

func (h nodeHeap) Len() int { return len(h) }

func (h nodeHeap) Less(i, j int) bool {
	if h[i].height != h[j].height {
		return h[i].height > h[j].height
	}
	return h[i].id.Less(h[j].id)
}

func (h nodeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *nodeHeap) Push(x interface{}) {
	*h = append(*h, x.(node))
}

func (h *nodeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

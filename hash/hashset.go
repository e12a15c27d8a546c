// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

package hash

import (
	"sort"
	"strings"
)

// HashSet is an unordered set of addresses.
type HashSet map[Hash]struct{}

func NewHashSet(hashes ...Hash) HashSet {
	out := make(HashSet, len(hashes))
	for _, h := range hashes {
		out.Insert(h)
	}
	return out
}

func (hs HashSet) Insert(h Hash) {
	hs[h] = struct{}{}
}

func (hs HashSet) Has(h Hash) bool {
	_, ok := hs[h]
	return ok
}

func (hs HashSet) Remove(h Hash) {
	delete(hs, h)
}

func (hs HashSet) Size() int {
	return len(hs)
}

func (hs HashSet) Copy() HashSet {
	out := make(HashSet, len(hs))
	for h := range hs {
		out[h] = struct{}{}
	}
	return out
}

func (hs HashSet) InsertAll(other HashSet) {
	for h := range other {
		hs[h] = struct{}{}
	}
}

// Diff returns the members of hs absent from other.
func (hs HashSet) Diff(other HashSet) HashSet {
	out := HashSet{}
	for h := range hs {
		if !other.Has(h) {
			out.Insert(h)
		}
	}
	return out
}

// Sorted returns the members in address order. Used wherever a deterministic
// walk over a set is needed.
func (hs HashSet) Sorted() HashSlice {
	out := make(HashSlice, 0, len(hs))
	for h := range hs {
		out = append(out, h)
	}
	sort.Sort(out)
	return out
}

func (hs HashSet) String() string {
	sb := strings.Builder{}
	sb.WriteString("{")
	for i, h := range hs.Sorted() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(h.String())
	}
	sb.WriteString("}")
	return sb.String()
}

// HashSlice is a sortable slice of addresses.
type HashSlice []Hash

func (hs HashSlice) Len() int           { return len(hs) }
func (hs HashSlice) Less(i, j int) bool { return hs[i].Less(hs[j]) }
func (hs HashSlice) Swap(i, j int)      { hs[i], hs[j] = hs[j], hs[i] }

func (hs HashSlice) HashSet() HashSet {
	return NewHashSet(hs...)
}

// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

package fragment

import (
	"github.com/kch42/buzhash"
	"github.com/strata-db/strata/hash"
)

const (
	// chunkWindowSize is the number of bytes of rolling-hash state carried
	// across op boundaries.
	chunkWindowSize = 64

	// chunkPattern yields ~512 ops per fragment on average. Boundaries
	// depend only on op content, so an unchanged run of rows keeps
	// producing the same fragments (and the same addresses) no matter
	// what was edited around it.
	chunkPattern = uint32(1<<9 - 1)

	// maxChunkOps bounds the worst case when the pattern never fires.
	maxChunkOps = 1 << 13
)

// Split canonicalizes a row delta and splits it into one or more fragments
// at content-defined boundaries. Ops sharing a key are never separated (the
// codec forbids duplicate keys per fragment anyway), and an empty delta
// yields a single empty fragment so a commit can record "no change"
// explicitly.
func Split(s Schema, ops []RowOp) ([]*Fragment, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	canon, err := canonicalize(s, ops)
	if err != nil {
		return nil, err
	}
	if len(canon) <= 1 {
		f, err := Encode(s, canon)
		if err != nil {
			return nil, err
		}
		return []*Fragment{f}, nil
	}

	frags := []*Fragment{}
	h := buzhash.NewBuzHash(chunkWindowSize)
	start := 0
	for i, op := range canon {
		digest := opDigest(s, op)
		_, _ = h.Write(digest[:])
		atBoundary := h.Sum32()&chunkPattern == chunkPattern
		if atBoundary || i-start+1 >= maxChunkOps {
			f, err := Encode(s, canon[start:i+1])
			if err != nil {
				return nil, err
			}
			frags = append(frags, f)
			start = i + 1
			h = buzhash.NewBuzHash(chunkWindowSize)
		}
	}
	if start < len(canon) {
		f, err := Encode(s, canon[start:])
		if err != nil {
			return nil, err
		}
		frags = append(frags, f)
	}
	return frags, nil
}

// opDigest feeds the rolling hash with a fixed-width digest of the op, the
// same trick the chunked-sequence splitter uses for child addresses: hashing
// digests instead of raw bytes keeps boundary probability independent of op
// size.
func opDigest(s Schema, op RowOp) hash.Hash {
	w := &binWriter{}
	w.byteVal(byte(op.Kind))
	switch op.Kind {
	case InsertOp:
		for _, v := range op.Row {
			w.value(v)
		}
	case DeleteOp:
		for _, v := range op.Key {
			w.value(v)
		}
	case UpdateOp:
		for _, v := range op.Key {
			w.value(v)
		}
		for i, name := range op.Cols {
			w.uvarint(uint64(s.ColumnIndex(name)))
			w.value(op.Vals[i])
		}
	}
	return hash.Of(w.data())
}

// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

package fragment

import (
	"fmt"
	"sort"

	"github.com/golang/snappy"
	"github.com/strata-db/strata/hash"
)

// Encode canonicalizes a row delta against its table schema and returns the
// resulting fragment. The address is computed over the uncompressed canonical
// bytes, before compression, so it is independent of the compression choice.
func Encode(s Schema, ops []RowOp) (*Fragment, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	canon, err := canonicalize(s, ops)
	if err != nil {
		return nil, err
	}
	raw := encodePayload(s, canon)
	addr := hash.Of(raw)
	return &Fragment{
		addr:     addr,
		schema:   s,
		bounds:   computeBounds(s, canon),
		rowCount: uint64(len(canon)),
		rawSize:  uint64(len(raw)),
		payload:  snappy.Encode(nil, raw),
	}, nil
}

// Decode is the inverse of Encode. It decompresses the payload, verifies the
// content digest against the fragment's address, and returns the delta in
// canonical order.
func Decode(f *Fragment) ([]RowOp, error) {
	raw, err := snappy.Decode(nil, f.payload)
	if err != nil {
		return nil, &CorruptFragmentError{Addr: f.addr, Reason: "decompression failed"}
	}
	if hash.Of(raw) != f.addr {
		return nil, &CorruptFragmentError{Addr: f.addr, Reason: "digest mismatch"}
	}
	_, ops, err := decodePayload(raw)
	if err != nil {
		return nil, &CorruptFragmentError{Addr: f.addr, Reason: err.Error()}
	}
	return ops, nil
}

// canonicalize validates every op's shape against the schema and returns a
// copy sorted by key tuple, then op kind. Two ops addressing the same key
// within one delta are rejected: the replay contract gives precedence by
// fragment order, and within a single fragment there is no order to appeal
// to.
func canonicalize(s Schema, ops []RowOp) ([]RowOp, error) {
	keyIdx := s.KeyIndexes()
	for i := range ops {
		if err := validateOp(s, keyIdx, ops[i]); err != nil {
			return nil, err
		}
	}

	canon := make([]RowOp, len(ops))
	copy(canon, ops)
	for i := range canon {
		if canon[i].Kind == UpdateOp {
			canon[i] = sortUpdateCols(s, canon[i])
		}
	}
	sort.SliceStable(canon, func(i, j int) bool {
		c := CompareTuples(canon[i].keyTuple(s), canon[j].keyTuple(s))
		if c != 0 {
			return c < 0
		}
		return canon[i].Kind < canon[j].Kind
	})
	for i := 1; i < len(canon); i++ {
		if CompareTuples(canon[i-1].keyTuple(s), canon[i].keyTuple(s)) == 0 {
			return nil, &SchemaMismatchError{
				Reason: fmt.Sprintf("duplicate key within delta: %v", canon[i].keyTuple(s)),
			}
		}
	}
	return canon, nil
}

func validateOp(s Schema, keyIdx []int, op RowOp) error {
	switch op.Kind {
	case InsertOp:
		if len(op.Row) != len(s.Columns) {
			return &SchemaMismatchError{
				Reason: fmt.Sprintf("insert has %d values, schema has %d columns", len(op.Row), len(s.Columns)),
			}
		}
		for i, c := range s.Columns {
			if !ValueOfType(op.Row[i], c.Type) {
				return &SchemaMismatchError{
					Reason: fmt.Sprintf("column %s: value %v is not %s", c.Name, op.Row[i], c.Type),
				}
			}
			if c.Key && op.Row[i] == nil {
				return &SchemaMismatchError{Reason: "NULL in key column " + c.Name}
			}
		}
	case DeleteOp, UpdateOp:
		if len(op.Key) != len(keyIdx) {
			return &SchemaMismatchError{
				Reason: fmt.Sprintf("%s key has %d values, schema has %d key columns", op.Kind, len(op.Key), len(keyIdx)),
			}
		}
		for i, ki := range keyIdx {
			c := s.Columns[ki]
			if op.Key[i] == nil {
				return &SchemaMismatchError{Reason: "NULL in key column " + c.Name}
			}
			if !ValueOfType(op.Key[i], c.Type) {
				return &SchemaMismatchError{
					Reason: fmt.Sprintf("key column %s: value %v is not %s", c.Name, op.Key[i], c.Type),
				}
			}
		}
		if op.Kind == UpdateOp {
			if len(op.Cols) == 0 || len(op.Cols) != len(op.Vals) {
				return &SchemaMismatchError{Reason: "update has mismatched column/value lists"}
			}
			seen := map[string]bool{}
			for i, name := range op.Cols {
				if seen[name] {
					return &SchemaMismatchError{Reason: "update sets column " + name + " twice"}
				}
				seen[name] = true
				ci := s.ColumnIndex(name)
				if ci < 0 {
					return &SchemaMismatchError{Reason: "update of unknown column " + name}
				}
				c := s.Columns[ci]
				if c.Key {
					return &SchemaMismatchError{Reason: "update of key column " + name}
				}
				if !ValueOfType(op.Vals[i], c.Type) {
					return &SchemaMismatchError{
						Reason: fmt.Sprintf("column %s: value %v is not %s", name, op.Vals[i], c.Type),
					}
				}
			}
		}
	default:
		return &SchemaMismatchError{Reason: fmt.Sprintf("unknown op kind %d", op.Kind)}
	}
	return nil
}

// sortUpdateCols orders an update's changed columns by schema position, so
// updates are canonical regardless of caller column order.
func sortUpdateCols(s Schema, op RowOp) RowOp {
	type colVal struct {
		idx  int
		name string
		val  Value
	}
	cvs := make([]colVal, len(op.Cols))
	for i, name := range op.Cols {
		cvs[i] = colVal{idx: s.ColumnIndex(name), name: name, val: op.Vals[i]}
	}
	sort.Slice(cvs, func(i, j int) bool { return cvs[i].idx < cvs[j].idx })
	out := RowOp{Kind: UpdateOp, Key: op.Key, Cols: make([]string, len(cvs)), Vals: make([]Value, len(cvs))}
	for i, cv := range cvs {
		out.Cols[i] = cv.name
		out.Vals[i] = cv.val
	}
	return out
}

func encodePayload(s Schema, canon []RowOp) []byte {
	w := &binWriter{}
	w.buf.Write(payloadMagic[:])
	w.byteVal(formatVersion)
	writeSchema(w, s)
	w.uvarint(uint64(len(canon)))
	for _, op := range canon {
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
			w.uvarint(uint64(len(op.Cols)))
			for i, name := range op.Cols {
				w.uvarint(uint64(s.ColumnIndex(name)))
				w.value(op.Vals[i])
			}
		}
	}
	return w.data()
}

func decodePayload(raw []byte) (Schema, []RowOp, error) {
	r := newBinReader(raw)
	var magic [4]byte
	for i := range magic {
		b, err := r.byteVal()
		if err != nil {
			return Schema{}, nil, err
		}
		magic[i] = b
	}
	if magic != payloadMagic {
		return Schema{}, nil, fmt.Errorf("bad payload magic")
	}
	ver, err := r.byteVal()
	if err != nil || ver != formatVersion {
		return Schema{}, nil, fmt.Errorf("unsupported payload version")
	}
	s, err := readSchema(r)
	if err != nil {
		return Schema{}, nil, err
	}
	keyIdx := s.KeyIndexes()

	n, err := r.uvarint()
	if err != nil {
		return Schema{}, nil, err
	}
	ops := make([]RowOp, 0, n)
	for i := uint64(0); i < n; i++ {
		kind, err := r.byteVal()
		if err != nil {
			return Schema{}, nil, err
		}
		op := RowOp{Kind: OpKind(kind)}
		switch op.Kind {
		case InsertOp:
			op.Row = make([]Value, len(s.Columns))
			for j := range op.Row {
				if op.Row[j], err = r.value(); err != nil {
					return Schema{}, nil, err
				}
			}
		case DeleteOp, UpdateOp:
			op.Key = make([]Value, len(keyIdx))
			for j := range op.Key {
				if op.Key[j], err = r.value(); err != nil {
					return Schema{}, nil, err
				}
			}
			if op.Kind == UpdateOp {
				nc, err := r.uvarint()
				if err != nil {
					return Schema{}, nil, err
				}
				op.Cols = make([]string, nc)
				op.Vals = make([]Value, nc)
				for j := uint64(0); j < nc; j++ {
					ci, err := r.uvarint()
					if err != nil {
						return Schema{}, nil, err
					}
					if ci >= uint64(len(s.Columns)) {
						return Schema{}, nil, fmt.Errorf("update column index out of range")
					}
					op.Cols[j] = s.Columns[ci].Name
					if op.Vals[j], err = r.value(); err != nil {
						return Schema{}, nil, err
					}
				}
			}
		default:
			return Schema{}, nil, fmt.Errorf("unknown op kind %d", kind)
		}
		ops = append(ops, op)
	}
	if r.remaining() != 0 {
		return Schema{}, nil, fmt.Errorf("trailing bytes after delta")
	}
	return s, ops, nil
}

// computeBounds summarizes the values each op touches per column: full rows
// for inserts, key columns for deletes, key plus changed columns for updates.
// The materializer and diff planner use these to skip fragments that cannot
// intersect a predicate window.
func computeBounds(s Schema, canon []RowOp) []ColumnBounds {
	bounds := make([]ColumnBounds, len(s.Columns))
	keyIdx := s.KeyIndexes()

	observe := func(ci int, v Value) {
		if v == nil {
			return
		}
		b := &bounds[ci]
		if !b.Defined {
			*b = ColumnBounds{Defined: true, Min: v, Max: v}
			return
		}
		if CompareValues(v, b.Min) < 0 {
			b.Min = v
		}
		if CompareValues(v, b.Max) > 0 {
			b.Max = v
		}
	}

	for _, op := range canon {
		switch op.Kind {
		case InsertOp:
			for ci, v := range op.Row {
				observe(ci, v)
			}
		case DeleteOp:
			for i, ki := range keyIdx {
				observe(ki, op.Key[i])
			}
		case UpdateOp:
			for i, ki := range keyIdx {
				observe(ki, op.Key[i])
			}
			for i, name := range op.Cols {
				observe(s.ColumnIndex(name), op.Vals[i])
			}
		}
	}
	return bounds
}

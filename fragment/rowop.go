// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

package fragment

import "fmt"

// OpKind tags a row operation. The numeric values are part of the canonical
// encoding and must not be reordered.
type OpKind uint8

const (
	InsertOp OpKind = iota
	DeleteOp
	UpdateOp
)

func (k OpKind) String() string {
	switch k {
	case InsertOp:
		return "insert"
	case DeleteOp:
		return "delete"
	case UpdateOp:
		return "update"
	}
	return fmt.Sprintf("OpKind(%d)", uint8(k))
}

// RowOp is one keyed row operation within a fragment's delta.
//
// Insert carries the full row in schema column order; its key is implied by
// the schema's key columns. Delete carries only the key tuple. Update carries
// the key tuple plus the changed columns and their new values.
type RowOp struct {
	Kind OpKind
	Key  []Value
	Row  []Value
	Cols []string
	Vals []Value
}

func Insert(row ...Value) RowOp {
	return RowOp{Kind: InsertOp, Row: row}
}

func Delete(key ...Value) RowOp {
	return RowOp{Kind: DeleteOp, Key: key}
}

func Update(key []Value, cols []string, vals []Value) RowOp {
	return RowOp{Kind: UpdateOp, Key: key, Cols: cols, Vals: vals}
}

// keyTuple returns the tuple the op addresses, resolving insert keys through
// the schema. Assumes the op has already passed shape validation.
func (op RowOp) keyTuple(s Schema) []Value {
	if op.Kind == InsertOp {
		return s.KeyOf(op.Row)
	}
	return op.Key
}

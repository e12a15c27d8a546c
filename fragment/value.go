// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

package fragment

import (
	"bytes"
	"fmt"
	"math"
)

// Type is the semantic type of a column.
type Type uint8

const (
	BoolType Type = iota
	IntType
	FloatType
	StringType
	BytesType
)

func (t Type) String() string {
	switch t {
	case BoolType:
		return "bool"
	case IntType:
		return "int"
	case FloatType:
		return "float"
	case StringType:
		return "string"
	case BytesType:
		return "bytes"
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// Value is a single cell. The dynamic type must be one of nil (NULL), bool,
// int64, float64, string or []byte, matching the column's declared Type.
// Rows are tagged value sequences against an explicit schema descriptor;
// nothing here relies on reflection over caller structs.
type Value interface{}

// ValueOfType reports whether v is valid for a column of type t. NULL is
// valid for any column type; key columns reject it separately.
func ValueOfType(v Value, t Type) bool {
	if v == nil {
		return true
	}
	switch t {
	case BoolType:
		_, ok := v.(bool)
		return ok
	case IntType:
		_, ok := v.(int64)
		return ok
	case FloatType:
		_, ok := v.(float64)
		return ok
	case StringType:
		_, ok := v.(string)
		return ok
	case BytesType:
		_, ok := v.([]byte)
		return ok
	}
	return false
}

// CompareValues orders two values of the same column type. NULL sorts before
// everything else. Panics on mixed dynamic types; encode-time validation
// guarantees that never happens for stored data.
func CompareValues(a, b Value) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	switch av := a.(type) {
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		default:
			return 1
		}
	case int64:
		bv := b.(int64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case float64:
		bv := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		case av == bv:
			return 0
		default:
			// Order NaN below every other float so sorting stays total.
			an, bn := math.IsNaN(av), math.IsNaN(bv)
			switch {
			case an && bn:
				return 0
			case an:
				return -1
			default:
				return 1
			}
		}
	case string:
		bv := b.(string)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case []byte:
		return bytes.Compare(av, b.([]byte))
	}
	panic(fmt.Sprintf("fragment: unsupported value type %T", a))
}

// CompareTuples orders two value tuples lexicographically. Shorter tuples
// sort first when they are a prefix of the longer.
func CompareTuples(a, b []Value) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := CompareValues(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

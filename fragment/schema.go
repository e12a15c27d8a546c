// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

package fragment

// Column describes one column of a table. Key columns form the primary key
// that delete and update operations address rows by.
type Column struct {
	Name string
	Type Type
	Key  bool
}

// Schema is the ordered column list a fragment's rows are encoded against.
type Schema struct {
	Columns []Column
}

func NewSchema(cols ...Column) Schema {
	return Schema{Columns: cols}
}

// Validate checks structural well-formedness: nonempty, unique column names
// and at least one key column (rows must be addressable by key).
func (s Schema) Validate() error {
	if len(s.Columns) == 0 {
		return &SchemaMismatchError{Reason: "schema has no columns"}
	}
	seen := map[string]bool{}
	keys := 0
	for _, c := range s.Columns {
		if c.Name == "" {
			return &SchemaMismatchError{Reason: "column with empty name"}
		}
		if seen[c.Name] {
			return &SchemaMismatchError{Reason: "duplicate column " + c.Name}
		}
		seen[c.Name] = true
		if c.Key {
			keys++
		}
	}
	if keys == 0 {
		return &SchemaMismatchError{Reason: "schema has no key columns"}
	}
	return nil
}

// KeyIndexes returns the positions of the key columns, in schema order.
func (s Schema) KeyIndexes() []int {
	out := []int{}
	for i, c := range s.Columns {
		if c.Key {
			out = append(out, i)
		}
	}
	return out
}

// ColumnIndex returns the position of the named column, or -1.
func (s Schema) ColumnIndex(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func (s Schema) Equal(other Schema) bool {
	if len(s.Columns) != len(other.Columns) {
		return false
	}
	for i, c := range s.Columns {
		if c != other.Columns[i] {
			return false
		}
	}
	return true
}

// KeyOf extracts the key tuple from a full row in schema order.
func (s Schema) KeyOf(row []Value) []Value {
	key := make([]Value, 0, 2)
	for i, c := range s.Columns {
		if c.Key {
			key = append(key, row[i])
		}
	}
	return key
}

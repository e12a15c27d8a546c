// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

// Package diff computes ordered row-level changes between two images'
// versions of a table. When the newer image's layer list extends the older
// one's, the appended fragments are themselves the diff and are decoded
// directly, without materializing either side. Otherwise both sides are
// replayed into in-memory tables and compared row by row.
package diff

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/strata-db/strata/fragment"
	"github.com/strata-db/strata/graph"
	"github.com/strata-db/strata/hash"
	"github.com/strata-db/strata/materialize"
	"github.com/strata-db/strata/materialize/memengine"
	"github.com/strata-db/strata/store"
)

type ChangeKind int

const (
	Added ChangeKind = iota
	Deleted
	Modified
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Deleted:
		return "deleted"
	case Modified:
		return "modified"
	}
	return "unknown"
}

// RowChange is one row's transition between the two images. New is the full
// row for Added. Modified carries the changed columns in Cols/Vals; Old and
// New are full before/after rows when the change came from the materializing
// path, and nil on the layer-suffix path, which never sees the old row.
type RowChange struct {
	Kind ChangeKind
	Key  []fragment.Value
	Old  []fragment.Value
	New  []fragment.Value
	Cols []string
	Vals []fragment.Value
}

type Differ struct {
	store  store.FragmentStore
	graph  *graph.Graph
	logger *zap.Logger
}

func New(fs store.FragmentStore, g *graph.Graph, logger *zap.Logger) *Differ {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Differ{store: fs, graph: g, logger: logger}
}

// Images is the package entry point for one-shot diffs.
func Images(ctx context.Context, fs store.FragmentStore, g *graph.Graph, a, b hash.Hash, table string) ([]RowChange, error) {
	return New(fs, g, nil).Changes(ctx, a, b, table)
}

// Changes returns table's row changes going from image a to image b, ordered
// by key.
func (d *Differ) Changes(ctx context.Context, a, b hash.Hash, table string) ([]RowChange, error) {
	imgA, err := d.graph.Get(ctx, a)
	if err != nil {
		return nil, err
	}
	imgB, err := d.graph.Get(ctx, b)
	if err != nil {
		return nil, err
	}
	layersA, inA := imgA.Tables[table]
	layersB, inB := imgB.Tables[table]
	if !inA && !inB {
		return nil, &materialize.UnknownTableError{Image: b, Table: table}
	}

	if inB && layerPrefix(layersA, layersB) {
		changes, err := d.suffixChanges(ctx, layersB[len(layersA):])
		if err != nil {
			return nil, err
		}
		d.logger.Debug("diffed via layer suffix",
			zap.String("table", table),
			zap.Int("fragments", len(layersB)-len(layersA)),
			zap.Int("changes", len(changes)),
		)
		return changes, nil
	}
	return d.materializedChanges(ctx, a, b, table, inA, inB)
}

// layerPrefix reports whether a is a (possibly empty) prefix of b.
func layerPrefix(a, b hash.HashSlice) bool {
	if len(a) > len(b) {
		return false
	}
	for i, h := range a {
		if b[i] != h {
			return false
		}
	}
	return true
}

// suffixChanges decodes the appended fragments and folds their ops into one
// change per key, later fragments taking precedence. This is exact: the
// suffix is the delta history recorded between the two images.
func (d *Differ) suffixChanges(ctx context.Context, suffix hash.HashSlice) ([]RowChange, error) {
	byKey := map[string]*RowChange{}
	for _, addr := range suffix {
		f, err := d.store.Get(ctx, addr)
		if err != nil {
			return nil, err
		}
		ops, err := fragment.Decode(f)
		if err != nil {
			return nil, err
		}
		schema := f.Schema()
		for _, op := range ops {
			foldOp(byKey, schema, op)
		}
	}
	changes := make([]RowChange, 0, len(byKey))
	for _, c := range byKey {
		changes = append(changes, *c)
	}
	sortByKey(changes)
	return changes, nil
}

func foldOp(byKey map[string]*RowChange, schema fragment.Schema, op fragment.RowOp) {
	var key []fragment.Value
	switch op.Kind {
	case fragment.InsertOp:
		key = schema.KeyOf(op.Row)
	default:
		key = op.Key
	}
	ks := keyString(key)
	prev := byKey[ks]

	switch op.Kind {
	case fragment.InsertOp:
		byKey[ks] = &RowChange{Kind: Added, Key: key, New: op.Row}
	case fragment.DeleteOp:
		if prev != nil && prev.Kind == Added {
			// The delete lands on a row these same layers added; the base
			// image never held the key, so the net change is nothing.
			delete(byKey, ks)
			return
		}
		byKey[ks] = &RowChange{Kind: Deleted, Key: key}
	case fragment.UpdateOp:
		switch {
		case prev != nil && prev.Kind == Added:
			// Update lands on a row this same diff added; fold it in.
			updated := append([]fragment.Value{}, prev.New...)
			for i, col := range op.Cols {
				updated[schema.ColumnIndex(col)] = op.Vals[i]
			}
			prev.New = updated
		case prev != nil && prev.Kind == Modified:
			mergeCols(prev, op.Cols, op.Vals)
		default:
			byKey[ks] = &RowChange{
				Kind: Modified,
				Key:  key,
				Cols: append([]string{}, op.Cols...),
				Vals: append([]fragment.Value{}, op.Vals...),
			}
		}
	}
}

func mergeCols(c *RowChange, cols []string, vals []fragment.Value) {
	for i, col := range cols {
		found := false
		for j, have := range c.Cols {
			if have == col {
				c.Vals[j] = vals[i]
				found = true
				break
			}
		}
		if !found {
			c.Cols = append(c.Cols, col)
			c.Vals = append(c.Vals, vals[i])
		}
	}
}

// materializedChanges is the general path: replay each side into its own
// in-memory engine and compare row sets keyed by primary key.
func (d *Differ) materializedChanges(ctx context.Context, a, b hash.Hash, table string, inA, inB bool) ([]RowChange, error) {
	var rowsA, rowsB map[string]keyedRow
	var schemaA, schemaB fragment.Schema
	var err error
	if inA {
		if schemaA, rowsA, err = d.tableRows(ctx, a, table); err != nil {
			return nil, err
		}
	}
	if inB {
		if schemaB, rowsB, err = d.tableRows(ctx, b, table); err != nil {
			return nil, err
		}
	}
	if inA && inB && !schemaA.Equal(schemaB) {
		return nil, &fragment.SchemaMismatchError{
			Reason: "table " + table + " has different schemas in the two images",
		}
	}
	schema := schemaB
	if !inB {
		schema = schemaA
	}

	changes := []RowChange{}
	for ks, ra := range rowsA {
		rb, ok := rowsB[ks]
		if !ok {
			changes = append(changes, RowChange{Kind: Deleted, Key: ra.key, Old: ra.vals})
			continue
		}
		if fragment.CompareTuples(ra.vals, rb.vals) != 0 {
			c := RowChange{Kind: Modified, Key: ra.key, Old: ra.vals, New: rb.vals}
			for i, col := range schema.Columns {
				if fragment.CompareValues(ra.vals[i], rb.vals[i]) != 0 {
					c.Cols = append(c.Cols, col.Name)
					c.Vals = append(c.Vals, rb.vals[i])
				}
			}
			changes = append(changes, c)
		}
	}
	for ks, rb := range rowsB {
		if _, ok := rowsA[ks]; !ok {
			changes = append(changes, RowChange{Kind: Added, Key: rb.key, New: rb.vals})
		}
	}
	sortByKey(changes)
	d.logger.Debug("diffed via materialization",
		zap.String("table", table), zap.Int("changes", len(changes)))
	return changes, nil
}

type keyedRow struct {
	key  []fragment.Value
	vals []fragment.Value
}

func (d *Differ) tableRows(ctx context.Context, img hash.Hash, table string) (fragment.Schema, map[string]keyedRow, error) {
	eng := memengine.New()
	mat := materialize.New(d.store, d.graph, eng, d.logger)
	if err := mat.Materialize(ctx, img, table); err != nil {
		return fragment.Schema{}, nil, err
	}
	schema, _ := eng.Schema(table)
	rows, _ := eng.Rows(table)
	out := make(map[string]keyedRow, len(rows))
	for _, vals := range rows {
		key := schema.KeyOf(vals)
		out[keyString(key)] = keyedRow{key: key, vals: vals}
	}
	return schema, out, nil
}

func sortByKey(changes []RowChange) {
	sort.Slice(changes, func(i, j int) bool {
		return fragment.CompareTuples(changes[i].Key, changes[j].Key) < 0
	})
}

// keyString is a map key for a key tuple. Encoded values are framed, so
// distinct tuples never collide.
func keyString(key []fragment.Value) string {
	return string(fragment.EncodeTuple(key))
}

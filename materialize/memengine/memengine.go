// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

// Package memengine is an in-memory relational engine used by tests and by
// the diff fallback path. Tables are btrees ordered by key tuple, so row
// snapshots come back in deterministic key order.
package memengine

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/btree"

	"github.com/strata-db/strata/fragment"
	"github.com/strata-db/strata/materialize"
)

type row struct {
	key  []fragment.Value
	vals []fragment.Value
}

func rowLess(a, b row) bool {
	return fragment.CompareTuples(a.key, b.key) < 0
}

type table struct {
	schema fragment.Schema
	rows   *btree.BTreeG[row]
}

func (t *table) clone() *table {
	return &table{schema: t.schema, rows: t.rows.Clone()}
}

// Engine holds the committed table states. A transaction works on cheap
// btree clones and swaps them in on Commit, giving readers snapshot
// isolation for free.
type Engine struct {
	mu     sync.Mutex
	tables map[string]*table
}

var _ materialize.Engine = (*Engine)(nil)

func New() *Engine {
	return &Engine{tables: map[string]*table{}}
}

func (e *Engine) Begin(_ context.Context) (materialize.Tx, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	staged := make(map[string]*table, len(e.tables))
	for name, t := range e.tables {
		staged[name] = t.clone()
	}
	return &memTx{engine: e, staged: staged}, nil
}

// Tables returns the committed table names.
func (e *Engine) Tables() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.tables))
	for name := range e.tables {
		out = append(out, name)
	}
	return out
}

// Schema returns the committed schema of a table.
func (e *Engine) Schema(name string) (fragment.Schema, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tables[name]
	if !ok {
		return fragment.Schema{}, false
	}
	return t.schema, true
}

// Rows returns a table's committed rows in key order, each row in schema
// column order.
func (e *Engine) Rows(name string) ([][]fragment.Value, bool) {
	e.mu.Lock()
	t, ok := e.tables[name]
	e.mu.Unlock()
	if !ok {
		return nil, false
	}
	out := [][]fragment.Value{}
	t.rows.Ascend(func(r row) bool {
		out = append(out, append([]fragment.Value{}, r.vals...))
		return true
	})
	return out, true
}

type memTx struct {
	engine *Engine
	staged map[string]*table
	done   bool
}

var _ materialize.Tx = (*memTx)(nil)

func (tx *memTx) CreateTable(_ context.Context, name string, schema fragment.Schema) error {
	if err := schema.Validate(); err != nil {
		return err
	}
	if _, ok := tx.staged[name]; ok {
		return fmt.Errorf("memengine: table %q already exists", name)
	}
	tx.staged[name] = &table{
		schema: schema,
		rows:   btree.NewG(8, rowLess),
	}
	return nil
}

func (tx *memTx) DropTable(_ context.Context, name string) error {
	delete(tx.staged, name)
	return nil
}

func (tx *memTx) Insert(_ context.Context, name string, schema fragment.Schema, vals []fragment.Value) error {
	t, err := tx.table(name)
	if err != nil {
		return err
	}
	r := row{key: schema.KeyOf(vals), vals: append([]fragment.Value{}, vals...)}
	t.rows.ReplaceOrInsert(r)
	return nil
}

func (tx *memTx) Delete(_ context.Context, name string, _ fragment.Schema, key []fragment.Value) error {
	t, err := tx.table(name)
	if err != nil {
		return err
	}
	t.rows.Delete(row{key: key})
	return nil
}

func (tx *memTx) Update(_ context.Context, name string, schema fragment.Schema, key []fragment.Value, cols []string, vals []fragment.Value) error {
	t, err := tx.table(name)
	if err != nil {
		return err
	}
	existing, ok := t.rows.Get(row{key: key})
	if !ok {
		// Row vanished earlier in history; match SQL UPDATE semantics.
		return nil
	}
	updated := append([]fragment.Value{}, existing.vals...)
	for i, col := range cols {
		ci := schema.ColumnIndex(col)
		if ci < 0 {
			return fmt.Errorf("memengine: unknown column %q in table %q", col, name)
		}
		updated[ci] = vals[i]
	}
	t.rows.ReplaceOrInsert(row{key: existing.key, vals: updated})
	return nil
}

func (tx *memTx) Commit() error {
	if tx.done {
		return fmt.Errorf("memengine: transaction already finished")
	}
	tx.done = true
	tx.engine.mu.Lock()
	defer tx.engine.mu.Unlock()
	tx.engine.tables = tx.staged
	return nil
}

func (tx *memTx) Rollback() error {
	tx.done = true
	tx.staged = nil
	return nil
}

func (tx *memTx) table(name string) (*table, error) {
	t, ok := tx.staged[name]
	if !ok {
		return nil, fmt.Errorf("memengine: no table %q", name)
	}
	return t, nil
}

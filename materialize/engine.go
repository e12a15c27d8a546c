// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

// Package materialize reconstructs the logical row set of a table at a given
// image by replaying its fragment list against a relational engine.
package materialize

import (
	"context"

	"github.com/strata-db/strata/fragment"
)

// Engine is the boundary to the external relational engine. The engine owns
// row storage and indexing; strata only drives it with keyed DML inside a
// transaction per materialization call.
type Engine interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is one engine transaction. Implementations must make Commit
// all-or-nothing: a rolled-back or abandoned transaction leaves no trace
// visible to readers.
type Tx interface {
	CreateTable(ctx context.Context, name string, schema fragment.Schema) error
	DropTable(ctx context.Context, name string) error

	Insert(ctx context.Context, table string, schema fragment.Schema, row []fragment.Value) error
	Delete(ctx context.Context, table string, schema fragment.Schema, key []fragment.Value) error
	Update(ctx context.Context, table string, schema fragment.Schema, key []fragment.Value, cols []string, vals []fragment.Value) error

	Commit() error
	Rollback() error
}

// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

package materialize

import (
	"context"

	"go.uber.org/zap"

	"github.com/strata-db/strata/fragment"
	"github.com/strata-db/strata/graph"
	"github.com/strata-db/strata/hash"
	"github.com/strata-db/strata/store"
)

// Materializer replays fragment lists through an Engine. It is stateless:
// every call resolves the image fresh and runs in its own engine
// transaction, so a call may be repeated or restarted at will and always
// yields the same resulting table state.
type Materializer struct {
	store  store.FragmentStore
	graph  *graph.Graph
	engine Engine
	logger *zap.Logger
}

func New(fs store.FragmentStore, g *graph.Graph, e Engine, logger *zap.Logger) *Materializer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Materializer{store: fs, graph: g, engine: e, logger: logger}
}

// Window restricts a materialization to rows that may fall inside
// [Min, Max] on Column, letting the replay skip fragments whose index
// bounds are disjoint from it. Purely an optimization: the skipped
// fragments cannot contain rows visible through the window.
type Window struct {
	Column string
	Min    fragment.Value
	Max    fragment.Value
}

// Materialize replays table at imageID into an engine table of the same
// name.
func (m *Materializer) Materialize(ctx context.Context, imageID hash.Hash, table string) error {
	return m.run(ctx, imageID, table, table, nil)
}

// MaterializeInto replays table at imageID into the engine table dest.
func (m *Materializer) MaterializeInto(ctx context.Context, imageID hash.Hash, table, dest string) error {
	return m.run(ctx, imageID, table, dest, nil)
}

// MaterializeWindow is MaterializeInto restricted to a predicate window.
func (m *Materializer) MaterializeWindow(ctx context.Context, imageID hash.Hash, table, dest string, w Window) error {
	return m.run(ctx, imageID, table, dest, &w)
}

func (m *Materializer) run(ctx context.Context, imageID hash.Hash, table, dest string, w *Window) error {
	img, err := m.graph.Get(ctx, imageID)
	if err != nil {
		return err
	}
	layers, ok := img.Tables[table]
	if !ok {
		return &UnknownTableError{Image: imageID, Table: table}
	}

	frags, err := m.fetch(ctx, imageID, table, layers)
	if err != nil {
		return err
	}
	schema, err := layerSchema(frags)
	if err != nil {
		return err
	}

	tx, err := m.engine.Begin(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Recreate the destination so replay starts from a clean slate; this
	// is what makes repeated calls bit-identical.
	if err := tx.DropTable(ctx, dest); err != nil {
		return err
	}
	if err := tx.CreateTable(ctx, dest, schema); err != nil {
		return err
	}

	applied, skipped := 0, 0
	for _, f := range frags {
		if w != nil && windowDisjoint(f, schema, *w) {
			skipped++
			continue
		}
		if err := m.apply(ctx, tx, dest, schema, f); err != nil {
			return err
		}
		applied++
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	m.logger.Debug("materialized table",
		zap.Stringer("image", imageID),
		zap.String("table", table),
		zap.String("dest", dest),
		zap.Int("fragments", applied),
		zap.Int("skipped", skipped),
	)
	return nil
}

// fetch loads every layer up front so a missing fragment is reported before
// the engine transaction starts, not halfway through a replay.
func (m *Materializer) fetch(ctx context.Context, imageID hash.Hash, table string, layers hash.HashSlice) ([]*fragment.Fragment, error) {
	absent, err := m.store.HasMany(ctx, layers.HashSet())
	if err != nil {
		return nil, err
	}
	if absent.Size() > 0 {
		return nil, &MissingFragmentError{Image: imageID, Table: table, Addrs: absent.Sorted()}
	}
	frags := make([]*fragment.Fragment, len(layers))
	for i, h := range layers {
		if frags[i], err = m.store.Get(ctx, h); err != nil {
			if store.IsNotFound(err) {
				return nil, &MissingFragmentError{Image: imageID, Table: table, Addrs: hash.HashSlice{h}}
			}
			return nil, err
		}
	}
	return frags, nil
}

func layerSchema(frags []*fragment.Fragment) (fragment.Schema, error) {
	if len(frags) == 0 {
		return fragment.Schema{}, &fragment.SchemaMismatchError{Reason: "table has no fragments"}
	}
	schema := frags[0].Schema()
	for _, f := range frags[1:] {
		if !f.Schema().Equal(schema) {
			return fragment.Schema{}, &fragment.SchemaMismatchError{
				Reason: "fragment " + f.Address().String() + " disagrees with layer schema",
			}
		}
	}
	return schema, nil
}

// apply replays one fragment: deletes, then updates, then inserts. Fragments
// are applied oldest to newest, so later fragments' operations take
// precedence for the same key.
func (m *Materializer) apply(ctx context.Context, tx Tx, dest string, schema fragment.Schema, f *fragment.Fragment) error {
	ops, err := fragment.Decode(f)
	if err != nil {
		return err
	}
	for _, op := range ops {
		if op.Kind != fragment.DeleteOp {
			continue
		}
		if err := tx.Delete(ctx, dest, schema, op.Key); err != nil {
			return err
		}
	}
	for _, op := range ops {
		if op.Kind != fragment.UpdateOp {
			continue
		}
		if err := tx.Update(ctx, dest, schema, op.Key, op.Cols, op.Vals); err != nil {
			return err
		}
	}
	for _, op := range ops {
		if op.Kind != fragment.InsertOp {
			continue
		}
		if err := tx.Insert(ctx, dest, schema, op.Row); err != nil {
			return err
		}
	}
	return nil
}

func windowDisjoint(f *fragment.Fragment, schema fragment.Schema, w Window) bool {
	ci := schema.ColumnIndex(w.Column)
	if ci < 0 {
		return false
	}
	return f.Bounds(ci).Disjoint(w.Min, w.Max)
}

// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

package memengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-db/strata/fragment"
)

func schema() fragment.Schema {
	return fragment.NewSchema(
		fragment.Column{Name: "id", Type: fragment.IntType, Key: true},
		fragment.Column{Name: "v", Type: fragment.StringType},
	)
}

func TestCommitSwapsState(t *testing.T) {
	ctx := context.Background()
	e := New()
	tx, err := e.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.CreateTable(ctx, "t", schema()))
	require.NoError(t, tx.Insert(ctx, "t", schema(), []fragment.Value{int64(1), "a"}))
	require.NoError(t, tx.Commit())

	rows, ok := e.Rows("t")
	require.True(t, ok)
	assert.Equal(t, [][]fragment.Value{{int64(1), "a"}}, rows)
}

func TestRollbackLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	e := New()
	tx, _ := e.Begin(ctx)
	require.NoError(t, tx.CreateTable(ctx, "t", schema()))
	require.NoError(t, tx.Commit())

	tx, _ = e.Begin(ctx)
	require.NoError(t, tx.Insert(ctx, "t", schema(), []fragment.Value{int64(1), "a"}))
	require.NoError(t, tx.Rollback())

	rows, ok := e.Rows("t")
	require.True(t, ok)
	assert.Empty(t, rows)
}

func TestInsertUpsertsOnKey(t *testing.T) {
	ctx := context.Background()
	e := New()
	tx, _ := e.Begin(ctx)
	require.NoError(t, tx.CreateTable(ctx, "t", schema()))
	require.NoError(t, tx.Insert(ctx, "t", schema(), []fragment.Value{int64(1), "a"}))
	require.NoError(t, tx.Insert(ctx, "t", schema(), []fragment.Value{int64(1), "b"}))
	require.NoError(t, tx.Commit())

	rows, _ := e.Rows("t")
	assert.Equal(t, [][]fragment.Value{{int64(1), "b"}}, rows)
}

func TestUpdateMissingRowIsNoop(t *testing.T) {
	ctx := context.Background()
	e := New()
	tx, _ := e.Begin(ctx)
	require.NoError(t, tx.CreateTable(ctx, "t", schema()))
	require.NoError(t, tx.Update(ctx, "t", schema(),
		[]fragment.Value{int64(9)}, []string{"v"}, []fragment.Value{"x"}))
	require.NoError(t, tx.Commit())

	rows, _ := e.Rows("t")
	assert.Empty(t, rows)
}

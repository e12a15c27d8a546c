// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

package sqlengine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/strata-db/strata/fragment"
)

func testSchema() fragment.Schema {
	return fragment.NewSchema(
		fragment.Column{Name: "id", Type: fragment.IntType, Key: true},
		fragment.Column{Name: "name", Type: fragment.StringType},
		fragment.Column{Name: "score", Type: fragment.FloatType},
	)
}

func TestCreateTableSQL(t *testing.T) {
	got := CreateTableSQL("users", testSchema())
	assert.Equal(t,
		`CREATE TABLE "users" ("id" BIGINT, "name" TEXT, "score" DOUBLE PRECISION, PRIMARY KEY ("id"))`,
		got)
}

func TestInsertSQL(t *testing.T) {
	q, args := InsertSQL("users", testSchema(), []fragment.Value{int64(1), "alice", 9.5})
	assert.Equal(t, `INSERT INTO "users" ("id", "name", "score") VALUES (?, ?, ?)`, q)
	assert.Equal(t, []interface{}{int64(1), "alice", 9.5}, args)
}

func TestDeleteSQL(t *testing.T) {
	q, args := DeleteSQL("users", testSchema(), []fragment.Value{int64(7)})
	assert.Equal(t, `DELETE FROM "users" WHERE "id" = ?`, q)
	assert.Equal(t, []interface{}{int64(7)}, args)
}

func TestUpdateSQL(t *testing.T) {
	q, args := UpdateSQL("users", testSchema(),
		[]fragment.Value{int64(7)}, []string{"name"}, []fragment.Value{"bob"})
	assert.Equal(t, `UPDATE "users" SET "name" = ? WHERE "id" = ?`, q)
	assert.Equal(t, []interface{}{"bob", int64(7)}, args)
}

func TestQuoteIdentEscapes(t *testing.T) {
	assert.Equal(t, `"we""ird"`, quoteIdent(`we"ird`))
}

func TestCompositeKeyClause(t *testing.T) {
	s := fragment.NewSchema(
		fragment.Column{Name: "a", Type: fragment.IntType, Key: true},
		fragment.Column{Name: "b", Type: fragment.StringType, Key: true},
		fragment.Column{Name: "v", Type: fragment.IntType},
	)
	q, args := DeleteSQL("t", s, []fragment.Value{int64(1), "x"})
	assert.Equal(t, `DELETE FROM "t" WHERE "a" = ? AND "b" = ?`, q)
	assert.Equal(t, []interface{}{int64(1), "x"}, args)
}

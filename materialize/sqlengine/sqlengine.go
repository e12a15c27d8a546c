// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

// Package sqlengine adapts a database/sql database to the materialize.Engine
// interface. The driver is whatever the embedder registered; statements are
// built with bindvars and rebound to the driver's placeholder style.
package sqlengine

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/strata-db/strata/fragment"
	"github.com/strata-db/strata/materialize"
)

type Engine struct {
	db *sqlx.DB
}

var _ materialize.Engine = (*Engine)(nil)

func New(db *sqlx.DB) *Engine {
	return &Engine{db: db}
}

func (e *Engine) Begin(ctx context.Context) (materialize.Tx, error) {
	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "sqlengine: begin")
	}
	return &sqlTx{tx: tx}, nil
}

type sqlTx struct {
	tx *sqlx.Tx
}

var _ materialize.Tx = (*sqlTx)(nil)

func (t *sqlTx) CreateTable(ctx context.Context, name string, schema fragment.Schema) error {
	_, err := t.tx.ExecContext(ctx, CreateTableSQL(name, schema))
	return errors.Wrapf(err, "sqlengine: create table %s", name)
}

func (t *sqlTx) DropTable(ctx context.Context, name string) error {
	_, err := t.tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdent(name)))
	return errors.Wrapf(err, "sqlengine: drop table %s", name)
}

func (t *sqlTx) Insert(ctx context.Context, table string, schema fragment.Schema, row []fragment.Value) error {
	q, args := InsertSQL(table, schema, row)
	_, err := t.tx.ExecContext(ctx, t.tx.Rebind(q), args...)
	return errors.Wrapf(err, "sqlengine: insert into %s", table)
}

func (t *sqlTx) Delete(ctx context.Context, table string, schema fragment.Schema, key []fragment.Value) error {
	q, args := DeleteSQL(table, schema, key)
	_, err := t.tx.ExecContext(ctx, t.tx.Rebind(q), args...)
	return errors.Wrapf(err, "sqlengine: delete from %s", table)
}

func (t *sqlTx) Update(ctx context.Context, table string, schema fragment.Schema, key []fragment.Value, cols []string, vals []fragment.Value) error {
	q, args := UpdateSQL(table, schema, key, cols, vals)
	_, err := t.tx.ExecContext(ctx, t.tx.Rebind(q), args...)
	return errors.Wrapf(err, "sqlengine: update %s", table)
}

func (t *sqlTx) Commit() error {
	return errors.Wrap(t.tx.Commit(), "sqlengine: commit")
}

func (t *sqlTx) Rollback() error {
	return errors.Wrap(t.tx.Rollback(), "sqlengine: rollback")
}

// CreateTableSQL renders the DDL for a schema: typed columns plus a primary
// key over the schema's key columns.
func CreateTableSQL(name string, schema fragment.Schema) string {
	cols := make([]string, 0, len(schema.Columns)+1)
	keys := []string{}
	for _, c := range schema.Columns {
		cols = append(cols, fmt.Sprintf("%s %s", quoteIdent(c.Name), sqlType(c.Type)))
		if c.Key {
			keys = append(keys, quoteIdent(c.Name))
		}
	}
	cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(keys, ", ")))
	return fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(name), strings.Join(cols, ", "))
}

func InsertSQL(table string, schema fragment.Schema, row []fragment.Value) (string, []interface{}) {
	names := make([]string, len(schema.Columns))
	marks := make([]string, len(schema.Columns))
	args := make([]interface{}, len(row))
	for i, c := range schema.Columns {
		names[i] = quoteIdent(c.Name)
		marks[i] = "?"
		args[i] = row[i]
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(names, ", "), strings.Join(marks, ", "))
	return q, args
}

func DeleteSQL(table string, schema fragment.Schema, key []fragment.Value) (string, []interface{}) {
	where, args := keyClause(schema, key)
	return fmt.Sprintf("DELETE FROM %s WHERE %s", quoteIdent(table), where), args
}

func UpdateSQL(table string, schema fragment.Schema, key []fragment.Value, cols []string, vals []fragment.Value) (string, []interface{}) {
	sets := make([]string, len(cols))
	args := make([]interface{}, 0, len(cols)+len(key))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = ?", quoteIdent(c))
		args = append(args, vals[i])
	}
	where, whereArgs := keyClause(schema, key)
	args = append(args, whereArgs...)
	q := fmt.Sprintf("UPDATE %s SET %s WHERE %s", quoteIdent(table), strings.Join(sets, ", "), where)
	return q, args
}

func keyClause(schema fragment.Schema, key []fragment.Value) (string, []interface{}) {
	parts := []string{}
	args := []interface{}{}
	i := 0
	for _, c := range schema.Columns {
		if !c.Key {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s = ?", quoteIdent(c.Name)))
		args = append(args, key[i])
		i++
	}
	return strings.Join(parts, " AND "), args
}

func sqlType(t fragment.Type) string {
	switch t {
	case fragment.BoolType:
		return "BOOLEAN"
	case fragment.IntType:
		return "BIGINT"
	case fragment.FloatType:
		return "DOUBLE PRECISION"
	case fragment.StringType:
		return "TEXT"
	case fragment.BytesType:
		return "BLOB"
	}
	return "TEXT"
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

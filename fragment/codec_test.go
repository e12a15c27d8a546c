// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

package fragment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema() Schema {
	return NewSchema(
		Column{Name: "id", Type: IntType, Key: true},
		Column{Name: "name", Type: StringType},
		Column{Name: "score", Type: FloatType},
	)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	require := require.New(t)

	s := testSchema()
	ops := []RowOp{
		Insert(int64(2), "bob", 1.5),
		Delete(int64(5)),
		Update([]Value{int64(3)}, []string{"name"}, []Value{"carol"}),
		Insert(int64(1), "alice", nil),
	}

	f, err := Encode(s, ops)
	require.NoError(err)
	require.False(f.Address().IsEmpty())
	require.Equal(uint64(4), f.RowCount())
	require.True(f.Schema().Equal(s))

	got, err := Decode(f)
	require.NoError(err)
	require.Len(got, 4)

	// Canonical order is by key tuple.
	assert.Equal(t, InsertOp, got[0].Kind)
	assert.Equal(t, []Value{int64(1), "alice", nil}, got[0].Row)
	assert.Equal(t, []Value{int64(2), "bob", 1.5}, got[1].Row)
	assert.Equal(t, UpdateOp, got[2].Kind)
	assert.Equal(t, []Value{int64(3)}, got[2].Key)
	assert.Equal(t, []string{"name"}, got[2].Cols)
	assert.Equal(t, DeleteOp, got[3].Kind)
	assert.Equal(t, []Value{int64(5)}, got[3].Key)
}

func TestAddressIgnoresInputOrder(t *testing.T) {
	assert := assert.New(t)

	s := testSchema()
	a := []RowOp{Insert(int64(1), "a", 1.0), Insert(int64(2), "b", 2.0)}
	b := []RowOp{Insert(int64(2), "b", 2.0), Insert(int64(1), "a", 1.0)}

	fa, err := Encode(s, a)
	assert.NoError(err)
	fb, err := Encode(s, b)
	assert.NoError(err)
	assert.Equal(fa.Address(), fb.Address())

	fc, err := Encode(s, []RowOp{Insert(int64(1), "a", 1.0), Insert(int64(2), "b", 2.5)})
	assert.NoError(err)
	assert.NotEqual(fa.Address(), fc.Address())
}

func TestAddressIgnoresUpdateColumnOrder(t *testing.T) {
	assert := assert.New(t)

	s := testSchema()
	a, err := Encode(s, []RowOp{Update([]Value{int64(1)}, []string{"name", "score"}, []Value{"x", 2.0})})
	assert.NoError(err)
	b, err := Encode(s, []RowOp{Update([]Value{int64(1)}, []string{"score", "name"}, []Value{2.0, "x"})})
	assert.NoError(err)
	assert.Equal(a.Address(), b.Address())
}

func TestEncodeRejectsBadOps(t *testing.T) {
	s := testSchema()

	cases := []struct {
		name string
		ops  []RowOp
	}{
		{"short insert", []RowOp{Insert(int64(1), "a")}},
		{"wrong value type", []RowOp{Insert("1", "a", 2.0)}},
		{"null key", []RowOp{{Kind: InsertOp, Row: []Value{nil, "a", 2.0}}}},
		{"short delete key", []RowOp{Delete()}},
		{"update unknown column", []RowOp{Update([]Value{int64(1)}, []string{"nope"}, []Value{int64(1)})}},
		{"update key column", []RowOp{Update([]Value{int64(1)}, []string{"id"}, []Value{int64(2)})}},
		{"update column twice", []RowOp{Update([]Value{int64(1)}, []string{"name", "name"}, []Value{"a", "b"})}},
		{"duplicate key", []RowOp{Insert(int64(1), "a", 1.0), Delete(int64(1))}},
		{"duplicate inserts", []RowOp{Insert(int64(1), "a", 1.0), Insert(int64(1), "b", 2.0)}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Encode(s, c.ops)
			require.Error(t, err)
			assert.True(t, IsSchemaMismatch(err), "want SchemaMismatch, got %v", err)
		})
	}
}

func TestEncodeRejectsBadSchema(t *testing.T) {
	assert := assert.New(t)

	_, err := Encode(Schema{}, nil)
	assert.True(IsSchemaMismatch(err))

	noKey := NewSchema(Column{Name: "a", Type: IntType})
	_, err = Encode(noKey, nil)
	assert.True(IsSchemaMismatch(err))

	dup := NewSchema(Column{Name: "a", Type: IntType, Key: true}, Column{Name: "a", Type: IntType})
	_, err = Encode(dup, nil)
	assert.True(IsSchemaMismatch(err))
}

func TestMarshalRoundTripAndCorruption(t *testing.T) {
	require := require.New(t)

	f, err := Encode(testSchema(), []RowOp{Insert(int64(1), "a", 1.0), Delete(int64(9))})
	require.NoError(err)

	data := f.MarshalBinary()
	g, err := UnmarshalFragment(data)
	require.NoError(err)
	require.Equal(f.Address(), g.Address())
	require.Equal(f.RowCount(), g.RowCount())
	require.True(f.Schema().Equal(g.Schema()))

	ops, err := Decode(g)
	require.NoError(err)
	require.Len(ops, 2)

	// Flip a byte in the payload region; must surface as CorruptFragment.
	bad := append([]byte{}, data...)
	bad[len(bad)-1] ^= 0xff
	_, err = UnmarshalFragment(bad)
	require.Error(err)
	require.True(IsCorrupt(err))

	_, err = UnmarshalFragment([]byte("nonsense"))
	require.True(IsCorrupt(err))
	_, err = UnmarshalFragment(data[:10])
	require.True(IsCorrupt(err))
}

func TestUnmarshalRejectsTamperedEnvelope(t *testing.T) {
	require := require.New(t)

	f, err := Encode(testSchema(), []RowOp{Insert(int64(100), "zed", 1.0)})
	require.NoError(err)

	// Shrunken bounds with a valid payload: accepting them would let a
	// windowed replay drop row 100 from a [50, 300] window.
	tampered := *f
	tampered.bounds = append([]ColumnBounds{}, f.bounds...)
	tampered.bounds[0] = ColumnBounds{Defined: true, Min: int64(1), Max: int64(2)}
	require.True(tampered.Bounds(0).Disjoint(int64(50), int64(300)))
	_, err = UnmarshalFragment(tampered.MarshalBinary())
	require.True(IsCorrupt(err))

	// Falsified row count.
	tampered = *f
	tampered.rowCount = 7
	_, err = UnmarshalFragment(tampered.MarshalBinary())
	require.True(IsCorrupt(err))

	// Envelope schema disagreeing with the one inside the payload.
	cols := append([]Column{}, testSchema().Columns...)
	cols[1].Name = "renamed"
	tampered = *f
	tampered.schema = Schema{Columns: cols}
	_, err = UnmarshalFragment(tampered.MarshalBinary())
	require.True(IsCorrupt(err))
}

func TestBounds(t *testing.T) {
	assert := assert.New(t)

	s := testSchema()
	f, err := Encode(s, []RowOp{
		Insert(int64(10), "j", 0.5),
		Insert(int64(3), "c", nil),
		Delete(int64(20)),
		Update([]Value{int64(15)}, []string{"score"}, []Value{9.0}),
	})
	assert.NoError(err)

	id := f.Bounds(0)
	assert.True(id.Defined)
	assert.Equal(int64(3), id.Min)
	assert.Equal(int64(20), id.Max)

	name := f.Bounds(1)
	assert.True(name.Defined)
	assert.Equal("c", name.Min)
	assert.Equal("j", name.Max)

	score := f.Bounds(2)
	assert.True(score.Defined)
	assert.Equal(0.5, score.Min)
	assert.Equal(9.0, score.Max)

	assert.True(id.Disjoint(int64(21), int64(100)))
	assert.True(id.Disjoint(int64(-5), int64(2)))
	assert.False(id.Disjoint(int64(20), int64(25)))
	assert.False(ColumnBounds{}.Disjoint(int64(0), int64(1)))
}

func TestEmptyDelta(t *testing.T) {
	assert := assert.New(t)

	f, err := Encode(testSchema(), nil)
	assert.NoError(err)
	assert.Equal(uint64(0), f.RowCount())

	ops, err := Decode(f)
	assert.NoError(err)
	assert.Empty(ops)
	assert.False(f.Bounds(0).Defined)
}

// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

// Package fragment implements the content-addressed unit of row-level change.
// A fragment holds one table's row delta in a canonical binary form; its
// address is the digest of the uncompressed canonical bytes, so semantically
// identical deltas always deduplicate regardless of where or when they were
// encoded.
package fragment

import (
	"github.com/golang/snappy"
	"github.com/strata-db/strata/hash"
)

var (
	payloadMagic = [4]byte{'s', 'f', 'r', 'g'}
	recordMagic  = [4]byte{'s', 'f', 'r', 'c'}
)

const formatVersion = 1

// ColumnBounds is the (min, max) summary of the values a delta touches in
// one column. Undefined when the delta never touches the column with a
// non-NULL value.
type ColumnBounds struct {
	Defined  bool
	Min, Max Value
}

// Disjoint reports whether the bounds cannot overlap the closed interval
// [min, max]. Undefined bounds overlap everything.
func (b ColumnBounds) Disjoint(min, max Value) bool {
	if !b.Defined {
		return false
	}
	return CompareValues(b.Max, min) < 0 || CompareValues(b.Min, max) > 0
}

// Fragment is an immutable, content-addressed row delta for one table.
// Construct via Encode or UnmarshalFragment only.
type Fragment struct {
	addr     hash.Hash
	schema   Schema
	bounds   []ColumnBounds
	rowCount uint64
	rawSize  uint64
	payload  []byte // snappy-compressed canonical bytes
}

// Address is the digest of the uncompressed canonical content.
func (f *Fragment) Address() hash.Hash {
	return f.addr
}

func (f *Fragment) Schema() Schema {
	return f.schema
}

// Bounds returns the index bounds for column i of the schema.
func (f *Fragment) Bounds(i int) ColumnBounds {
	return f.bounds[i]
}

// RowCount is the number of row operations in the delta.
func (f *Fragment) RowCount() uint64 {
	return f.rowCount
}

// SizeBytes is the compressed payload size, the cost of storing or
// transferring this fragment.
func (f *Fragment) SizeBytes() uint64 {
	return uint64(len(f.payload))
}

// RawSize is the uncompressed canonical payload size.
func (f *Fragment) RawSize() uint64 {
	return f.rawSize
}

// MarshalBinary renders the self-contained record used for persistence and
// transport: address, schema, bounds and counts in the clear for cheap
// planning, followed by the compressed payload.
func (f *Fragment) MarshalBinary() []byte {
	w := &binWriter{}
	w.buf.Write(recordMagic[:])
	w.byteVal(formatVersion)
	w.buf.Write(f.addr[:])
	writeSchema(w, f.schema)
	for _, b := range f.bounds {
		if b.Defined {
			w.byteVal(1)
			w.value(b.Min)
			w.value(b.Max)
		} else {
			w.byteVal(0)
		}
	}
	w.uvarint(f.rowCount)
	w.uvarint(f.rawSize)
	w.bytes(f.payload)
	return w.data()
}

// UnmarshalFragment parses a record produced by MarshalBinary and verifies
// that the payload digest matches the recorded address, then cross-checks
// the envelope against the payload. The address covers only the canonical
// payload bytes, so the envelope's schema, bounds and row count must each be
// re-derived and compared; otherwise a remote could serve a valid payload
// under falsified bounds and windowed replay would skip rows it must apply.
// Every byte pulled from disk or the network passes through here.
func UnmarshalFragment(data []byte) (*Fragment, error) {
	r := newBinReader(data)
	var magic [4]byte
	for i := range magic {
		b, err := r.byteVal()
		if err != nil {
			return nil, &CorruptFragmentError{Reason: "short record"}
		}
		magic[i] = b
	}
	if magic != recordMagic {
		return nil, &CorruptFragmentError{Reason: "bad record magic"}
	}
	ver, err := r.byteVal()
	if err != nil || ver != formatVersion {
		return nil, &CorruptFragmentError{Reason: "unsupported record version"}
	}
	addrBytes := make([]byte, hash.ByteLen)
	for i := range addrBytes {
		b, err := r.byteVal()
		if err != nil {
			return nil, &CorruptFragmentError{Reason: "short record"}
		}
		addrBytes[i] = b
	}
	addr := hash.New(addrBytes)

	sch, err := readSchema(r)
	if err != nil {
		return nil, &CorruptFragmentError{Addr: addr, Reason: "bad schema"}
	}
	bounds := make([]ColumnBounds, len(sch.Columns))
	for i := range bounds {
		defined, err := r.byteVal()
		if err != nil {
			return nil, &CorruptFragmentError{Addr: addr, Reason: "short bounds"}
		}
		if defined == 1 {
			min, err := r.value()
			if err != nil {
				return nil, &CorruptFragmentError{Addr: addr, Reason: "bad bounds"}
			}
			max, err := r.value()
			if err != nil {
				return nil, &CorruptFragmentError{Addr: addr, Reason: "bad bounds"}
			}
			bounds[i] = ColumnBounds{Defined: true, Min: min, Max: max}
		}
	}
	rowCount, err := r.uvarint()
	if err != nil {
		return nil, &CorruptFragmentError{Addr: addr, Reason: "short record"}
	}
	rawSize, err := r.uvarint()
	if err != nil {
		return nil, &CorruptFragmentError{Addr: addr, Reason: "short record"}
	}
	payload, err := r.bytes()
	if err != nil {
		return nil, &CorruptFragmentError{Addr: addr, Reason: "short payload"}
	}

	raw, err := snappy.Decode(nil, payload)
	if err != nil {
		return nil, &CorruptFragmentError{Addr: addr, Reason: "decompression failed"}
	}
	if uint64(len(raw)) != rawSize {
		return nil, &CorruptFragmentError{Addr: addr, Reason: "raw size mismatch"}
	}
	if hash.Of(raw) != addr {
		return nil, &CorruptFragmentError{Addr: addr, Reason: "digest mismatch"}
	}

	psch, ops, err := decodePayload(raw)
	if err != nil {
		return nil, &CorruptFragmentError{Addr: addr, Reason: err.Error()}
	}
	if !psch.Equal(sch) {
		return nil, &CorruptFragmentError{Addr: addr, Reason: "envelope schema disagrees with payload"}
	}
	if uint64(len(ops)) != rowCount {
		return nil, &CorruptFragmentError{Addr: addr, Reason: "envelope row count disagrees with payload"}
	}
	if !boundsEqual(bounds, computeBounds(sch, ops)) {
		return nil, &CorruptFragmentError{Addr: addr, Reason: "envelope bounds disagree with payload"}
	}

	return &Fragment{
		addr:     addr,
		schema:   sch,
		bounds:   bounds,
		rowCount: rowCount,
		rawSize:  rawSize,
		payload:  payload,
	}, nil
}

func boundsEqual(a, b []ColumnBounds) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Defined != b[i].Defined {
			return false
		}
		if !a[i].Defined {
			continue
		}
		if CompareValues(a[i].Min, b[i].Min) != 0 || CompareValues(a[i].Max, b[i].Max) != 0 {
			return false
		}
	}
	return true
}

func writeSchema(w *binWriter, s Schema) {
	w.uvarint(uint64(len(s.Columns)))
	for _, c := range s.Columns {
		w.string(c.Name)
		w.byteVal(byte(c.Type))
		if c.Key {
			w.byteVal(1)
		} else {
			w.byteVal(0)
		}
	}
}

func readSchema(r *binReader) (Schema, error) {
	n, err := r.uvarint()
	if err != nil {
		return Schema{}, err
	}
	cols := make([]Column, n)
	for i := range cols {
		name, err := r.string()
		if err != nil {
			return Schema{}, err
		}
		typ, err := r.byteVal()
		if err != nil {
			return Schema{}, err
		}
		key, err := r.byteVal()
		if err != nil {
			return Schema{}, err
		}
		cols[i] = Column{Name: name, Type: Type(typ), Key: key == 1}
	}
	return Schema{Columns: cols}, nil
}

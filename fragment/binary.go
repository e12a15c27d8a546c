// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

package fragment

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
)

// Hand-rolled tagged binary framing. The fragment address is a pure function
// of these bytes, so the encoding must be fully deterministic: varint sizes,
// explicit field order, no map iteration anywhere near a writer.

const (
	tagNull byte = iota
	tagBool
	tagInt
	tagFloat
	tagString
	tagBytes
)

type binWriter struct {
	buf bytes.Buffer
	tmp [binary.MaxVarintLen64]byte
}

func (w *binWriter) uvarint(v uint64) {
	n := binary.PutUvarint(w.tmp[:], v)
	w.buf.Write(w.tmp[:n])
}

func (w *binWriter) varint(v int64) {
	n := binary.PutVarint(w.tmp[:], v)
	w.buf.Write(w.tmp[:n])
}

func (w *binWriter) byteVal(b byte) {
	w.buf.WriteByte(b)
}

func (w *binWriter) bytes(b []byte) {
	w.uvarint(uint64(len(b)))
	w.buf.Write(b)
}

func (w *binWriter) string(s string) {
	w.uvarint(uint64(len(s)))
	w.buf.WriteString(s)
}

func (w *binWriter) value(v Value) {
	switch tv := v.(type) {
	case nil:
		w.byteVal(tagNull)
	case bool:
		w.byteVal(tagBool)
		if tv {
			w.byteVal(1)
		} else {
			w.byteVal(0)
		}
	case int64:
		w.byteVal(tagInt)
		w.varint(tv)
	case float64:
		w.byteVal(tagFloat)
		var raw [8]byte
		binary.BigEndian.PutUint64(raw[:], math.Float64bits(tv))
		w.buf.Write(raw[:])
	case string:
		w.byteVal(tagString)
		w.string(tv)
	case []byte:
		w.byteVal(tagBytes)
		w.bytes(tv)
	default:
		panic("fragment: unencodable value")
	}
}

func (w *binWriter) data() []byte {
	return w.buf.Bytes()
}

// EncodeTuple serializes a value tuple with the fragment framing. Values are
// tagged and length-prefixed, so distinct tuples never produce equal bytes;
// callers use the result as a map key for row keys.
func EncodeTuple(vals []Value) []byte {
	w := &binWriter{}
	for _, v := range vals {
		w.value(v)
	}
	return w.data()
}

type binReader struct {
	r *bytes.Reader
}

func newBinReader(data []byte) *binReader {
	return &binReader{r: bytes.NewReader(data)}
}

func (r *binReader) uvarint() (uint64, error) {
	return binary.ReadUvarint(r.r)
}

func (r *binReader) varint() (int64, error) {
	return binary.ReadVarint(r.r)
}

func (r *binReader) byteVal() (byte, error) {
	return r.r.ReadByte()
}

func (r *binReader) bytes() ([]byte, error) {
	n, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	if n > uint64(r.r.Len()) {
		return nil, io.ErrUnexpectedEOF
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(r.r, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *binReader) string() (string, error) {
	b, err := r.bytes()
	return string(b), err
}

func (r *binReader) value() (Value, error) {
	tag, err := r.byteVal()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagNull:
		return nil, nil
	case tagBool:
		b, err := r.byteVal()
		if err != nil {
			return nil, err
		}
		return b != 0, nil
	case tagInt:
		return r.varint()
	case tagFloat:
		var raw [8]byte
		if _, err := io.ReadFull(r.r, raw[:]); err != nil {
			return nil, err
		}
		return math.Float64frombits(binary.BigEndian.Uint64(raw[:])), nil
	case tagString:
		return r.string()
	case tagBytes:
		return r.bytes()
	}
	return nil, io.ErrUnexpectedEOF
}

func (r *binReader) remaining() int {
	return r.r.Len()
}

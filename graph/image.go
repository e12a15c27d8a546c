// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

package graph

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/strata-db/strata/hash"
)

// Meta is the human-facing commit metadata folded into the image id.
type Meta struct {
	Author    string
	Message   string
	CreatedAt time.Time
}

// Image is one immutable commit: parent edges plus, per table, the ordered
// fragment list (the table's layer stack). Replay order within a list is
// significant and preserved exactly as recorded.
type Image struct {
	ID      hash.Hash
	Parents []hash.Hash
	Tables  map[string]hash.HashSlice
	Meta    Meta

	// Height is 1 for roots, 1 + max parent height otherwise. Stored so
	// ancestor traversal can order by generation without walking first.
	Height uint64
}

// IsRoot reports whether the image has no parents.
func (img *Image) IsRoot() bool {
	return len(img.Parents) == 0
}

// IsMerge reports whether the image has more than one parent.
func (img *Image) IsMerge() bool {
	return len(img.Parents) > 1
}

// TableNames returns the image's table names in sorted order.
func (img *Image) TableNames() []string {
	names := make([]string, 0, len(img.Tables))
	for name := range img.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FragmentSet returns every fragment address the image references, across
// all tables.
func (img *Image) FragmentSet() hash.HashSet {
	out := hash.HashSet{}
	for _, layers := range img.Tables {
		for _, h := range layers {
			out.Insert(h)
		}
	}
	return out
}

const imageFormatVersion = 1

// identityBytes is the canonical encoding the image id is computed over:
// parents in commit order, tables sorted by name with their layer lists in
// replay order, then author/message/timestamp. Height is derived and
// excluded.
func identityBytes(parents []hash.Hash, tables map[string]hash.HashSlice, meta Meta) []byte {
	buf := &bytes.Buffer{}
	writeUvarint(buf, uint64(len(parents)))
	for _, p := range parents {
		buf.Write(p[:])
	}
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)
	writeUvarint(buf, uint64(len(names)))
	for _, name := range names {
		writeString(buf, name)
		layers := tables[name]
		writeUvarint(buf, uint64(len(layers)))
		for _, h := range layers {
			buf.Write(h[:])
		}
	}
	writeString(buf, meta.Author)
	writeString(buf, meta.Message)
	writeUvarint(buf, uint64(meta.CreatedAt.UnixNano()))
	return buf.Bytes()
}

func encodeImage(img *Image) []byte {
	buf := &bytes.Buffer{}
	buf.WriteByte(imageFormatVersion)
	writeUvarint(buf, img.Height)
	buf.Write(identityBytes(img.Parents, img.Tables, img.Meta))
	return buf.Bytes()
}

func decodeImage(id hash.Hash, data []byte) (*Image, error) {
	r := bytes.NewReader(data)
	ver, err := r.ReadByte()
	if err != nil || ver != imageFormatVersion {
		return nil, fmt.Errorf("graph: bad image record version for %s", id)
	}
	img := &Image{ID: id, Tables: map[string]hash.HashSlice{}}
	if img.Height, err = binary.ReadUvarint(r); err != nil {
		return nil, err
	}
	np, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	img.Parents = make([]hash.Hash, np)
	for i := range img.Parents {
		if img.Parents[i], err = readHash(r); err != nil {
			return nil, err
		}
	}
	nt, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < nt; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		nl, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		layers := make(hash.HashSlice, nl)
		for j := range layers {
			if layers[j], err = readHash(r); err != nil {
				return nil, err
			}
		}
		img.Tables[name] = layers
	}
	if img.Meta.Author, err = readString(r); err != nil {
		return nil, err
	}
	if img.Meta.Message, err = readString(r); err != nil {
		return nil, err
	}
	ns, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	img.Meta.CreatedAt = time.Unix(0, int64(ns)).UTC()
	return img, nil
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func writeString(buf *bytes.Buffer, s string) {
	writeUvarint(buf, uint64(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return "", err
	}
	if n > uint64(r.Len()) {
		return "", io.ErrUnexpectedEOF
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return "", err
	}
	return string(out), nil
}

func readHash(r *bytes.Reader) (hash.Hash, error) {
	var raw [hash.ByteLen]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return hash.Hash{}, err
	}
	return hash.Hash(raw), nil
}

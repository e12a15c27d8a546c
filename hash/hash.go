// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

// Package hash defines the fixed-width content addresses used throughout
// strata. An address is the first 20 bytes of the SHA-512 digest of an
// object's canonical serialization, rendered as 32 base32 characters.
package hash

import (
	"crypto/sha512"
	"fmt"
	"regexp"
)

const (
	// ByteLen is the number of bytes in an address.
	ByteLen = 20

	// StringLen is the number of characters in an address's string form.
	StringLen = 32 // 20 * 8 / 5
)

var pattern = regexp.MustCompile(fmt.Sprintf("^([0-9a-v]{%d})$", StringLen))

// Hash is a fragment or image address. The zero value is the empty address,
// which addresses nothing.
type Hash [ByteLen]byte

var emptyHash = Hash{}

// IsEmpty reports whether h is the zero address.
func (h Hash) IsEmpty() bool {
	return h == emptyHash
}

func (h Hash) String() string {
	return encode(h[:])
}

// Less compares addresses bytewise. Called on hot paths, so it avoids
// allocating.
func (h Hash) Less(other Hash) bool {
	for i := 0; i < ByteLen; i++ {
		if h[i] < other[i] {
			return true
		} else if h[i] > other[i] {
			return false
		}
	}
	return false
}

// Of returns the address of data: a truncated SHA-512 digest.
func Of(data []byte) Hash {
	sum := sha512.Sum512(data)
	h := Hash{}
	copy(h[:], sum[:ByteLen])
	return h
}

// New creates an address from a raw digest slice, which must be ByteLen long.
func New(data []byte) Hash {
	if len(data) != ByteLen {
		panic(fmt.Sprintf("hash: need %d bytes, got %d", ByteLen, len(data)))
	}
	h := Hash{}
	copy(h[:], data)
	return h
}

// MaybeParse parses the string form of an address, reporting whether it was
// well formed.
func MaybeParse(s string) (Hash, bool) {
	match := pattern.FindStringSubmatch(s)
	if match == nil {
		return emptyHash, false
	}
	return New(decode(s)), true
}

// Parse parses the string form of an address and panics if it is not well
// formed. Use MaybeParse for untrusted input.
func Parse(s string) Hash {
	r, ok := MaybeParse(s)
	if !ok {
		panic(fmt.Sprintf("hash: could not parse %q", s))
	}
	return r
}

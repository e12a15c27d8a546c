// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOfIsDeterministic(t *testing.T) {
	assert := assert.New(t)

	h1 := Of([]byte("abc"))
	h2 := Of([]byte("abc"))
	h3 := Of([]byte("abd"))
	assert.Equal(h1, h2)
	assert.NotEqual(h1, h3)
	assert.False(h1.IsEmpty())
	assert.True(Hash{}.IsEmpty())
}

func TestStringRoundTrip(t *testing.T) {
	assert := assert.New(t)

	h := Of([]byte("hello"))
	s := h.String()
	assert.Len(s, StringLen)
	assert.Equal(h, Parse(s))

	_, ok := MaybeParse("not a hash")
	assert.False(ok)
	_, ok = MaybeParse(s[:StringLen-1])
	assert.False(ok)
}

func TestParsePanicsOnGarbage(t *testing.T) {
	assert.Panics(t, func() {
		Parse("wxyz")
	})
}

func TestLessMatchesStringOrder(t *testing.T) {
	assert := assert.New(t)

	a, b := Of([]byte("a")), Of([]byte("b"))
	if b.Less(a) {
		a, b = b, a
	}
	assert.True(a.Less(b))
	assert.False(b.Less(a))
	assert.False(a.Less(a))
	assert.True(a.String() < b.String())
}

func TestHashSetOps(t *testing.T) {
	assert := assert.New(t)

	a, b, c := Of([]byte("a")), Of([]byte("b")), Of([]byte("c"))
	s := NewHashSet(a, b)
	assert.True(s.Has(a))
	assert.False(s.Has(c))
	assert.Equal(2, s.Size())

	d := s.Diff(NewHashSet(b, c))
	assert.Equal(NewHashSet(a), d)

	s.InsertAll(NewHashSet(c))
	assert.Equal(3, s.Size())

	sorted := s.Sorted()
	assert.Len(sorted, 3)
	for i := 1; i < len(sorted); i++ {
		assert.True(sorted[i-1].Less(sorted[i]))
	}
}

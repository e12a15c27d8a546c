// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-db/strata/fragment"
	"github.com/strata-db/strata/hash"
)

func testFragment(t *testing.T, n int64) *fragment.Fragment {
	t.Helper()
	s := fragment.NewSchema(
		fragment.Column{Name: "id", Type: fragment.IntType, Key: true},
		fragment.Column{Name: "v", Type: fragment.StringType},
	)
	f, err := fragment.Encode(s, []fragment.RowOp{fragment.Insert(n, fmt.Sprintf("v%d", n))})
	require.NoError(t, err)
	return f
}

func eachStore(t *testing.T, test func(t *testing.T, fs FragmentStore)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		test(t, NewMemoryStore())
	})
	t.Run("leveldb", func(t *testing.T) {
		fs, err := NewLevelDBStore(t.TempDir())
		require.NoError(t, err)
		defer fs.Close()
		test(t, fs)
	})
	t.Run("caching", func(t *testing.T) {
		fs, err := NewCachingStore(NewMemoryStore(), 16)
		require.NoError(t, err)
		test(t, fs)
	})
}

func TestPutGetHas(t *testing.T) {
	eachStore(t, func(t *testing.T, fs FragmentStore) {
		require := require.New(t)
		ctx := context.Background()

		f := testFragment(t, 1)
		h, err := fs.Put(ctx, f)
		require.NoError(err)
		require.Equal(f.Address(), h)

		got, err := fs.Get(ctx, h)
		require.NoError(err)
		require.Equal(f.Address(), got.Address())
		require.Equal(f.RowCount(), got.RowCount())

		ok, err := fs.Has(ctx, h)
		require.NoError(err)
		require.True(ok)

		missing := hash.Of([]byte("missing"))
		ok, err = fs.Has(ctx, missing)
		require.NoError(err)
		require.False(ok)

		_, err = fs.Get(ctx, missing)
		require.Error(err)
		require.True(IsNotFound(err))
	})
}

func TestPutIsIdempotent(t *testing.T) {
	eachStore(t, func(t *testing.T, fs FragmentStore) {
		require := require.New(t)
		ctx := context.Background()

		f := testFragment(t, 7)
		_, err := fs.Put(ctx, f)
		require.NoError(err)
		_, err = fs.Put(ctx, f)
		require.NoError(err)

		addrs, err := fs.Addresses(ctx)
		require.NoError(err)
		require.Equal(1, addrs.Size())
	})
}

func TestHasMany(t *testing.T) {
	eachStore(t, func(t *testing.T, fs FragmentStore) {
		require := require.New(t)
		ctx := context.Background()

		f1, f2 := testFragment(t, 1), testFragment(t, 2)
		_, err := fs.Put(ctx, f1)
		require.NoError(err)

		missing := hash.Of([]byte("nope"))
		absent, err := fs.HasMany(ctx, hash.NewHashSet(f1.Address(), f2.Address(), missing))
		require.NoError(err)
		require.Equal(hash.NewHashSet(f2.Address(), missing), absent)
	})
}

func TestAddressesInventory(t *testing.T) {
	eachStore(t, func(t *testing.T, fs FragmentStore) {
		require := require.New(t)
		ctx := context.Background()

		want := hash.HashSet{}
		for i := int64(0); i < 10; i++ {
			f := testFragment(t, i)
			_, err := fs.Put(ctx, f)
			require.NoError(err)
			want.Insert(f.Address())
		}
		got, err := fs.Addresses(ctx)
		require.NoError(err)
		require.Equal(want, got)
	})
}

func TestEvict(t *testing.T) {
	eachStore(t, func(t *testing.T, fs FragmentStore) {
		require := require.New(t)
		ctx := context.Background()

		f := testFragment(t, 3)
		h, err := fs.Put(ctx, f)
		require.NoError(err)

		ev, ok := fs.(Evicter)
		require.True(ok)
		require.NoError(ev.Evict(ctx, h))

		has, err := fs.Has(ctx, h)
		require.NoError(err)
		require.False(has)
	})
}

func TestLevelDBSurvivesReopen(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	dir := t.TempDir()

	fs, err := NewLevelDBStore(dir)
	require.NoError(err)
	f := testFragment(t, 42)
	_, err = fs.Put(ctx, f)
	require.NoError(err)
	require.NoError(fs.Close())

	fs, err = NewLevelDBStore(dir)
	require.NoError(err)
	defer fs.Close()

	got, err := fs.Get(ctx, f.Address())
	require.NoError(err)
	require.Equal(f.Address(), got.Address())
}

func TestCachingStoreServesFromCache(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	backing := NewMemoryStore()
	cs, err := NewCachingStore(backing, 4)
	require.NoError(err)

	f := testFragment(t, 5)
	h, err := cs.Put(ctx, f)
	require.NoError(err)

	// Remove from the backing store behind the cache's back; the cache
	// should still serve the fragment.
	require.NoError(backing.Evict(ctx, h))
	got, err := cs.Get(ctx, h)
	require.NoError(err)
	require.Equal(h, got.Address())

	ok, err := cs.Has(ctx, h)
	require.NoError(err)
	assert.True(t, ok)
}

// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-db/strata/fragment"
	"github.com/strata-db/strata/hash"
	"github.com/strata-db/strata/store"
)

// memTransport is an in-memory remote, optionally failing the first
// failures[addr] attempts per address.
type memTransport struct {
	mu       gosync.Mutex
	blobs    map[hash.Hash][]byte
	failures map[hash.Hash]int
	attempts map[hash.Hash]int
}

func newMemTransport() *memTransport {
	return &memTransport{
		blobs:    map[hash.Hash][]byte{},
		failures: map[hash.Hash]int{},
		attempts: map[hash.Hash]int{},
	}
}

func (t *memTransport) failNext(addr hash.Hash, times int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures[addr] = times
}

func (t *memTransport) tryFail(addr hash.Hash) error {
	t.attempts[addr]++
	if t.failures[addr] > 0 {
		t.failures[addr]--
		return fmt.Errorf("transient failure for %s", addr)
	}
	return nil
}

func (t *memTransport) Upload(_ context.Context, addr hash.Hash, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.tryFail(addr); err != nil {
		return err
	}
	t.blobs[addr] = append([]byte{}, data...)
	return nil
}

func (t *memTransport) Download(_ context.Context, addr hash.Hash) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.tryFail(addr); err != nil {
		return nil, err
	}
	data, ok := t.blobs[addr]
	if !ok {
		return nil, fmt.Errorf("no blob %s", addr)
	}
	return data, nil
}

func (t *memTransport) Exists(_ context.Context, addr hash.Hash) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.blobs[addr]
	return ok, nil
}

func testFragments(t *testing.T, fs *store.MemoryStore, n int) hash.HashSlice {
	t.Helper()
	s := fragment.NewSchema(
		fragment.Column{Name: "id", Type: fragment.IntType, Key: true},
		fragment.Column{Name: "v", Type: fragment.StringType},
	)
	out := make(hash.HashSlice, n)
	for i := range out {
		f, err := fragment.Encode(s, []fragment.RowOp{
			fragment.Insert(int64(i), fmt.Sprintf("row-%d", i)),
		})
		require.NoError(t, err)
		addr, err := fs.Put(context.Background(), f)
		require.NoError(t, err)
		out[i] = addr
	}
	return out
}

func TestExecutePushAndPull(t *testing.T) {
	ctx := context.Background()
	local := store.NewMemoryStore()
	remote := newMemTransport()

	localAddrs := testFragments(t, local, 3)

	// Seed the remote with fragments the local store lacks.
	seed := store.NewMemoryStore()
	remoteAddrs := testFragments(t, seed, 5)[3:]
	for _, addr := range remoteAddrs {
		f, err := seed.Get(ctx, addr)
		require.NoError(t, err)
		remote.blobs[addr] = f.MarshalBinary()
	}

	remoteInv := remoteAddrs.HashSet()
	localInv, err := local.Addresses(ctx)
	require.NoError(t, err)

	plan := PlanSync(localInv, remoteInv)
	syncer := NewSyncer(local, remote, Options{}, nil)
	res, err := syncer.Execute(ctx, plan)
	require.NoError(t, err)

	assert.False(t, res.Partial())
	assert.Equal(t, 3, res.Pushed)
	assert.Equal(t, 2, res.Pulled)
	assert.NotZero(t, res.BytesPushed)

	for _, addr := range localAddrs {
		_, ok := remote.blobs[addr]
		assert.True(t, ok, "pushed %s", addr)
	}
	for _, addr := range remoteAddrs {
		ok, err := local.Has(ctx, addr)
		require.NoError(t, err)
		assert.True(t, ok, "pulled %s", addr)
	}
}

func TestExecuteRetriesTransientFailures(t *testing.T) {
	ctx := context.Background()
	local := store.NewMemoryStore()
	remote := newMemTransport()
	addrs := testFragments(t, local, 1)

	// Two failures fit inside the bound of three retries.
	remote.failNext(addrs[0], 2)

	syncer := NewSyncer(local, remote, Options{MaxRetries: 3}, nil)
	res, err := syncer.Execute(ctx, Plan{ToPush: addrs.HashSet(), ToPull: hash.HashSet{}})
	require.NoError(t, err)
	assert.False(t, res.Partial())
	assert.Equal(t, 1, res.Pushed)
	assert.Equal(t, 3, remote.attempts[addrs[0]])
}

func TestExecuteReportsPartialFailure(t *testing.T) {
	ctx := context.Background()
	local := store.NewMemoryStore()
	remote := newMemTransport()
	addrs := testFragments(t, local, 3)

	// More failures than attempts; this address alone must be reported.
	remote.failNext(addrs[1], 100)

	syncer := NewSyncer(local, remote, Options{MaxRetries: 2}, nil)
	res, err := syncer.Execute(ctx, Plan{ToPush: addrs.HashSet(), ToPull: hash.HashSet{}})
	require.NoError(t, err)

	assert.True(t, res.Partial())
	assert.Equal(t, 2, res.Pushed)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, addrs[1], res.Failed[0].Addr)
	assert.Equal(t, Push, res.Failed[0].Direction)

	// The other transfers completed and stay completed.
	_, ok0 := remote.blobs[addrs[0]]
	_, ok2 := remote.blobs[addrs[2]]
	assert.True(t, ok0)
	assert.True(t, ok2)
}

func TestPullRejectsCorruptPayload(t *testing.T) {
	ctx := context.Background()
	local := store.NewMemoryStore()
	remote := newMemTransport()

	addr := hash.Of([]byte("bogus"))
	remote.blobs[addr] = []byte("not a fragment record")

	syncer := NewSyncer(local, remote, Options{}, nil)
	res, err := syncer.Execute(ctx, Plan{ToPush: hash.HashSet{}, ToPull: hash.HashSlice{addr}.HashSet()})
	require.NoError(t, err)

	require.Len(t, res.Failed, 1)
	assert.Equal(t, Pull, res.Failed[0].Direction)
	ok, err := local.Has(ctx, addr)
	require.NoError(t, err)
	assert.False(t, ok, "corrupt payload must not enter the store")
}

func TestPullRejectsWrongAddress(t *testing.T) {
	ctx := context.Background()
	local := store.NewMemoryStore()
	remote := newMemTransport()

	seed := store.NewMemoryStore()
	real := testFragments(t, seed, 1)[0]
	f, err := seed.Get(ctx, real)
	require.NoError(t, err)

	// A valid record served under someone else's address.
	wrong := hash.Of([]byte("other"))
	remote.blobs[wrong] = f.MarshalBinary()

	syncer := NewSyncer(local, remote, Options{}, nil)
	res, err := syncer.Execute(ctx, Plan{ToPush: hash.HashSet{}, ToPull: hash.HashSlice{wrong}.HashSet()})
	require.NoError(t, err)
	require.Len(t, res.Failed, 1)
	assert.True(t, fragment.IsCorrupt(res.Failed[0].Cause))
}

func TestExecuteEmptyPlan(t *testing.T) {
	syncer := NewSyncer(store.NewMemoryStore(), newMemTransport(), Options{}, nil)
	res, err := syncer.Execute(context.Background(), Plan{ToPush: hash.HashSet{}, ToPull: hash.HashSet{}})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Pushed)
	assert.Equal(t, 0, res.Pulled)
	assert.False(t, res.Partial())
}

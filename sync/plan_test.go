// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

package sync

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/strata-db/strata/hash"
)

func addrs(n int) hash.HashSlice {
	out := make(hash.HashSlice, n)
	for i := range out {
		out[i] = hash.Of([]byte(fmt.Sprintf("addr-%d", i)))
	}
	return out
}

func TestPlanSyncSetDifference(t *testing.T) {
	a := addrs(5)
	local := hash.HashSlice{a[0], a[1], a[2]}.HashSet()
	remote := hash.HashSlice{a[2], a[3], a[4]}.HashSet()

	plan := PlanSync(local, remote)
	assert.Equal(t, hash.HashSlice{a[0], a[1]}.HashSet(), plan.ToPush)
	assert.Equal(t, hash.HashSlice{a[3], a[4]}.HashSet(), plan.ToPull)
}

func TestPlanSyncDisjoint(t *testing.T) {
	a := addrs(6)
	local := hash.HashSlice{a[0], a[1], a[2], a[3]}.HashSet()
	remote := hash.HashSlice{a[2], a[3], a[4], a[5]}.HashSet()

	plan := PlanSync(local, remote)
	for h := range plan.ToPush {
		assert.False(t, plan.ToPull.Has(h))
	}
}

func TestPlanSyncConvergesOnUnion(t *testing.T) {
	a := addrs(4)
	local := hash.HashSlice{a[0], a[1]}.HashSet()
	remote := hash.HashSlice{a[1], a[2], a[3]}.HashSet()

	plan := PlanSync(local, remote)

	afterLocal := local.Copy()
	afterLocal.InsertAll(plan.ToPull)
	afterRemote := remote.Copy()
	afterRemote.InsertAll(plan.ToPush)

	union := local.Copy()
	union.InsertAll(remote)
	assert.Equal(t, union, afterLocal)
	assert.Equal(t, union, afterRemote)
}

func TestPlanSyncIdenticalInventoriesEmpty(t *testing.T) {
	a := addrs(3)
	inv := a.HashSet()
	plan := PlanSync(inv, inv.Copy())
	assert.True(t, plan.Empty())
}

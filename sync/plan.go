// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

// Package sync reconciles fragment inventories between a local store and a
// remote. Planning is a pure address-set difference; content is never
// inspected, because equal addresses imply equal content.
package sync

import "github.com/strata-db/strata/hash"

// Plan is the transfer work for one sync session.
type Plan struct {
	ToPush hash.HashSet
	ToPull hash.HashSet
}

// PlanSync computes ToPush = local − remote and ToPull = remote − local. The
// two sets are disjoint by construction; executing the plan converges both
// inventories on the union.
func PlanSync(local, remote hash.HashSet) Plan {
	return Plan{
		ToPush: local.Diff(remote),
		ToPull: remote.Diff(local),
	}
}

// Empty reports whether the plan requires no transfers.
func (p Plan) Empty() bool {
	return p.ToPush.Size() == 0 && p.ToPull.Size() == 0
}

// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

package sync

import (
	"context"

	"github.com/strata-db/strata/hash"
)

// Transport moves fragment records, addressed by digest, to and from a
// remote blob store. Payloads are the fragment wire envelope; the syncer
// verifies digests on receipt, so a transport only has to move bytes.
type Transport interface {
	Upload(ctx context.Context, addr hash.Hash, data []byte) error
	Download(ctx context.Context, addr hash.Hash) ([]byte, error)
	Exists(ctx context.Context, addr hash.Hash) (bool, error)
}

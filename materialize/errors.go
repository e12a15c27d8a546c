// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

package materialize

import (
	"errors"
	"fmt"
	"strings"

	"github.com/strata-db/strata/hash"
)

// MissingFragmentError reports listed fragments absent from the local store.
// It signals store/registry desync and is propagated, never retried or
// skipped here: skipping would silently corrupt the materialized row set.
type MissingFragmentError struct {
	Image hash.Hash
	Table string
	Addrs hash.HashSlice
}

func (e *MissingFragmentError) Error() string {
	strs := make([]string, len(e.Addrs))
	for i, h := range e.Addrs {
		strs[i] = h.String()
	}
	return fmt.Sprintf("missing fragments for table %q at image %s: [%s]",
		e.Table, e.Image, strings.Join(strs, ", "))
}

// UnknownTableError reports a table name the image does not track.
type UnknownTableError struct {
	Image hash.Hash
	Table string
}

func (e *UnknownTableError) Error() string {
	return fmt.Sprintf("image %s has no table %q", e.Image, e.Table)
}

func IsMissingFragment(err error) bool {
	var mf *MissingFragmentError
	return errors.As(err, &mf)
}

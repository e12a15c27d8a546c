// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

package fragment

import (
	"errors"
	"fmt"

	"github.com/strata-db/strata/hash"
)

// SchemaMismatchError reports a row operation whose shape disagrees with the
// declared table schema, including within-delta key collisions.
type SchemaMismatchError struct {
	Reason string
}

func (e *SchemaMismatchError) Error() string {
	return "schema mismatch: " + e.Reason
}

// CorruptFragmentError reports a fragment whose payload failed decompression
// or digest verification.
type CorruptFragmentError struct {
	Addr   hash.Hash
	Reason string
}

func (e *CorruptFragmentError) Error() string {
	if e.Addr.IsEmpty() {
		return "corrupt fragment: " + e.Reason
	}
	return fmt.Sprintf("corrupt fragment %s: %s", e.Addr, e.Reason)
}

func IsSchemaMismatch(err error) bool {
	var sm *SchemaMismatchError
	return errors.As(err, &sm)
}

func IsCorrupt(err error) bool {
	var cf *CorruptFragmentError
	return errors.As(err, &cf)
}

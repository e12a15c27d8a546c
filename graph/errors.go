// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/strata-db/strata/hash"
)

// UnknownParentError reports a commit naming a parent absent from the graph.
type UnknownParentError struct {
	ID hash.Hash
}

func (e *UnknownParentError) Error() string {
	return fmt.Sprintf("unknown parent image %s", e.ID)
}

// UnknownRefError reports a ref that resolves to nothing.
type UnknownRefError struct {
	Ref string
}

func (e *UnknownRefError) Error() string {
	return fmt.Sprintf("unknown ref %q", e.Ref)
}

// AmbiguousRefError reports a prefix matching more than one image.
type AmbiguousRefError struct {
	Ref     string
	Matches hash.HashSlice
}

func (e *AmbiguousRefError) Error() string {
	strs := make([]string, len(e.Matches))
	for i, h := range e.Matches {
		strs[i] = h.String()
	}
	return fmt.Sprintf("ambiguous ref %q matches [%s]", e.Ref, strings.Join(strs, ", "))
}

// ConcurrentCommitError reports a head-CAS failure: another writer moved the
// tag between the caller's read and its commit. The caller should rebase
// onto Actual and retry.
type ConcurrentCommitError struct {
	Tag      string
	Expected hash.Hash
	Actual   hash.Hash
}

func (e *ConcurrentCommitError) Error() string {
	return fmt.Sprintf("concurrent commit on %q: expected head %s, found %s", e.Tag, e.Expected, e.Actual)
}

// InvalidCommitError reports a structurally malformed commit request.
type InvalidCommitError struct {
	Reason string
}

func (e *InvalidCommitError) Error() string {
	return "invalid commit: " + e.Reason
}

// ErrHasChildren is returned by Delete for images that other images descend
// from; deleting them would orphan part of the graph.
var ErrHasChildren = errors.New("graph: image has children")

func IsUnknownRef(err error) bool {
	var ur *UnknownRefError
	return errors.As(err, &ur)
}

func IsAmbiguousRef(err error) bool {
	var ar *AmbiguousRefError
	return errors.As(err, &ar)
}

func IsUnknownParent(err error) bool {
	var up *UnknownParentError
	return errors.As(err, &up)
}

func IsConcurrentCommit(err error) bool {
	var cc *ConcurrentCommitError
	return errors.As(err, &cc)
}

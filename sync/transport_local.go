// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

package sync

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/strata-db/strata/hash"
)

// LocalTransport stores fragment records as files under a directory, one
// file per address. Uploads write a temp file and rename into place, so a
// crashed upload never leaves a truncated record at its final name.
type LocalTransport struct {
	dir string
}

var _ Transport = (*LocalTransport)(nil)

func NewLocalTransport(dir string) (*LocalTransport, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "sync: create transport dir")
	}
	return &LocalTransport{dir: dir}, nil
}

func (t *LocalTransport) path(addr hash.Hash) string {
	return filepath.Join(t.dir, addr.String())
}

func (t *LocalTransport) Upload(ctx context.Context, addr hash.Hash, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(t.dir, "upload-*")
	if err != nil {
		return errors.Wrap(err, "sync: create temp")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "sync: write temp")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "sync: close temp")
	}
	return errors.Wrap(os.Rename(tmp.Name(), t.path(addr)), "sync: rename")
}

func (t *LocalTransport) Download(ctx context.Context, addr hash.Hash) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(t.path(addr))
	return data, errors.Wrapf(err, "sync: read %s", addr)
}

func (t *LocalTransport) Exists(ctx context.Context, addr hash.Hash) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(t.path(addr))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Wrapf(err, "sync: stat %s", addr)
}

// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

package sync

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/strata-db/strata/hash"
)

// HTTPTransport speaks a plain blob protocol: PUT, GET and HEAD on
// <base>/fragment/<address>.
type HTTPTransport struct {
	base   string
	client *http.Client
}

var _ Transport = (*HTTPTransport)(nil)

func NewHTTPTransport(base string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{base: strings.TrimRight(base, "/"), client: client}
}

func (t *HTTPTransport) url(addr hash.Hash) string {
	return t.base + "/fragment/" + addr.String()
}

func (t *HTTPTransport) Upload(ctx context.Context, addr hash.Hash, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, t.url(addr), bytes.NewReader(data))
	if err != nil {
		return errors.Wrap(err, "sync: build upload request")
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	resp, err := t.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "sync: upload %s", addr)
	}
	defer drain(resp)
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("sync: upload %s: remote returned %s", addr, resp.Status)
	}
	return nil
}

func (t *HTTPTransport) Download(ctx context.Context, addr hash.Hash) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url(addr), nil)
	if err != nil {
		return nil, errors.Wrap(err, "sync: build download request")
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "sync: download %s", addr)
	}
	defer drain(resp)
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("sync: download %s: remote returned %s", addr, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	return data, errors.Wrapf(err, "sync: read body for %s", addr)
}

func (t *HTTPTransport) Exists(ctx context.Context, addr hash.Hash) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, t.url(addr), nil)
	if err != nil {
		return false, errors.Wrap(err, "sync: build head request")
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return false, errors.Wrapf(err, "sync: head %s", addr)
	}
	defer drain(resp)
	switch {
	case resp.StatusCode/100 == 2:
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	}
	return false, fmt.Errorf("sync: head %s: remote returned %s", addr, resp.Status)
}

// drain empties and closes the body so the connection can be reused.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

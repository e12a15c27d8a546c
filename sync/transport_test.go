// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

package sync

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	gosync "sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-db/strata/hash"
)

func transportRoundTrip(t *testing.T, tr Transport) {
	t.Helper()
	ctx := context.Background()
	addr := hash.Of([]byte("payload"))
	payload := []byte("payload bytes")

	ok, err := tr.Exists(ctx, addr)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, tr.Upload(ctx, addr, payload))

	ok, err = tr.Exists(ctx, addr)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := tr.Download(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestLocalTransport(t *testing.T) {
	tr, err := NewLocalTransport(t.TempDir())
	require.NoError(t, err)
	transportRoundTrip(t, tr)
}

func TestHTTPTransport(t *testing.T) {
	var mu gosync.Mutex
	blobs := map[string][]byte{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch r.Method {
		case http.MethodPut:
			data, _ := io.ReadAll(r.Body)
			blobs[r.URL.Path] = data
			w.WriteHeader(http.StatusCreated)
		case http.MethodGet:
			data, ok := blobs[r.URL.Path]
			if !ok {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write(data)
		case http.MethodHead:
			if _, ok := blobs[r.URL.Path]; !ok {
				http.NotFound(w, r)
				return
			}
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	transportRoundTrip(t, NewHTTPTransport(srv.URL, srv.Client()))
}

func TestHTTPTransportDownloadMissing(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	tr := NewHTTPTransport(srv.URL, srv.Client())
	_, err := tr.Download(context.Background(), hash.Of([]byte("missing")))
	assert.Error(t, err)
}

type fakeS3 struct {
	mu      gosync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[*in.Key]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func TestS3Transport(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	tr := newS3TransportWithClient(fake, "bucket", "fragments/")
	transportRoundTrip(t, tr)

	// Keys carry the configured prefix.
	addr := hash.Of([]byte("payload"))
	_, ok := fake.objects["fragments/"+addr.String()]
	assert.True(t, ok)
}

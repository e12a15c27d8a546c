// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

package sync

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/pkg/errors"

	"github.com/strata-db/strata/hash"
)

// s3API is the slice of the S3 client the transport needs; tests substitute
// a fake.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Transport keeps fragment records as objects under <prefix><address> in
// one bucket.
type S3Transport struct {
	client s3API
	bucket string
	prefix string
}

var _ Transport = (*S3Transport)(nil)

func NewS3Transport(cfg aws.Config, bucket, prefix string) *S3Transport {
	return &S3Transport{client: s3.NewFromConfig(cfg), bucket: bucket, prefix: prefix}
}

func newS3TransportWithClient(client s3API, bucket, prefix string) *S3Transport {
	return &S3Transport{client: client, bucket: bucket, prefix: prefix}
}

func (t *S3Transport) key(addr hash.Hash) string {
	return t.prefix + addr.String()
}

func (t *S3Transport) Upload(ctx context.Context, addr hash.Hash, data []byte) error {
	_, err := t.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(t.key(addr)),
		Body:   bytes.NewReader(data),
	})
	return errors.Wrapf(err, "sync: s3 put %s", addr)
}

func (t *S3Transport) Download(ctx context.Context, addr hash.Hash) ([]byte, error) {
	out, err := t.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(t.key(addr)),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "sync: s3 get %s", addr)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	return data, errors.Wrapf(err, "sync: s3 read %s", addr)
}

func (t *S3Transport) Exists(ctx context.Context, addr hash.Hash) (bool, error) {
	_, err := t.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(t.key(addr)),
	})
	if err == nil {
		return true, nil
	}
	var nf *types.NotFound
	if stderrors.As(err, &nf) {
		return false, nil
	}
	return false, errors.Wrapf(err, "sync: s3 head %s", addr)
}

// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

package sync

import (
	"context"
	"fmt"
	"sort"
	gosync "sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/strata-db/strata/fragment"
	"github.com/strata-db/strata/hash"
	"github.com/strata-db/strata/store"
)

const (
	defaultConcurrency = 8
	defaultMaxRetries  = 3
)

// Direction labels which way a transfer was moving when it failed.
type Direction int

const (
	Push Direction = iota
	Pull
)

func (d Direction) String() string {
	if d == Push {
		return "push"
	}
	return "pull"
}

// TransferFailure records one address whose transfer exhausted its retries.
type TransferFailure struct {
	Addr      hash.Hash
	Direction Direction
	Cause     error
}

func (f TransferFailure) Error() string {
	return fmt.Sprintf("%s of %s failed: %v", f.Direction, f.Addr, f.Cause)
}

// Result summarizes a sync session. Failed is non-empty on partial failure;
// transfers that completed before a failure stay completed.
type Result struct {
	Pushed      int
	Pulled      int
	BytesPushed uint64
	BytesPulled uint64
	Failed      []TransferFailure
}

func (r *Result) Partial() bool {
	return len(r.Failed) > 0
}

// Options tune a Syncer. Zero values take defaults.
type Options struct {
	// Concurrency bounds the number of in-flight transfers.
	Concurrency int
	// MaxRetries bounds per-address retry attempts after the first try.
	MaxRetries int
}

// Syncer executes plans against a transport. Transfers are independent, run
// in parallel, and fail independently: one address exhausting its retries
// never aborts the rest of the session.
type Syncer struct {
	store       store.FragmentStore
	transport   Transport
	logger      *zap.Logger
	concurrency int
	maxRetries  int
}

func NewSyncer(fs store.FragmentStore, t Transport, opts Options, logger *zap.Logger) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	return &Syncer{
		store:       fs,
		transport:   t,
		logger:      logger,
		concurrency: opts.Concurrency,
		maxRetries:  opts.MaxRetries,
	}
}

// Execute runs every transfer in the plan. The returned error is non-nil
// only for whole-session failures (context cancellation); per-address
// failures are reported in Result.Failed. Pulled fragments are verified
// against their address before entering the store, so a cancelled or
// partially failed session never leaves a corrupt fragment behind.
func (s *Syncer) Execute(ctx context.Context, plan Plan) (*Result, error) {
	session := uuid.NewString()
	logger := s.logger.With(zap.String("session", session))
	logger.Info("sync session starting",
		zap.Int("to_push", plan.ToPush.Size()),
		zap.Int("to_pull", plan.ToPull.Size()),
	)

	res := &Result{}
	var mu gosync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, addr := range plan.ToPush.Sorted() {
		addr := addr
		g.Go(func() error {
			n, err := s.push(gctx, addr)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				res.Failed = append(res.Failed, TransferFailure{Addr: addr, Direction: Push, Cause: err})
				return nil
			}
			res.Pushed++
			res.BytesPushed += n
			return nil
		})
	}
	for _, addr := range plan.ToPull.Sorted() {
		addr := addr
		g.Go(func() error {
			n, err := s.pull(gctx, addr)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				res.Failed = append(res.Failed, TransferFailure{Addr: addr, Direction: Pull, Cause: err})
				return nil
			}
			res.Pulled++
			res.BytesPulled += n
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return res, err
	}
	sort.Slice(res.Failed, func(i, j int) bool {
		return res.Failed[i].Addr.Less(res.Failed[j].Addr)
	})
	logger.Info("sync session finished",
		zap.Int("pushed", res.Pushed),
		zap.Int("pulled", res.Pulled),
		zap.String("bytes_pushed", humanize.Bytes(res.BytesPushed)),
		zap.String("bytes_pulled", humanize.Bytes(res.BytesPulled)),
		zap.Int("failed", len(res.Failed)),
	)
	return res, nil
}

func (s *Syncer) push(ctx context.Context, addr hash.Hash) (uint64, error) {
	f, err := s.store.Get(ctx, addr)
	if err != nil {
		return 0, err
	}
	data := f.MarshalBinary()
	err = s.retry(ctx, func() error {
		return s.transport.Upload(ctx, addr, data)
	})
	if err != nil {
		return 0, err
	}
	return uint64(len(data)), nil
}

func (s *Syncer) pull(ctx context.Context, addr hash.Hash) (uint64, error) {
	var data []byte
	err := s.retry(ctx, func() error {
		var derr error
		data, derr = s.transport.Download(ctx, addr)
		return derr
	})
	if err != nil {
		return 0, err
	}
	f, err := fragment.UnmarshalFragment(data)
	if err != nil {
		return 0, err
	}
	if f.Address() != addr {
		return 0, &fragment.CorruptFragmentError{Addr: addr, Reason: "remote returned fragment " + f.Address().String()}
	}
	if _, err := s.store.Put(ctx, f); err != nil {
		return 0, err
	}
	return uint64(len(data)), nil
}

// retry runs op with capped exponential backoff, up to maxRetries attempts
// beyond the first.
func (s *Syncer) retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.maxRetries)), ctx)
	return backoff.Retry(op, policy)
}

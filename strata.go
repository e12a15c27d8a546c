// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

// Package strata is a version-control engine for tabular data. Table history
// is decomposed into content-addressed, compressed fragments of row deltas;
// immutable images tie fragment lists into a commit DAG; any image can be
// replayed into a live relational table; and two stores reconcile by
// transferring only the fragments the other side lacks.
package strata

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/strata-db/strata/catalog"
	"github.com/strata-db/strata/config"
	"github.com/strata-db/strata/diff"
	"github.com/strata-db/strata/fragment"
	"github.com/strata-db/strata/graph"
	"github.com/strata-db/strata/hash"
	"github.com/strata-db/strata/materialize"
	"github.com/strata-db/strata/registry"
	"github.com/strata-db/strata/store"
	strasync "github.com/strata-db/strata/sync"
)

// Repository bundles the fragment store, commit graph and catalog behind one
// handle. It is the surface CLI and ingestion tooling build on.
type Repository struct {
	store   store.FragmentStore
	db      *bolt.DB
	catalog *catalog.Catalog
	graph   *graph.Graph
	logger  *zap.Logger
	cfg     *config.Config
}

// Open sets up a repository under cfg.Store.Path: a leveldb fragment store
// with an LRU read cache in front, and a bolt file shared by the commit
// graph and the catalog so commits and refcounts move in one transaction.
func Open(cfg *config.Config, logger *zap.Logger) (*Repository, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.Store.Path, 0o755); err != nil {
		return nil, errors.Wrap(err, "strata: create repository dir")
	}

	ldb, err := store.NewLevelDBStore(filepath.Join(cfg.Store.Path, "fragments"))
	if err != nil {
		return nil, err
	}
	var fs store.FragmentStore = ldb
	if cfg.Store.CacheFragments > 0 {
		if fs, err = store.NewCachingStore(ldb, cfg.Store.CacheFragments); err != nil {
			_ = ldb.Close()
			return nil, err
		}
	}

	db, err := bolt.Open(filepath.Join(cfg.Store.Path, "graph.db"), 0o644, nil)
	if err != nil {
		_ = fs.Close()
		return nil, errors.Wrap(err, "strata: open graph db")
	}
	cat, err := catalog.New(db, logger)
	if err != nil {
		_ = db.Close()
		_ = fs.Close()
		return nil, err
	}
	g, err := graph.Open(db, cat, logger)
	if err != nil {
		_ = db.Close()
		_ = fs.Close()
		return nil, err
	}
	return &Repository{store: fs, db: db, catalog: cat, graph: g, logger: logger, cfg: cfg}, nil
}

func (r *Repository) Close() error {
	err := r.db.Close()
	if serr := r.store.Close(); err == nil {
		err = serr
	}
	return err
}

// Store exposes the fragment store for direct reads.
func (r *Repository) Store() store.FragmentStore { return r.store }

// Graph exposes the commit graph read surface.
func (r *Repository) Graph() *graph.Graph { return r.graph }

// WriteDelta chunks a row delta into fragments and persists them. The
// returned addresses are in replay order and become a table's appended
// layers in the next commit.
func (r *Repository) WriteDelta(ctx context.Context, s fragment.Schema, ops []fragment.RowOp) (hash.HashSlice, error) {
	frags, err := fragment.Split(s, ops)
	if err != nil {
		return nil, err
	}
	layers := make(hash.HashSlice, len(frags))
	for i, f := range frags {
		if layers[i], err = r.store.Put(ctx, f); err != nil {
			return nil, err
		}
	}
	return layers, nil
}

// Commit records a new image.
func (r *Repository) Commit(ctx context.Context, opts graph.CommitOpts) (hash.Hash, error) {
	return r.graph.Commit(ctx, opts)
}

// CommitTo commits and advances tag, failing with ConcurrentCommitError if
// the tag moved since expectedHead was read.
func (r *Repository) CommitTo(ctx context.Context, tag string, expectedHead hash.Hash, opts graph.CommitOpts) (hash.Hash, error) {
	return r.graph.CommitTo(ctx, tag, expectedHead, opts)
}

// Resolve turns a tag, full id or unambiguous id prefix into an image id.
func (r *Repository) Resolve(ctx context.Context, ref string) (hash.Hash, error) {
	return r.graph.Resolve(ctx, ref)
}

// Ancestors iterates an image's transitive parents, newest first.
func (r *Repository) Ancestors(ctx context.Context, id hash.Hash) (*graph.AncestorIter, error) {
	return r.graph.Ancestors(ctx, id)
}

// IsAncestor reports whether a is reachable from b.
func (r *Repository) IsAncestor(ctx context.Context, a, b hash.Hash) (bool, error) {
	return r.graph.IsAncestor(ctx, a, b)
}

// Materialize replays table at ref into the given engine.
func (r *Repository) Materialize(ctx context.Context, ref, table string, engine materialize.Engine) error {
	id, err := r.graph.Resolve(ctx, ref)
	if err != nil {
		return err
	}
	return materialize.New(r.store, r.graph, engine, r.logger).Materialize(ctx, id, table)
}

// Diff returns table's ordered row changes going from ref a to ref b.
func (r *Repository) Diff(ctx context.Context, a, b, table string) ([]diff.RowChange, error) {
	idA, err := r.graph.Resolve(ctx, a)
	if err != nil {
		return nil, err
	}
	idB, err := r.graph.Resolve(ctx, b)
	if err != nil {
		return nil, err
	}
	return diff.New(r.store, r.graph, r.logger).Changes(ctx, idA, idB, table)
}

// Inventory returns every fragment address held locally.
func (r *Repository) Inventory(ctx context.Context) (hash.HashSet, error) {
	return r.store.Addresses(ctx)
}

// Sync reconciles the local inventory against a remote one over the given
// transport: missing fragments are pushed, unknown ones pulled. Per-address
// failures come back in the Result, not as an error.
func (r *Repository) Sync(ctx context.Context, remoteInventory hash.HashSet, tr strasync.Transport) (*strasync.Result, error) {
	local, err := r.store.Addresses(ctx)
	if err != nil {
		return nil, err
	}
	return r.syncer(tr).Execute(ctx, strasync.PlanSync(local, remoteInventory))
}

// Push uploads one image's fragments, skipping those in remoteInventory.
func (r *Repository) Push(ctx context.Context, id hash.Hash, remoteInventory hash.HashSet, tr strasync.Transport) (*strasync.Result, error) {
	img, err := r.graph.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	plan := strasync.Plan{
		ToPush: img.FragmentSet().Diff(remoteInventory),
		ToPull: hash.HashSet{},
	}
	return r.syncer(tr).Execute(ctx, plan)
}

// Pull resolves ref on the remote registry, then downloads the fragments of
// the resolved image that the local store lacks. The image id is returned so
// the caller can record the image node once its fragments are present.
func (r *Repository) Pull(ctx context.Context, reg *registry.Client, tr strasync.Transport, ref string) (hash.Hash, *strasync.Result, error) {
	id, err := reg.Resolve(ctx, ref)
	if err != nil {
		return hash.Hash{}, nil, err
	}
	remote, err := reg.Inventory(ctx, id)
	if err != nil {
		return hash.Hash{}, nil, err
	}
	local, err := r.store.Addresses(ctx)
	if err != nil {
		return hash.Hash{}, nil, err
	}
	plan := strasync.Plan{
		ToPush: hash.HashSet{},
		ToPull: remote.Diff(local),
	}
	res, err := r.syncer(tr).Execute(ctx, plan)
	return id, res, err
}

// OpenTransport builds the blob transport a configured remote names. The s3
// kind picks up credentials and region from the ambient AWS environment.
func OpenTransport(ctx context.Context, remote config.Remote) (strasync.Transport, error) {
	switch remote.Transport {
	case config.TransportHTTP:
		return strasync.NewHTTPTransport(remote.Endpoint, nil), nil
	case config.TransportLocal:
		return strasync.NewLocalTransport(remote.Endpoint)
	case config.TransportS3:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "strata: load aws config")
		}
		return strasync.NewS3Transport(awsCfg, remote.Bucket, remote.Prefix), nil
	default:
		return nil, fmt.Errorf("strata: unknown transport %q", remote.Transport)
	}
}

func (r *Repository) syncer(tr strasync.Transport) *strasync.Syncer {
	return strasync.NewSyncer(r.store, tr, strasync.Options{
		Concurrency: r.cfg.Sync.Concurrency,
		MaxRetries:  r.cfg.Sync.MaxRetries,
	}, r.logger)
}

// DeleteImage removes a leaf image and releases its fragment references.
func (r *Repository) DeleteImage(ctx context.Context, id hash.Hash) error {
	return r.graph.Delete(ctx, id)
}

// GC evicts fragments no image references anymore and reports what it
// dropped.
func (r *Repository) GC(ctx context.Context) (hash.HashSlice, error) {
	return r.catalog.Sweep(ctx, r.store)
}

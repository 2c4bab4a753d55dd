package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	routegraph "github.com/sakhatrans/routegraph"
	"github.com/sakhatrans/routegraph/storage"
)

// GraphBuild rebuilds the routing graph from the latest dataset and
// publishes it, marking that dataset active.
type GraphBuild struct {
	base

	storage storage.Storage
	store   *routegraph.Store
}

func NewGraphBuild(st storage.Storage, store *routegraph.Store, log zerolog.Logger) *GraphBuild {
	return &GraphBuild{
		base:    newBase("graph", log),
		storage: st,
		store:   store,
	}
}

func (w *GraphBuild) CanRun(ctx context.Context) (bool, string) {
	ds, err := w.storage.GetLatestDataset()
	if err == storage.ErrNotFound {
		return false, "no dataset to build from"
	} else if err != nil {
		return true, ""
	}

	// An unchanged upstream run leaves the active graph, and its
	// metadata, alone. Stop count catches augmentation of an already
	// built dataset version.
	md, err := w.storage.GetGraphMetadata()
	if err == nil && md.DatasetVersion == ds.Version && md.NodeCount == len(ds.Stops) {
		return false, "active graph already covers the latest dataset"
	}
	return true, ""
}

func (w *GraphBuild) Execute(ctx context.Context) (Result, error) {
	start := time.Now()
	ctx, cancel := w.begin(ctx)
	defer cancel()

	res, err := w.run(ctx)
	w.finish(start, res, err)
	return res, err
}

func (w *GraphBuild) run(ctx context.Context) (Result, error) {
	ds, err := w.storage.GetLatestDataset()
	if err != nil {
		return Result{}, fmt.Errorf("loading latest dataset: %w", err)
	}

	if err := w.store.UpdateFromDataset(ds); err != nil {
		return Result{}, fmt.Errorf("updating graph from dataset %s: %w", ds.Version, err)
	}

	if err := w.storage.SetDatasetActive(ds.Version); err != nil {
		return Result{}, fmt.Errorf("activating dataset %s: %w", ds.Version, err)
	}

	md, err := w.store.Stats()
	if err != nil {
		return Result{}, fmt.Errorf("reading graph stats: %w", err)
	}

	return Result{
		Status:  StatusOK,
		Message: md.String(),
		Count:   md.NodeCount + md.EdgeCount,
	}, nil
}

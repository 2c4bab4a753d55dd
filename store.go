package routegraph

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sakhatrans/routegraph/model"
	"github.com/sakhatrans/routegraph/normalize"
	"github.com/sakhatrans/routegraph/storage"
)

var ErrNoActiveGraph = errors.New("no active graph")

// Store owns the single active graph. Publication swaps one reference
// under a mutex; readers hold whatever graph they obtained until they
// are done with it, and published graphs are never mutated.
type Store struct {
	mu     sync.RWMutex
	active *Graph

	storage storage.Storage
	norm    *normalize.Normalizer
	log     zerolog.Logger
}

func NewStore(s storage.Storage, norm *normalize.Normalizer, log zerolog.Logger) *Store {
	return &Store{
		storage: s,
		norm:    norm,
		log:     log.With().Str("module", "graphstore").Logger(),
	}
}

// Returns the currently published graph without copying.
func (s *Store) Get() (*Graph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.active == nil {
		return nil, ErrNoActiveGraph
	}
	return s.active, nil
}

// Atomically replaces the active graph, persisting its payload and
// metadata first. If persistence fails the previous graph stays
// active.
func (s *Store) Publish(g *Graph) error {
	g.Metadata.Active = true

	payload, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshaling graph: %w", err)
	}
	if err := s.storage.SaveGraph(g.Metadata.DatasetVersion, payload); err != nil {
		return fmt.Errorf("saving graph payload: %w", err)
	}

	md := g.Metadata
	if err := s.storage.SetActiveGraphMetadata(md); err != nil {
		return fmt.Errorf("saving graph metadata: %w", err)
	}

	s.mu.Lock()
	s.active = g
	s.mu.Unlock()

	s.log.Info().Str("dataset", md.DatasetVersion).
		Int("nodes", md.NodeCount).Int("edges", md.EdgeCount).Msg("graph published")
	return nil
}

// Node and edge counts of the active graph.
func (s *Store) Stats() (model.GraphMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.active == nil {
		return model.GraphMetadata{}, ErrNoActiveGraph
	}
	return s.active.Metadata, nil
}

// Builds a graph from the dataset and publishes it.
func (s *Store) UpdateFromDataset(ds *model.Dataset) error {
	g, err := BuildGraph(ds, s.norm, s.log)
	if err != nil {
		return fmt.Errorf("building graph: %w", err)
	}
	return s.Publish(g)
}

// Restores the persisted active graph, if any. Called at startup so
// routing works before the first pipeline run of the process.
func (s *Store) LoadActive() error {
	version, err := s.storage.ActiveGraphVersion()
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNoActiveGraph
	}
	if err != nil {
		return fmt.Errorf("reading active graph version: %w", err)
	}

	payload, err := s.storage.GraphPayload(version)
	if err != nil {
		return fmt.Errorf("reading graph payload: %w", err)
	}

	g := NewGraph()
	if err := json.Unmarshal(payload, g); err != nil {
		return fmt.Errorf("unmarshaling graph payload: %w", err)
	}
	if err := g.Validate(); err != nil {
		return fmt.Errorf("validating restored graph: %w", err)
	}

	s.mu.Lock()
	s.active = g
	s.mu.Unlock()

	s.log.Info().Str("dataset", version).Msg("restored active graph from storage")
	return nil
}

package storage

import (
	"errors"

	"github.com/sakhatrans/routegraph/model"
)

// Key layout for the graph key-value area.
const (
	GraphPayloadKeyFormat = "graph:%s:payload"
	GraphCurrentKey       = "graph:current:version"
	GraphMetadataKey      = "graph:current:metadata"
)

var ErrNotFound = errors.New("not found")

// Filter for entity listings.
type EntityFilter struct {
	// If set, only include entities with a matching virtual flag.
	Virtual *bool
}

func (f EntityFilter) matches(virtual bool) bool {
	return f.Virtual == nil || *f.Virtual == virtual
}

// Real restricts a filter to real entities, Virtual to virtual ones.
func Real() EntityFilter    { v := false; return EntityFilter{Virtual: &v} }
func Virtual() EntityFilter { v := true; return EntityFilter{Virtual: &v} }

// Storage persists datasets, their entities, and graph snapshots. All
// entity operations are scoped to a dataset version: virtual entities
// created for a dataset live and die with it.
type Storage interface {
	// Persists a dataset and all of its entities in one
	// transaction. Fails if the version already exists.
	SaveDataset(ds *model.Dataset) error

	// Returns the most recently created dataset with all of its
	// entities, or ErrNotFound.
	GetLatestDataset() (*model.Dataset, error)

	// Returns the dataset with the given version, or ErrNotFound.
	GetDataset(version string) (*model.Dataset, error)

	// Marks the given dataset active and all others inactive.
	SetDatasetActive(version string) error

	// Removes a dataset and its entities.
	DeleteDataset(version string) error

	// Bulk upserts into an existing dataset version. Used by the
	// virtual-entity worker to augment a fresh dataset.
	SaveStops(version string, stops []*model.Stop) error
	SaveRoutes(version string, routes []*model.Route) error
	SaveFlights(version string, flights []*model.Flight) error

	ListStops(version string, f EntityFilter) ([]*model.Stop, error)
	ListRoutes(version string, f EntityFilter) ([]*model.Route, error)
	ListFlights(version string, f EntityFilter) ([]*model.Flight, error)
	CountFlights(version string, includeVirtual bool) (int, error)

	// Graph snapshots, stored as opaque payloads keyed by dataset
	// version. The active graph is named by a separate pointer key.
	SaveGraph(version string, payload []byte) error
	GraphPayload(version string) ([]byte, error)
	DeleteGraph(version string) error
	SetActiveGraphMetadata(md model.GraphMetadata) error
	GetGraphMetadata() (model.GraphMetadata, error)
	ActiveGraphVersion() (string, error)

	// Removes all stored data. Only the admin reinit flow calls
	// this.
	Clear() error
}

package storage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sakhatrans/routegraph/model"
)

// In memory implementation of Storage. Used in tests and as the
// fallback backend when no database is configured.

type MemoryStorage struct {
	mu sync.RWMutex

	datasets map[string]*model.Dataset
	stops    map[string]map[string]*model.Stop
	routes   map[string]map[string]*model.Route
	flights  map[string]map[string]*model.Flight

	graphKV map[string][]byte
	graphMD *model.GraphMetadata
}

func NewMemoryStorage() *MemoryStorage {
	s := &MemoryStorage{}
	s.reset()
	return s
}

func (s *MemoryStorage) reset() {
	s.datasets = map[string]*model.Dataset{}
	s.stops = map[string]map[string]*model.Stop{}
	s.routes = map[string]map[string]*model.Route{}
	s.flights = map[string]map[string]*model.Flight{}
	s.graphKV = map[string][]byte{}
	s.graphMD = nil
}

func (s *MemoryStorage) SaveDataset(ds *model.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, found := s.datasets[ds.Version]; found {
		return fmt.Errorf("dataset %q already exists", ds.Version)
	}

	header := *ds
	header.Stops = nil
	header.Routes = nil
	header.Flights = nil
	s.datasets[ds.Version] = &header

	s.stops[ds.Version] = map[string]*model.Stop{}
	for _, st := range ds.Stops {
		s.stops[ds.Version][st.ID] = st
	}
	s.routes[ds.Version] = map[string]*model.Route{}
	for _, r := range ds.Routes {
		s.routes[ds.Version][r.ID] = r
	}
	s.flights[ds.Version] = map[string]*model.Flight{}
	for _, f := range ds.Flights {
		s.flights[ds.Version][f.ID] = f
	}

	return nil
}

func (s *MemoryStorage) GetLatestDataset() (*model.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *model.Dataset
	for _, ds := range s.datasets {
		if latest == nil || ds.CreatedAt.After(latest.CreatedAt) {
			latest = ds
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return s.assemble(latest), nil
}

func (s *MemoryStorage) GetDataset(version string) (*model.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ds, found := s.datasets[version]
	if !found {
		return nil, ErrNotFound
	}
	return s.assemble(ds), nil
}

// Caller must hold at least a read lock.
func (s *MemoryStorage) assemble(header *model.Dataset) *model.Dataset {
	ds := *header
	for _, st := range s.stops[ds.Version] {
		ds.Stops = append(ds.Stops, st)
	}
	for _, r := range s.routes[ds.Version] {
		ds.Routes = append(ds.Routes, r)
	}
	for _, f := range s.flights[ds.Version] {
		ds.Flights = append(ds.Flights, f)
	}
	sort.Slice(ds.Stops, func(i, j int) bool { return ds.Stops[i].ID < ds.Stops[j].ID })
	sort.Slice(ds.Routes, func(i, j int) bool { return ds.Routes[i].ID < ds.Routes[j].ID })
	sort.Slice(ds.Flights, func(i, j int) bool { return ds.Flights[i].ID < ds.Flights[j].ID })
	return &ds
}

func (s *MemoryStorage) SetDatasetActive(version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, found := s.datasets[version]; !found {
		return ErrNotFound
	}
	for v, ds := range s.datasets {
		ds.Active = v == version
	}
	return nil
}

func (s *MemoryStorage) DeleteDataset(version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, found := s.datasets[version]; !found {
		return ErrNotFound
	}
	delete(s.datasets, version)
	delete(s.stops, version)
	delete(s.routes, version)
	delete(s.flights, version)
	return nil
}

func (s *MemoryStorage) SaveStops(version string, stops []*model.Stop) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, found := s.datasets[version]; !found {
		return ErrNotFound
	}
	for _, st := range stops {
		s.stops[version][st.ID] = st
	}
	return nil
}

func (s *MemoryStorage) SaveRoutes(version string, routes []*model.Route) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, found := s.datasets[version]; !found {
		return ErrNotFound
	}
	for _, r := range routes {
		s.routes[version][r.ID] = r
	}
	return nil
}

func (s *MemoryStorage) SaveFlights(version string, flights []*model.Flight) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, found := s.datasets[version]; !found {
		return ErrNotFound
	}
	for _, f := range flights {
		s.flights[version][f.ID] = f
	}
	return nil
}

func (s *MemoryStorage) ListStops(version string, f EntityFilter) ([]*model.Stop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*model.Stop{}
	for _, st := range s.stops[version] {
		if f.matches(st.Virtual) {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStorage) ListRoutes(version string, f EntityFilter) ([]*model.Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*model.Route{}
	for _, r := range s.routes[version] {
		if f.matches(r.Virtual) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStorage) ListFlights(version string, f EntityFilter) ([]*model.Flight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*model.Flight{}
	for _, fl := range s.flights[version] {
		route := s.routes[version][fl.RouteID]
		virtual := route != nil && route.Virtual
		if f.matches(virtual) {
			out = append(out, fl)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStorage) CountFlights(version string, includeVirtual bool) (int, error) {
	f := EntityFilter{}
	if !includeVirtual {
		f = Real()
	}
	flights, err := s.ListFlights(version, f)
	if err != nil {
		return 0, err
	}
	return len(flights), nil
}

func (s *MemoryStorage) SaveGraph(version string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.graphKV[fmt.Sprintf(GraphPayloadKeyFormat, version)] = payload
	return nil
}

func (s *MemoryStorage) GraphPayload(version string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payload, found := s.graphKV[fmt.Sprintf(GraphPayloadKeyFormat, version)]
	if !found {
		return nil, ErrNotFound
	}
	return payload, nil
}

func (s *MemoryStorage) DeleteGraph(version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := fmt.Sprintf(GraphPayloadKeyFormat, version)
	if _, found := s.graphKV[key]; !found {
		return ErrNotFound
	}
	delete(s.graphKV, key)
	return nil
}

func (s *MemoryStorage) SetActiveGraphMetadata(md model.GraphMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.graphMD = &md
	s.graphKV[GraphCurrentKey] = []byte(md.DatasetVersion)
	return nil
}

func (s *MemoryStorage) GetGraphMetadata() (model.GraphMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.graphMD == nil {
		return model.GraphMetadata{}, ErrNotFound
	}
	return *s.graphMD, nil
}

func (s *MemoryStorage) ActiveGraphVersion() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	version, found := s.graphKV[GraphCurrentKey]
	if !found {
		return "", ErrNotFound
	}
	return string(version), nil
}

func (s *MemoryStorage) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()
	return nil
}

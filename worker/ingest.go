package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sakhatrans/routegraph/cache"
	"github.com/sakhatrans/routegraph/model"
	"github.com/sakhatrans/routegraph/normalize"
	"github.com/sakhatrans/routegraph/parse"
	"github.com/sakhatrans/routegraph/provider"
	"github.com/sakhatrans/routegraph/storage"
)

// Archive for raw upstream snapshots. Uploads are best-effort: a
// failing archive never fails an ingest run.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte) error
}

const IngestCooldown = time.Hour

// Ingest pulls a full snapshot from the upstream provider, validates
// it, and persists it as a new dataset. Unchanged snapshots (by
// content hash) are skipped.
type Ingest struct {
	base

	provider  provider.Provider
	storage   storage.Storage
	cache     cache.Cache
	objects   ObjectStore
	norm      *normalize.Normalizer
	validator *normalize.Validator

	// Minimum interval between successful runs.
	Cooldown time.Duration
}

func NewIngest(p provider.Provider, st storage.Storage, c cache.Cache, norm *normalize.Normalizer, log zerolog.Logger) *Ingest {
	return &Ingest{
		base:      newBase("ingest", log),
		provider:  p,
		storage:   st,
		cache:     c,
		norm:      norm,
		validator: normalize.NewValidator(norm),
		Cooldown:  IngestCooldown,
	}
}

// WithObjectStore enables archival of raw snapshots.
func (w *Ingest) WithObjectStore(os ObjectStore) *Ingest {
	w.objects = os
	return w
}

func (w *Ingest) CanRun(ctx context.Context) (bool, string) {
	md := w.Metadata()
	// A "no changes" run counts as success: the upstream was reached
	// and compared, so it starts the cooldown too.
	succeeded := md.LastStatus == StatusOK || md.LastStatus == StatusSkipped
	if succeeded && time.Since(md.LastRun) < w.Cooldown {
		// An empty store overrides the cooldown so reinit can
		// repopulate immediately.
		if _, err := w.storage.GetLatestDataset(); err == nil {
			return false, fmt.Sprintf("last successful run %s ago, cooldown %s",
				time.Since(md.LastRun).Round(time.Second), w.Cooldown)
		}
	}
	return true, ""
}

func (w *Ingest) Execute(ctx context.Context) (Result, error) {
	start := time.Now()
	ctx, cancel := w.begin(ctx)
	defer cancel()

	res, err := w.run(ctx)
	w.finish(start, res, err)
	return res, err
}

func (w *Ingest) run(ctx context.Context) (Result, error) {
	raw, err := w.provider.FetchAll(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("fetching upstream snapshot: %w", err)
	}

	rec, err := parse.Snapshot(raw)
	if err != nil {
		return Result{}, fmt.Errorf("decoding snapshot: %w", err)
	}

	hash := parse.Hash(rec)
	if latest, err := w.storage.GetLatestDataset(); err == nil && latest.Hash == hash {
		w.log.Info().Str("hash", hash).Msg("snapshot unchanged, skipping")
		return Result{Status: StatusSkipped, Message: "no changes", Next: "virtual"}, nil
	} else if err != nil && err != storage.ErrNotFound {
		return Result{}, fmt.Errorf("loading latest dataset: %w", err)
	}

	stops, routes, flights := w.admit(rec)

	ds := &model.Dataset{
		Version:   uuid.NewString(),
		Hash:      hash,
		Mode:      model.SourceModeReal,
		Quality:   model.QualityScore(stops, routes, flights),
		CreatedAt: time.Now().UTC(),
		Stops:     stops,
		Routes:    routes,
		Flights:   flights,
	}
	if err := w.storage.SaveDataset(ds); err != nil {
		return Result{}, fmt.Errorf("saving dataset %s: %w", ds.Version, err)
	}

	w.archive(ctx, ds.Version, raw)

	if err := w.cache.DeleteByPattern(ctx, "cities:*"); err != nil {
		w.log.Warn().Err(err).Msg("invalidating cities cache")
	}
	w.warmCities(ctx, stops)

	w.log.Info().
		Str("version", ds.Version).
		Int("quality", ds.Quality).
		Int("stops", len(stops)).
		Int("routes", len(routes)).
		Int("flights", len(flights)).
		Msg("dataset ingested")

	return Result{
		Status:  StatusOK,
		Message: fmt.Sprintf("dataset %s ingested", ds.Version),
		Count:   len(stops) + len(routes) + len(flights),
		Next:    "virtual",
	}, nil
}

// Filters decoded records down to the admissible set: invalid stops
// are dropped with a warning, then routes referencing dropped stops,
// then flights referencing dropped routes or stops. City keys of
// admitted stops are canonicalized.
func (w *Ingest) admit(rec *parse.Records) ([]*model.Stop, []*model.Route, []*model.Flight) {
	var stops []*model.Stop
	kept := map[string]bool{}
	for _, s := range rec.Stops {
		if r := w.validator.ValidateStop(s); !r.Valid {
			w.log.Warn().Str("stop", s.ID).Strs("errors", r.Errors).Msg("dropping invalid stop")
			continue
		}
		s.CityKey = w.norm.Normalize(s.CityKey)
		stops = append(stops, s)
		kept[s.ID] = true
	}

	var routes []*model.Route
	keptRoutes := map[string]bool{}
	for _, r := range rec.Routes {
		ok := true
		for _, id := range r.StopIDs {
			if !kept[id] {
				ok = false
				break
			}
		}
		if !ok {
			w.log.Warn().Str("route", r.ID).Msg("dropping route referencing dropped stop")
			continue
		}
		routes = append(routes, r)
		keptRoutes[r.ID] = true
	}

	var flights []*model.Flight
	for _, f := range rec.Flights {
		if !keptRoutes[f.RouteID] || !kept[f.FromStop] || !kept[f.ToStop] {
			w.log.Warn().Str("flight", f.ID).Msg("dropping flight referencing dropped entity")
			continue
		}
		flights = append(flights, f)
	}

	return stops, routes, flights
}

// Replaces the invalidated cities entry with the new dataset's city
// list. Best effort.
func (w *Ingest) warmCities(ctx context.Context, stops []*model.Stop) {
	seen := map[string]bool{}
	cities := []string{}
	for _, s := range stops {
		if !seen[s.CityKey] {
			seen[s.CityKey] = true
			cities = append(cities, s.CityKey)
		}
	}
	sort.Strings(cities)

	buf, err := json.Marshal(cities)
	if err != nil {
		return
	}
	if err := w.cache.Set(ctx, "cities:all", buf, cache.CitiesTTL); err != nil {
		w.log.Warn().Err(err).Msg("warming cities cache")
	}
}

// Uploads the raw snapshot for later replay. Failures are logged, not
// returned.
func (w *Ingest) archive(ctx context.Context, version string, raw *parse.RawSnapshot) {
	if w.objects == nil {
		return
	}
	for name, body := range map[string][]byte{
		"stops.csv":   raw.StopsCSV,
		"routes.csv":  raw.RoutesCSV,
		"flights.csv": raw.FlightsCSV,
	} {
		key := fmt.Sprintf("snapshots/%s/%s", version, name)
		if err := w.objects.Put(ctx, key, body); err != nil {
			w.log.Warn().Err(err).Str("key", key).Msg("archiving raw snapshot")
		}
	}
}

package routegraph

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/sakhatrans/routegraph/model"
	"github.com/sakhatrans/routegraph/normalize"
)

// Trips longer than this are treated as data errors when deriving
// edge weights.
const maxTripMinutes = 10000

// Weight assigned to edges with no usable duration or price signal.
const fallbackWeight = 60

type flightKey struct {
	from  string
	to    string
	route string
}

// Builds a fresh graph from a dataset. Stops become nodes (virtual
// stops with non-canonical IDs are dropped), consecutive stop pairs of
// each route become forward edges weighted by the duration cascade.
// The returned graph has passed synchronization, validation and the
// weight audit.
func BuildGraph(ds *model.Dataset, norm *normalize.Normalizer, log zerolog.Logger) (*Graph, error) {
	log = log.With().Str("module", "graph").Str("dataset", ds.Version).Logger()
	start := time.Now()

	g := NewGraph()

	for _, stop := range ds.Stops {
		if stop.Virtual && stop.ID != norm.VirtualStopID(stop.CityKey) {
			log.Warn().Str("stop", stop.ID).Str("city", stop.CityKey).
				Msg("dropping virtual stop with non-canonical id")
			continue
		}
		g.AddNode(&Node{
			ID:   stop.ID,
			Name: stop.Name,
			Lat:  stop.Lat,
			Lon:  stop.Lon,
			City: norm.Normalize(stop.CityKey),
		})
	}

	flightsByEdge := map[flightKey][]*model.Flight{}
	for _, f := range ds.Flights {
		key := flightKey{from: f.FromStop, to: f.ToStop, route: f.RouteID}
		flightsByEdge[key] = append(flightsByEdge[key], f)
	}

	for _, route := range ds.Routes {
		for i := 0; i+1 < len(route.StopIDs); i++ {
			from, to := route.StopIDs[i], route.StopIDs[i+1]

			if _, found := g.Nodes[from]; !found {
				continue
			}
			if _, found := g.Nodes[to]; !found {
				continue
			}

			flights := flightsByEdge[flightKey{from: from, to: to, route: route.ID}]
			weight := edgeWeight(route, flights)
			if !validWeight(weight) {
				log.Error().Str("route", route.ID).Str("from", from).Str("to", to).
					Float64("weight", weight).Msg("skipping edge with invalid weight")
				continue
			}

			edge := &Edge{
				From: from,
				To:   to,
				Segment: model.Segment{
					ID:         fmt.Sprintf("%s:%d", route.ID, i),
					RouteID:    route.ID,
					Kind:       route.Kind,
					EstMinutes: route.EstMinutes,
					BasePrice:  route.BaseFare,
				},
				Weight:  weight,
				Flights: flights,
			}
			if err := g.AddEdge(edge); err != nil {
				log.Error().Err(err).Msg("skipping edge")
			}
		}
	}

	if removed := g.Synchronize(); removed > 0 {
		log.Warn().Int("removed", removed).Msg("synchronize dropped dangling edges")
	}
	if err := g.Validate(); err != nil {
		// One repair attempt: synchronize again and re-validate. A
		// second failure fails the build.
		log.Warn().Err(err).Msg("graph validation failed, re-synchronizing")
		g.Synchronize()
		if err := g.Validate(); err != nil {
			return nil, fmt.Errorf("validating graph: %w", err)
		}
	}

	if err := g.AuditWeights(); err != nil {
		return nil, fmt.Errorf("auditing weights: %w", err)
	}

	g.Metadata = model.GraphMetadata{
		NodeCount:      g.NodeCount(),
		EdgeCount:      g.EdgeCount(),
		BuiltAt:        time.Now().UTC(),
		DatasetVersion: ds.Version,
	}

	log.Info().Int("nodes", g.Metadata.NodeCount).Int("edges", g.Metadata.EdgeCount).
		Dur("took", time.Since(start)).Msg("graph built")

	return g, nil
}

// The weight cascade. First rule yielding a finite positive number
// wins: minimum matching trip duration, then the route's estimated
// duration, then a fare-derived estimate, then the flat virtual
// fallback.
func edgeWeight(route *model.Route, flights []*model.Flight) float64 {
	best := math.Inf(1)
	for _, f := range flights {
		d := f.DurationMinutes()
		if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 || d >= maxTripMinutes {
			continue
		}
		if d < best {
			best = d
		}
	}
	if validWeight(best) && !math.IsInf(best, 1) {
		return best
	}

	if route.EstMinutes > 0 {
		return route.EstMinutes
	}

	if route.BaseFare > 0 {
		w := math.Round(route.BaseFare / 1000 * 60)
		if w < 1 {
			w = 1
		}
		return w
	}

	return fallbackWeight
}

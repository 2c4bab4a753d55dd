package routegraph

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sakhatrans/routegraph/model"
	"github.com/sakhatrans/routegraph/normalize"
	"github.com/sakhatrans/routegraph/risk"
)

// Alternatives deeper than this are not explored.
const alternativeSearchDepth = 6

// At most this many alternatives are returned alongside the primary
// itinerary.
const maxAlternatives = 3

// A routing request. Date is "YYYY-MM-DD" or empty for today.
type TripRequest struct {
	From       string `json:"from"`
	To         string `json:"to"`
	Date       string `json:"date,omitempty"`
	Passengers int    `json:"passengers,omitempty"`
}

// The planner's answer. An unreachable or unknown city pair yields an
// empty plan, not an error.
type TripPlan struct {
	Itinerary    *model.Itinerary      `json:"itinerary,omitempty"`
	Alternatives []*model.Itinerary    `json:"alternatives,omitempty"`
	Risk         *model.RiskAssessment `json:"risk,omitempty"`
}

func (p *TripPlan) Empty() bool {
	return p.Itinerary == nil
}

// Planner resolves city names, finds paths over the published graph,
// assembles timed itineraries and attaches a risk assessment.
type Planner struct {
	store *Store
	norm  *normalize.Normalizer
	risk  *risk.Engine
	log   zerolog.Logger

	Now func() time.Time
}

func NewPlanner(store *Store, norm *normalize.Normalizer, engine *risk.Engine, log zerolog.Logger) *Planner {
	return &Planner{
		store: store,
		norm:  norm,
		risk:  engine,
		log:   log.With().Str("module", "planner").Logger(),
		Now:   time.Now,
	}
}

// Plans a trip between two cities. Fails only on infrastructure
// problems (no published graph); a pair with no connecting path
// returns an empty plan.
func (p *Planner) PlanTrip(ctx context.Context, req TripRequest) (*TripPlan, error) {
	g, err := p.store.Get()
	if err != nil {
		return nil, fmt.Errorf("loading active graph: %w", err)
	}

	fromCity := p.norm.Normalize(req.From)
	toCity := p.norm.Normalize(req.To)

	fromNodes := g.NodesInCity(fromCity)
	toNodes := g.NodesInCity(toCity)
	if len(fromNodes) == 0 || len(toNodes) == 0 {
		p.log.Info().Str("from", fromCity).Str("to", toCity).Msg("no stops for requested cities")
		return &TripPlan{}, nil
	}

	path, fromID, toID := p.bestPath(g, fromNodes, toNodes)
	if path == nil {
		p.log.Info().Str("from", fromCity).Str("to", toCity).Msg("no path between cities")
		return &TripPlan{}, nil
	}

	now := p.Now()
	it := AssembleItinerary(fromCity, toCity, path, req.Date, req.Passengers, now)
	if it == nil {
		p.log.Warn().Str("from", fromCity).Str("to", toCity).Msg("path found but no flights to assemble")
		return &TripPlan{}, nil
	}

	plan := &TripPlan{Itinerary: it}

	assessment := p.risk.Assess(ctx, it)
	plan.Risk = &assessment

	for _, alt := range FindAllPaths(g, fromID, toID, alternativeSearchDepth) {
		if len(plan.Alternatives) == maxAlternatives {
			break
		}
		if samePath(alt, path) {
			continue
		}
		if altIt := AssembleItinerary(fromCity, toCity, alt, req.Date, req.Passengers, now); altIt != nil {
			plan.Alternatives = append(plan.Alternatives, altIt)
		}
	}

	return plan, nil
}

// Shortest path over every endpoint pair. Candidate lists put real
// stops first, so ties between a real and a virtual endpoint resolve
// to the real one.
func (p *Planner) bestPath(g *Graph, fromNodes, toNodes []*Node) (*Path, string, string) {
	var best *Path
	var bestFrom, bestTo string
	for _, from := range fromNodes {
		for _, to := range toNodes {
			if from.ID == to.ID {
				continue
			}
			path, err := FindPath(g, from.ID, to.ID)
			if err != nil {
				continue
			}
			if best == nil || path.TotalWeight < best.TotalWeight {
				best = path
				bestFrom, bestTo = from.ID, to.ID
			}
		}
	}
	return best, bestFrom, bestTo
}

func samePath(a, b *Path) bool {
	if len(a.Edges) != len(b.Edges) {
		return false
	}
	for i := range a.Edges {
		if a.Edges[i] != b.Edges[i] {
			return false
		}
	}
	return true
}

package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sakhatrans/routegraph/model"
	"github.com/sakhatrans/routegraph/normalize"
	"github.com/sakhatrans/routegraph/storage"
)

const (
	// City key every virtual route is anchored to when the network
	// has any presence there.
	HubCity = "якутск"

	virtualScheduleDays = 365
	virtualSeats        = 50
	virtualFare         = 1000

	hubLegMinutes   = 180
	crossLegMinutes = 120
)

// Departure times for synthesized trips, hours of the day.
var virtualDepartureHours = []int{8, 16}

// Virtual augments the latest dataset so every reference city is
// reachable: cities without any stop get a virtual stop, virtual
// routes to and from the hub, and a year of synthesized trips. All
// generated IDs are pure functions of their inputs, so re-runs add
// nothing.
type Virtual struct {
	base

	storage storage.Storage
	norm    *normalize.Normalizer

	// Gates the whole worker. Wired to USE_ADAPTIVE_DATA_LOADING.
	Enabled bool

	Now func() time.Time
}

func NewVirtual(st storage.Storage, norm *normalize.Normalizer, enabled bool, log zerolog.Logger) *Virtual {
	return &Virtual{
		base:    newBase("virtual", log),
		storage: st,
		norm:    norm,
		Enabled: enabled,
		Now:     time.Now,
	}
}

func (w *Virtual) CanRun(ctx context.Context) (bool, string) {
	if !w.Enabled {
		return false, "adaptive data loading disabled"
	}
	return true, ""
}

func (w *Virtual) Execute(ctx context.Context) (Result, error) {
	start := time.Now()
	ctx, cancel := w.begin(ctx)
	defer cancel()

	res, err := w.run(ctx)
	w.finish(start, res, err)
	return res, err
}

func (w *Virtual) run(ctx context.Context) (Result, error) {
	ds, err := w.storage.GetLatestDataset()
	if err == storage.ErrNotFound {
		return Result{Status: StatusSkipped, Message: "no dataset to augment", Next: "graph"}, nil
	} else if err != nil {
		return Result{}, fmt.Errorf("loading latest dataset: %w", err)
	}

	byCity := ds.StopsByCity()
	stopIDs := map[string]bool{}
	for _, s := range ds.Stops {
		stopIDs[s.ID] = true
	}
	routeIDs := map[string]bool{}
	for _, r := range ds.Routes {
		routeIDs[r.ID] = true
	}
	flightIDs := map[string]bool{}
	for _, f := range ds.Flights {
		flightIDs[f.ID] = true
	}

	// Cities with no presence at all get a virtual stop at the
	// reference coordinates.
	var newStops []*model.Stop
	var virtualStops []*model.Stop
	for _, city := range w.norm.Cities() {
		if len(byCity[city]) > 0 {
			continue
		}
		id := w.norm.VirtualStopID(city)
		stop := &model.Stop{
			ID:      id,
			Name:    city,
			CityKey: city,
			Virtual: true,
		}
		if coords, ok := w.norm.Coords(city); ok {
			lat, lon := coords.Lat, coords.Lon
			stop.Lat, stop.Lon = &lat, &lon
		}
		virtualStops = append(virtualStops, stop)
		if !stopIDs[id] {
			newStops = append(newStops, stop)
			stopIDs[id] = true
		}
	}

	if len(virtualStops) == 0 {
		return Result{Status: StatusSkipped, Message: "all reference cities already covered", Next: "graph"}, nil
	}

	hub := hubAnchor(byCity[HubCity])
	if hub == nil {
		// The hub city itself had no presence; its virtual stop is
		// the anchor.
		for _, vs := range virtualStops {
			if vs.CityKey == HubCity {
				hub = vs
				break
			}
		}
	}

	var newRoutes []*model.Route
	var newFlights []*model.Flight
	addLeg := func(from, to *model.Stop, minutes int) {
		id := normalize.VirtualRouteID(from.ID, to.ID)
		if !routeIDs[id] {
			newRoutes = append(newRoutes, &model.Route{
				ID:       id,
				Kind:     model.TransportKindBus,
				StopIDs:  []string{from.ID, to.ID},
				BaseFare: virtualFare,
				Virtual:  true,
			})
			routeIDs[id] = true
		}
		newFlights = append(newFlights, w.trips(id, from.ID, to.ID, minutes, flightIDs)...)
	}

	if hub != nil {
		// Each direction is added independently; a later dataset may
		// bring a real route one way but not the other.
		for _, vs := range virtualStops {
			if vs.CityKey == HubCity {
				continue
			}
			addLeg(vs, hub, hubLegMinutes)
			addLeg(hub, vs, hubLegMinutes)
		}
	} else {
		// No hub presence: connect the virtual stops pairwise so the
		// synthesized network is still a single component.
		for i, a := range virtualStops {
			for _, b := range virtualStops[i+1:] {
				addLeg(a, b, crossLegMinutes)
				addLeg(b, a, crossLegMinutes)
			}
		}
	}

	if err := w.storage.SaveStops(ds.Version, newStops); err != nil {
		return Result{}, fmt.Errorf("saving virtual stops: %w", err)
	}
	if err := w.storage.SaveRoutes(ds.Version, newRoutes); err != nil {
		return Result{}, fmt.Errorf("saving virtual routes: %w", err)
	}
	if err := w.storage.SaveFlights(ds.Version, newFlights); err != nil {
		return Result{}, fmt.Errorf("saving virtual flights: %w", err)
	}

	w.log.Info().
		Str("version", ds.Version).
		Int("stops", len(newStops)).
		Int("routes", len(newRoutes)).
		Int("flights", len(newFlights)).
		Msg("virtual entities ensured")

	return Result{
		Status:  StatusOK,
		Message: fmt.Sprintf("added %d stops, %d routes, %d flights", len(newStops), len(newRoutes), len(newFlights)),
		Count:   len(newStops) + len(newRoutes) + len(newFlights),
		Next:    "graph",
	}, nil
}

// Synthesizes a year of trips on one virtual route: two departures a
// day starting today. Flight IDs embed the date and hour, so repeated
// runs regenerate the same IDs and skip them.
func (w *Virtual) trips(routeID, fromStop, toStop string, minutes int, existing map[string]bool) []*model.Flight {
	var out []*model.Flight
	now := w.Now()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	for d := 0; d < virtualScheduleDays; d++ {
		date := day.AddDate(0, 0, d)
		for _, hour := range virtualDepartureHours {
			dep := date.Add(time.Duration(hour) * time.Hour)
			id := fmt.Sprintf("%s-%s-%02d00", routeID, date.Format("2006-01-02"), hour)
			if existing[id] {
				continue
			}
			existing[id] = true
			out = append(out, &model.Flight{
				ID:        id,
				RouteID:   routeID,
				FromStop:  fromStop,
				ToStop:    toStop,
				Departure: dep,
				Arrival:   dep.Add(time.Duration(minutes) * time.Minute),
				Price:     virtualFare,
				Seats:     virtualSeats,
				Status:    model.FlightStatusScheduled,
			})
		}
	}
	return out
}

// Picks the stop virtual routes anchor to in the hub city, preferring
// a real stop over a virtual one.
func hubAnchor(stops []*model.Stop) *model.Stop {
	var fallback *model.Stop
	for _, s := range stops {
		if !s.Virtual {
			return s
		}
		if fallback == nil {
			fallback = s
		}
	}
	return fallback
}

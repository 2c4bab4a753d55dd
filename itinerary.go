package routegraph

import (
	"sort"
	"time"

	"github.com/sakhatrans/routegraph/model"
)

// Walks the path's edges in order, picking a flight for each and
// advancing a time cursor. Best effort by design: when no flight
// matches the requested date the assembler still produces a timed
// itinerary from whatever flights exist, rather than failing. Only a
// segment with no flights at all yields nil.
func AssembleItinerary(fromCity, toCity string, path *Path, date string, passengers int, now time.Time) *model.Itinerary {
	if path == nil || len(path.Edges) == 0 {
		return nil
	}
	if passengers < 1 {
		passengers = 1
	}

	cursor := now
	if date != "" {
		if d, err := time.ParseInLocation("2006-01-02", date, now.Location()); err == nil {
			cursor = d
		}
	}

	it := &model.Itinerary{
		From:       fromCity,
		To:         toCity,
		Date:       date,
		Passengers: passengers,
	}

	kinds := map[string]bool{}
	for i, edge := range path.Edges {
		flight := selectFlight(edge.Flights, cursor)
		if flight == nil {
			return nil
		}

		duration := flight.DurationMinutes()
		transfer := 0.0
		if i > 0 {
			// The chosen flight may depart before the cursor (past
			// fallback); the clamp is authoritative.
			transfer = flight.Departure.Sub(cursor).Minutes()
			if transfer < 0 {
				transfer = 0
			}
		}

		it.Segments = append(it.Segments, model.SegmentDetail{
			Segment:         edge.Segment,
			Flight:          flight,
			Departure:       flight.Departure,
			Arrival:         flight.Arrival,
			DurationMinutes: duration,
			Price:           flight.Price * float64(passengers),
			TransferMinutes: transfer,
		})

		it.TotalDurationMinutes += duration + transfer
		it.TotalPrice += flight.Price * float64(passengers)
		if transfer > 0 {
			it.TransferCount++
		}
		kinds[edge.Segment.Kind.String()] = true

		cursor = flight.Arrival
	}

	for kind := range kinds {
		it.TransportTypes = append(it.TransportTypes, kind)
	}
	sort.Strings(it.TransportTypes)

	it.Departure = it.Segments[0].Departure
	it.Arrival = it.Segments[len(it.Segments)-1].Arrival

	return it
}

// Flight selection cascade: earliest departure at or after the cursor
// with free seats; failing that, the earliest future flight
// regardless of seats; failing that, the globally earliest flight
// with seats. Cancelled flights are never selected.
func selectFlight(flights []*model.Flight, cursor time.Time) *model.Flight {
	var best, bestFuture, bestAny *model.Flight
	for _, f := range flights {
		if f.Status == model.FlightStatusCancelled {
			continue
		}

		future := !f.Departure.Before(cursor)
		if future && f.Seats > 0 && (best == nil || f.Departure.Before(best.Departure)) {
			best = f
		}
		if future && (bestFuture == nil || f.Departure.Before(bestFuture.Departure)) {
			bestFuture = f
		}
		if f.Seats > 0 && (bestAny == nil || f.Departure.Before(bestAny.Departure)) {
			bestAny = f
		}
	}

	if best != nil {
		return best
	}
	if bestFuture != nil {
		return bestFuture
	}
	return bestAny
}

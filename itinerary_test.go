package routegraph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakhatrans/routegraph/model"
	"github.com/sakhatrans/routegraph/testutil"
)

func flightAt(id string, dep, arr time.Time, seats int, status model.FlightStatus) *model.Flight {
	return &model.Flight{
		ID: id, RouteID: "r1", FromStop: "a", ToStop: "b",
		Departure: dep, Arrival: arr, Price: 500, Seats: seats, Status: status,
	}
}

func twoLegPath(t *testing.T, day time.Time) *Path {
	g, err := BuildGraph(testutil.ThreeCityDataset(t, day), testutil.Normalizer(t), testutil.Logger())
	require.NoError(t, err)

	p, err := FindPath(g, "stop-a", "stop-c")
	require.NoError(t, err)
	return p
}

func TestAssembleItinerary(t *testing.T) {
	day := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	p := twoLegPath(t, day)

	it := AssembleItinerary("якутск", "алдан", p, "2026-08-24", 2, day)
	require.NotNil(t, it)

	assert.Equal(t, "якутск", it.From)
	assert.Equal(t, "алдан", it.To)
	assert.Equal(t, 2, it.Passengers)
	require.Len(t, it.Segments, 2)

	// First leg 08:00 bus, second leg 09:30 train after a 30 minute
	// transfer.
	assert.Equal(t, day.Add(8*time.Hour), it.Segments[0].Departure)
	assert.Equal(t, day.Add(9*time.Hour+30*time.Minute), it.Segments[1].Departure)
	assert.Equal(t, 30.0, it.Segments[1].TransferMinutes)
	assert.Equal(t, 0.0, it.Segments[0].TransferMinutes)

	assert.Equal(t, 4000.0, it.TotalPrice)
	assert.Equal(t, 1, it.TransferCount)
	assert.GreaterOrEqual(t, it.TotalDurationMinutes, 180.0)
	assert.Equal(t, []string{"bus", "train"}, it.TransportTypes)
	assert.Equal(t, it.Segments[0].Departure, it.Departure)
	assert.Equal(t, it.Segments[1].Arrival, it.Arrival)
}

func TestAssembleItineraryInvariants(t *testing.T) {
	day := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	p := twoLegPath(t, day)

	it := AssembleItinerary("якутск", "алдан", p, "2026-08-24", 1, day)
	require.NotNil(t, it)

	// Departures never precede the previous arrival.
	for i := 1; i < len(it.Segments); i++ {
		assert.False(t, it.Segments[i].Departure.Before(it.Segments[i-1].Arrival))
	}

	// Total duration is the sum of durations and transfers; transfer
	// count is the number of positive transfers.
	sum := 0.0
	transfers := 0
	for _, seg := range it.Segments {
		sum += seg.DurationMinutes + seg.TransferMinutes
		if seg.TransferMinutes > 0 {
			transfers++
		}
	}
	assert.Equal(t, sum, it.TotalDurationMinutes)
	assert.Equal(t, transfers, it.TransferCount)
}

func TestAssembleItineraryDefaultsPassengers(t *testing.T) {
	day := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	p := twoLegPath(t, day)

	it := AssembleItinerary("якутск", "алдан", p, "", 0, day)
	require.NotNil(t, it)
	assert.Equal(t, 1, it.Passengers)
	assert.Equal(t, 2000.0, it.TotalPrice)
}

func TestAssembleItineraryNoFlights(t *testing.T) {
	g := NewGraph()
	g.AddNode(&Node{ID: "a"})
	g.AddNode(&Node{ID: "b"})
	require.NoError(t, g.AddEdge(edge("a", "b", 10)))

	p, err := FindPath(g, "a", "b")
	require.NoError(t, err)

	it := AssembleItinerary("якутск", "алдан", p, "", 1, time.Now())
	assert.Nil(t, it)
}

func TestSelectFlightCascade(t *testing.T) {
	day := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	cursor := day.Add(9 * time.Hour)

	morning := flightAt("morning", day.Add(8*time.Hour), day.Add(9*time.Hour), 10, model.FlightStatusScheduled)
	noon := flightAt("noon", day.Add(12*time.Hour), day.Add(13*time.Hour), 10, model.FlightStatusScheduled)
	evening := flightAt("evening", day.Add(18*time.Hour), day.Add(19*time.Hour), 10, model.FlightStatusScheduled)

	// Earliest future flight with seats wins.
	got := selectFlight([]*model.Flight{evening, noon, morning}, cursor)
	require.NotNil(t, got)
	assert.Equal(t, "noon", got.ID)

	// Sold out future flights still beat past ones.
	noonFull := flightAt("noon-full", noon.Departure, noon.Arrival, 0, model.FlightStatusScheduled)
	got = selectFlight([]*model.Flight{morning, noonFull}, cursor)
	require.NotNil(t, got)
	assert.Equal(t, "noon-full", got.ID)

	// Nothing in the future: earliest past flight with seats.
	got = selectFlight([]*model.Flight{morning}, cursor)
	require.NotNil(t, got)
	assert.Equal(t, "morning", got.ID)

	// Cancelled flights are never selected.
	cancelled := flightAt("cancelled", noon.Departure, noon.Arrival, 10, model.FlightStatusCancelled)
	got = selectFlight([]*model.Flight{cancelled}, cursor)
	assert.Nil(t, got)

	got = selectFlight([]*model.Flight{cancelled, evening}, cursor)
	require.NotNil(t, got)
	assert.Equal(t, "evening", got.ID)
}

func TestAssembleItineraryClampsTransferForPastFallback(t *testing.T) {
	day := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)

	g := NewGraph()
	for _, id := range []string{"a", "b", "c"} {
		g.AddNode(&Node{ID: id})
	}
	first := edge("a", "b", 60)
	first.Flights = []*model.Flight{
		{
			ID: "leg1", RouteID: "r1", FromStop: "a", ToStop: "b",
			Departure: day.Add(10 * time.Hour), Arrival: day.Add(11 * time.Hour),
			Price: 100, Seats: 5, Status: model.FlightStatusScheduled,
		},
	}
	second := edge("b", "c", 60)
	second.Flights = []*model.Flight{
		// Only a morning departure exists: it is before the cursor,
		// selected by the past fallback, transfer clamps to zero.
		{
			ID: "leg2", RouteID: "r2", FromStop: "b", ToStop: "c",
			Departure: day.Add(8 * time.Hour), Arrival: day.Add(9 * time.Hour),
			Price: 100, Seats: 5, Status: model.FlightStatusScheduled,
		},
	}
	require.NoError(t, g.AddEdge(first))
	require.NoError(t, g.AddEdge(second))

	p, err := FindPath(g, "a", "c")
	require.NoError(t, err)

	it := AssembleItinerary("якутск", "алдан", p, "2026-08-24", 1, day)
	require.NotNil(t, it)
	require.Len(t, it.Segments, 2)
	assert.Equal(t, 0.0, it.Segments[1].TransferMinutes)
	assert.Equal(t, 0, it.TransferCount)
}

package routegraph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakhatrans/routegraph/model"
	"github.com/sakhatrans/routegraph/testutil"
)

func TestBuildGraphFromDataset(t *testing.T) {
	norm := testutil.Normalizer(t)
	day := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)

	g, err := BuildGraph(testutil.ThreeCityDataset(t, day), norm, testutil.Logger())
	require.NoError(t, err)

	assert.Equal(t, 3, g.NodeCount())
	assert.Equal(t, 2, g.EdgeCount())
	assert.Equal(t, "test-three-city", g.Metadata.DatasetVersion)
	assert.Equal(t, 3, g.Metadata.NodeCount)
	assert.Equal(t, 2, g.Metadata.EdgeCount)
	assert.False(t, g.Metadata.BuiltAt.IsZero())

	// Weight of the A->B edge comes from the fastest matching trip.
	edges := g.OutEdges("stop-a")
	require.Len(t, edges, 1)
	assert.Equal(t, "stop-b", edges[0].To)
	assert.Equal(t, 60.0, edges[0].Weight)
	assert.Len(t, edges[0].Flights, 2)
}

func TestBuildGraphWeightCascade(t *testing.T) {
	norm := testutil.Normalizer(t)
	day := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)

	ds := &model.Dataset{
		Version: "cascade",
		Stops: []*model.Stop{
			{ID: "s1", Name: "Остановка раз", CityKey: "якутск"},
			{ID: "s2", Name: "Остановка два", CityKey: "алдан"},
			{ID: "s3", Name: "Остановка три", CityKey: "мирный"},
			{ID: "s4", Name: "Остановка четыре", CityKey: "ленск"},
			{ID: "s5", Name: "Остановка пять", CityKey: "вилюйск"},
		},
		Routes: []*model.Route{
			// Trip duration wins over everything else.
			{ID: "r-trip", Kind: model.TransportKindBus, StopIDs: []string{"s1", "s2"}, BaseFare: 9000, EstMinutes: 300},
			// No trips: estimated duration wins.
			{ID: "r-est", Kind: model.TransportKindBus, StopIDs: []string{"s2", "s3"}, BaseFare: 9000, EstMinutes: 90},
			// No trips, no estimate: fare-derived, clamped to >= 1.
			{ID: "r-fare", Kind: model.TransportKindBus, StopIDs: []string{"s3", "s4"}, BaseFare: 2000},
			// Nothing at all: flat fallback.
			{ID: "r-none", Kind: model.TransportKindBus, StopIDs: []string{"s4", "s5"}},
		},
		Flights: []*model.Flight{
			{
				ID: "t1", RouteID: "r-trip", FromStop: "s1", ToStop: "s2",
				Departure: day.Add(8 * time.Hour), Arrival: day.Add(8*time.Hour + 42*time.Minute),
				Price: 500, Seats: 10, Status: model.FlightStatusScheduled,
			},
			// Absurd duration is discarded by the cascade.
			{
				ID: "t2", RouteID: "r-trip", FromStop: "s1", ToStop: "s2",
				Departure: day, Arrival: day.Add(12000 * time.Minute),
				Price: 500, Seats: 10, Status: model.FlightStatusScheduled,
			},
		},
	}

	g, err := BuildGraph(ds, norm, testutil.Logger())
	require.NoError(t, err)

	weights := map[string]float64{}
	for _, edges := range g.Adjacency {
		for _, e := range edges {
			weights[e.Segment.RouteID] = e.Weight
		}
	}

	assert.Equal(t, 42.0, weights["r-trip"])
	assert.Equal(t, 90.0, weights["r-est"])
	assert.Equal(t, 120.0, weights["r-fare"])
	assert.Equal(t, 60.0, weights["r-none"])

	require.NoError(t, g.AuditWeights())
}

func TestBuildGraphTinyFareClampsToOne(t *testing.T) {
	norm := testutil.Normalizer(t)

	ds := &model.Dataset{
		Version: "tiny-fare",
		Stops: []*model.Stop{
			{ID: "s1", Name: "Остановка раз", CityKey: "якутск"},
			{ID: "s2", Name: "Остановка два", CityKey: "алдан"},
		},
		Routes: []*model.Route{
			{ID: "r1", Kind: model.TransportKindBus, StopIDs: []string{"s1", "s2"}, BaseFare: 5},
		},
	}

	g, err := BuildGraph(ds, norm, testutil.Logger())
	require.NoError(t, err)
	require.Len(t, g.OutEdges("s1"), 1)
	assert.Equal(t, 1.0, g.OutEdges("s1")[0].Weight)
}

func TestBuildGraphDropsNonCanonicalVirtualStop(t *testing.T) {
	norm := testutil.Normalizer(t)

	ds := &model.Dataset{
		Version: "bad-virtual",
		Stops: []*model.Stop{
			{ID: "s1", Name: "Остановка раз", CityKey: "якутск"},
			{ID: "virtual-stop-тикси", Name: "тикси", CityKey: "тикси", Virtual: true},
			{ID: "virtual-stop-wrong", Name: "тикси", CityKey: "тикси", Virtual: true},
		},
	}

	g, err := BuildGraph(ds, norm, testutil.Logger())
	require.NoError(t, err)
	assert.Equal(t, 2, g.NodeCount())
	assert.NotContains(t, g.Nodes, "virtual-stop-wrong")
	assert.Contains(t, g.Nodes, "virtual-stop-тикси")
}

func TestBuildGraphSkipsEdgesToMissingStops(t *testing.T) {
	norm := testutil.Normalizer(t)

	ds := &model.Dataset{
		Version: "missing-stop",
		Stops: []*model.Stop{
			{ID: "s1", Name: "Остановка раз", CityKey: "якутск"},
			{ID: "s2", Name: "Остановка два", CityKey: "алдан"},
		},
		Routes: []*model.Route{
			{ID: "r1", Kind: model.TransportKindBus, StopIDs: []string{"s1", "ghost", "s2"}, BaseFare: 500},
		},
	}

	g, err := BuildGraph(ds, norm, testutil.Logger())
	require.NoError(t, err)
	assert.Equal(t, 0, g.EdgeCount())
	require.NoError(t, g.Validate())
}

func TestBuildGraphMultiStopRoute(t *testing.T) {
	norm := testutil.Normalizer(t)

	ds := &model.Dataset{
		Version: "multi",
		Stops: []*model.Stop{
			{ID: "s1", Name: "Остановка раз", CityKey: "якутск"},
			{ID: "s2", Name: "Остановка два", CityKey: "покровск"},
			{ID: "s3", Name: "Остановка три", CityKey: "алдан"},
		},
		Routes: []*model.Route{
			{ID: "r1", Kind: model.TransportKindBus, StopIDs: []string{"s1", "s2", "s3"}, EstMinutes: 60},
		},
	}

	g, err := BuildGraph(ds, norm, testutil.Logger())
	require.NoError(t, err)

	// Consecutive pairs only: s1->s2 and s2->s3, no s1->s3 shortcut.
	assert.Equal(t, 2, g.EdgeCount())
	require.Len(t, g.OutEdges("s1"), 1)
	assert.Equal(t, "s2", g.OutEdges("s1")[0].To)
	require.Len(t, g.OutEdges("s2"), 1)
	assert.Equal(t, "s3", g.OutEdges("s2")[0].To)
	assert.Empty(t, g.OutEdges("s3"))
}

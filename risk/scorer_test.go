package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakhatrans/routegraph/model"
)

func simpleItinerary(segments ...model.SegmentDetail) *model.Itinerary {
	it := &model.Itinerary{
		From:       "якутск",
		To:         "алдан",
		Passengers: 1,
		Segments:   segments,
	}
	for i, seg := range segments {
		it.TotalDurationMinutes += seg.DurationMinutes + seg.TransferMinutes
		if seg.TransferMinutes > 0 {
			it.TransferCount++
		}
		if i == 0 {
			it.Departure = seg.Departure
		}
		it.Arrival = seg.Arrival
	}
	return it
}

func busSegment(id string, minutes float64) model.SegmentDetail {
	return model.SegmentDetail{
		Segment:         model.Segment{ID: id, RouteID: "r-" + id, Kind: model.TransportKindBus},
		DurationMinutes: minutes,
	}
}

func TestPredictScoreInBounds(t *testing.T) {
	m := RuleBasedModel{}

	// Mildest possible trip.
	a := m.Predict(Features{SegmentCount: 1, TotalDurationMinutes: 30, ScheduleRegularity: 1.0, SeasonFactor: 1.0})
	assert.GreaterOrEqual(t, a.Score, 1)
	assert.LessOrEqual(t, a.Score, 10)
	assert.Equal(t, model.RiskVeryLow, a.Band)

	// Everything bad at once still clamps to 10.
	b := m.Predict(Features{
		SegmentCount:            6,
		TransferCount:           5,
		HasFerry:                true,
		HasRiverTransport:       true,
		HasMixedTransport:       true,
		HasBus:                  true,
		TotalDurationMinutes:    3000,
		AvgDelay90:              240,
		DelayFrequency:          0.9,
		CancellationRate90:      0.5,
		AvgOccupancy:            0.99,
		HighOccupancySegments:   4,
		LowAvailabilitySegments: 3,
		ScheduleRegularity:      0.1,
		WeatherRisk:             1.0,
		SeasonFactor:            1.32,
	})
	assert.Equal(t, 10, b.Score)
	assert.Equal(t, model.RiskVeryHigh, b.Band)
}

func TestBandForScore(t *testing.T) {
	for score, band := range map[int]model.RiskBand{
		1:  model.RiskVeryLow,
		2:  model.RiskVeryLow,
		3:  model.RiskLow,
		4:  model.RiskLow,
		5:  model.RiskMedium,
		6:  model.RiskMedium,
		7:  model.RiskHigh,
		8:  model.RiskHigh,
		9:  model.RiskVeryHigh,
		10: model.RiskVeryHigh,
	} {
		assert.Equal(t, band, model.BandForScore(score), "score %d", score)
	}
}

func TestComponents(t *testing.T) {
	assert.Equal(t, 0.0, transferComponent(0))
	assert.Equal(t, 0.5, transferComponent(1))
	assert.Equal(t, 1.0, transferComponent(2))
	assert.Equal(t, 2.0, transferComponent(3))
	assert.Equal(t, 2.5, transferComponent(4))

	assert.Equal(t, 0.0, delayComponent(10, 0))
	assert.Equal(t, 0.5, delayComponent(20, 0))
	assert.Equal(t, 1.0, delayComponent(45, 0))
	assert.Equal(t, 2.0, delayComponent(90, 0))
	assert.Equal(t, 2.0, delayComponent(10, 2.0), "frequency contribution is capped")

	assert.Equal(t, 0.0, cancellationComponent(0.01))
	assert.Equal(t, 0.5, cancellationComponent(0.07))
	assert.Equal(t, 1.0, cancellationComponent(0.15))
	assert.Equal(t, 3.0, cancellationComponent(0.30))

	assert.Equal(t, 0.0, regularityComponent(0.9))
	assert.Equal(t, 0.3, regularityComponent(0.7))
	assert.Equal(t, 0.7, regularityComponent(0.5))
	assert.Equal(t, 1.0, regularityComponent(0.2))

	assert.Equal(t, 0.5, seasonComponent(1.2))
	assert.Equal(t, 0.3, seasonComponent(1.12))
	assert.Equal(t, 0.0, seasonComponent(1.0))

	assert.Equal(t, 0.0, durationComponent(60))
	assert.Equal(t, 0.2, durationComponent(300))
	assert.Equal(t, 0.4, durationComponent(600))
	assert.InDelta(t, 1.1, durationComponent(24*60), 0.001)
}

func TestRecommendationsSubset(t *testing.T) {
	m := RuleBasedModel{}

	documented := []string{
		"Consider travel insurance for this trip.",
		"Arrive early at transfer points; connections are tight.",
		"River crossings are weather-sensitive; check conditions before departure.",
		"Book early: vehicles on this route fill up.",
		"Verify the schedule shortly before departure; service is irregular.",
		"Cancellations are common on this route; consider alternatives.",
	}

	a := m.Predict(Features{
		TransferCount:      3,
		HasFerry:           true,
		AvgOccupancy:       0.95,
		ScheduleRegularity: 0.5,
		CancellationRate90: 0.2,
		WeatherRisk:        1.0,
		SeasonFactor:       1.0,
	})
	require.NotEmpty(t, a.Recommendations)
	for _, rec := range a.Recommendations {
		assert.Contains(t, documented, rec)
	}
	assert.Contains(t, a.Recommendations, "Consider travel insurance for this trip.")

	b := m.Predict(Features{ScheduleRegularity: 1.0, SeasonFactor: 1.0})
	assert.Empty(t, b.Recommendations)
}

func TestSeasonFactor(t *testing.T) {
	// Wednesday in deep winter.
	winter := time.Date(2026, 1, 14, 12, 0, 0, 0, time.UTC)
	assert.InDelta(t, 1.2, SeasonFactor(winter), 0.001)

	// Saturday in summer.
	summerWeekend := time.Date(2026, 7, 18, 12, 0, 0, 0, time.UTC)
	assert.InDelta(t, 1.1*1.1, SeasonFactor(summerWeekend), 0.001)

	// Plain spring weekday.
	spring := time.Date(2026, 4, 15, 12, 0, 0, 0, time.UTC)
	assert.InDelta(t, 1.0, SeasonFactor(spring), 0.001)
}

func TestBuildFeatures(t *testing.T) {
	day := time.Date(2026, 8, 24, 8, 0, 0, 0, time.UTC)

	ferry := model.SegmentDetail{
		Segment:         model.Segment{ID: "seg-ferry", RouteID: "r-ferry", Kind: model.TransportKindFerry},
		DurationMinutes: 90,
		TransferMinutes: 45,
		Departure:       day,
		Arrival:         day.Add(90 * time.Minute),
		Flight:          &model.Flight{ID: "f1", Seats: 3},
	}
	bus := busSegment("seg-bus", 120)

	c := Collected{
		History: map[string]SegmentHistory{
			"seg-ferry": {AvgDelay90: 30, DelayFrequency: 0.2, CancellationRate90: 0.1, AvgOccupancy: 0.9},
			"seg-bus":   {AvgDelay90: 10, AvgOccupancy: 0.5},
		},
		Regularity:   0.8,
		WeatherRisk:  0.4,
		SeasonFactor: 1.1,
	}

	f := BuildFeatures(simpleItinerary(bus, ferry), c)

	assert.Equal(t, 2, f.SegmentCount)
	assert.True(t, f.HasFerry)
	assert.True(t, f.HasRiverTransport)
	assert.True(t, f.HasMixedTransport)
	assert.True(t, f.HasBus)
	assert.Equal(t, 120.0, f.LongestSegmentMinutes)
	assert.Equal(t, 45.0, f.ShortestTransferMinutes)
	assert.Equal(t, 255.0, f.TotalDurationMinutes)
	assert.InDelta(t, 20.0, f.AvgDelay90, 0.001)
	assert.InDelta(t, 0.05, f.CancellationRate90, 0.001)
	assert.InDelta(t, 0.7, f.AvgOccupancy, 0.001)
	assert.Equal(t, 1, f.HighOccupancySegments)
	assert.Equal(t, 1, f.LowAvailabilitySegments)
	assert.Equal(t, 0.8, f.ScheduleRegularity)

	vec := f.Vector()
	assert.Equal(t, 1.0, vec["has_ferry"])
	assert.Equal(t, 1.0, vec["has_mixed_transport"])
	assert.InDelta(t, 255.0/60, vec["total_duration_hours"], 0.001)
}

package risk

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakhatrans/routegraph/model"
)

type failingHistory struct{}

func (failingHistory) SegmentHistory(ctx context.Context, segmentID string) (SegmentHistory, error) {
	return SegmentHistory{}, errors.New("history store down")
}

type failingWeather struct{}

func (failingWeather) Risk(ctx context.Context, city string, date time.Time) (float64, error) {
	return 0, errors.New("weather api down")
}

func TestEngineAssessHealthy(t *testing.T) {
	e := NewEngine(zerolog.Nop())

	it := simpleItinerary(busSegment("seg-1", 60))
	a := e.Assess(context.Background(), it)

	assert.GreaterOrEqual(t, a.Score, 1)
	assert.LessOrEqual(t, a.Score, 10)
	assert.Equal(t, model.BandForScore(a.Score), a.Band)
	assert.NotEmpty(t, a.Description)
}

func TestEngineAssessDegradedHistory(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	e.History = failingHistory{}

	a := e.Assess(context.Background(), simpleItinerary(busSegment("seg-1", 60)))
	assert.Equal(t, 5, a.Score)
	assert.Equal(t, model.RiskMedium, a.Band)
	require.Len(t, a.Recommendations, 1)
	assert.Contains(t, a.Recommendations[0], "history")
}

func TestEngineAssessDegradedWeather(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	e.Weather = failingWeather{}

	a := e.Assess(context.Background(), simpleItinerary(busSegment("seg-1", 60)))
	assert.Equal(t, 5, a.Score)
	assert.Equal(t, model.RiskMedium, a.Band)
}

func TestEngineAssessVirtualItineraryIsMedium(t *testing.T) {
	e := NewEngine(zerolog.Nop())

	virtual := model.SegmentDetail{
		Segment: model.Segment{
			ID:      "virtual-route-a-b:0",
			RouteID: "virtual-route-a-b",
			Kind:    model.TransportKindBus,
		},
		DurationMinutes: 180,
	}
	a := e.Assess(context.Background(), simpleItinerary(virtual))
	assert.Equal(t, 5, a.Score)
	assert.Equal(t, model.RiskMedium, a.Band)
}

func TestEngineCollectSubstitutesDefaults(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	e.History = failingHistory{}
	e.Weather = failingWeather{}

	c := e.Collect(context.Background(), simpleItinerary(busSegment("seg-1", 60)))

	assert.ElementsMatch(t, []string{"history", "weather"}, c.Degraded)
	assert.Empty(t, c.History)
	assert.Equal(t, 0.0, c.WeatherRisk)
	assert.Equal(t, 1.0, c.Regularity)
	assert.Greater(t, c.SeasonFactor, 0.0)
}

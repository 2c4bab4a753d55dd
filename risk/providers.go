package risk

import (
	"context"
	"time"
)

// Historical reliability signals for one segment.
type SegmentHistory struct {
	AvgDelay30         float64 `json:"avgDelay30"`
	AvgDelay60         float64 `json:"avgDelay60"`
	AvgDelay90         float64 `json:"avgDelay90"`
	DelayFrequency     float64 `json:"delayFrequency"`
	CancellationRate30 float64 `json:"cancellationRate30"`
	CancellationRate90 float64 `json:"cancellationRate90"`
	AvgOccupancy       float64 `json:"avgOccupancy"`
}

// Sources consulted when assessing an itinerary. Implementations may
// be backed by the relational store, external APIs, or fixtures; each
// call carries the caller's context and should honor its deadline.
type HistoryProvider interface {
	SegmentHistory(ctx context.Context, segmentID string) (SegmentHistory, error)
}

type RegularityProvider interface {
	// Schedule regularity for a route, in [0,1]. Higher is more
	// regular.
	Regularity(ctx context.Context, routeID string) (float64, error)
}

type WeatherProvider interface {
	// Weather risk along a leg, in [0,1].
	Risk(ctx context.Context, city string, date time.Time) (float64, error)
}

type SeasonalityProvider interface {
	Factor(ctx context.Context, date time.Time) (float64, error)
}

// NoHistory reports empty history for every segment. Stands in when
// no historical store is wired up.
type NoHistory struct{}

func (NoHistory) SegmentHistory(ctx context.Context, segmentID string) (SegmentHistory, error) {
	return SegmentHistory{}, nil
}

// FixedRegularity reports the same regularity for every route.
type FixedRegularity float64

func (r FixedRegularity) Regularity(ctx context.Context, routeID string) (float64, error) {
	return float64(r), nil
}

// NoWeather reports zero weather risk.
type NoWeather struct{}

func (NoWeather) Risk(ctx context.Context, city string, date time.Time) (float64, error) {
	return 0, nil
}

// CalendarSeasonality derives the seasonal multiplier from the date:
// deep winter raises it by 1.2, high summer by 1.1, and weekends add
// another 1.1 on top of either.
type CalendarSeasonality struct{}

func (CalendarSeasonality) Factor(ctx context.Context, date time.Time) (float64, error) {
	return SeasonFactor(date), nil
}

func SeasonFactor(date time.Time) float64 {
	factor := 1.0
	switch date.Month() {
	case time.December, time.January, time.February:
		factor *= 1.2
	case time.June, time.July, time.August:
		factor *= 1.1
	}
	if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
		factor *= 1.1
	}
	return factor
}

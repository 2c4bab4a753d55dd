package risk

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sakhatrans/routegraph/model"
)

// Engine collects signals for an itinerary and scores it. Collection
// fans out to all sources in parallel; a failing source degrades the
// assessment instead of failing the request.
type Engine struct {
	History     HistoryProvider
	Regularity  RegularityProvider
	Weather     WeatherProvider
	Seasonality SeasonalityProvider
	Model       Model

	Timeout time.Duration

	log zerolog.Logger
}

func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{
		History:     NoHistory{},
		Regularity:  FixedRegularity(1.0),
		Weather:     NoWeather{},
		Seasonality: CalendarSeasonality{},
		Model:       RuleBasedModel{},
		Timeout:     30 * time.Second,
		log:         log.With().Str("module", "risk").Logger(),
	}
}

// Gathers signals from all providers in parallel. Provider failures
// are recorded in Degraded with safe defaults substituted; Collect
// itself never fails.
func (e *Engine) Collect(ctx context.Context, it *model.Itinerary) Collected {
	ctx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	c := Collected{
		History:      map[string]SegmentHistory{},
		Regularity:   1.0,
		SeasonFactor: 1.0,
	}

	var g errgroup.Group
	var historyErr, regularityErr, weatherErr, seasonErr error

	histories := make([]SegmentHistory, len(it.Segments))
	g.Go(func() error {
		for i, seg := range it.Segments {
			h, err := e.History.SegmentHistory(ctx, seg.Segment.ID)
			if err != nil {
				historyErr = err
				return nil
			}
			histories[i] = h
		}
		return nil
	})

	var regularity float64
	g.Go(func() error {
		total := 0.0
		n := 0
		for _, seg := range it.Segments {
			r, err := e.Regularity.Regularity(ctx, seg.Segment.RouteID)
			if err != nil {
				regularityErr = err
				return nil
			}
			total += r
			n++
		}
		if n > 0 {
			regularity = total / float64(n)
		}
		return nil
	})

	var weather float64
	g.Go(func() error {
		w, err := e.Weather.Risk(ctx, it.To, it.Departure)
		if err != nil {
			weatherErr = err
			return nil
		}
		weather = w
		return nil
	})

	var season float64
	g.Go(func() error {
		s, err := e.Seasonality.Factor(ctx, it.Departure)
		if err != nil {
			seasonErr = err
			return nil
		}
		season = s
		return nil
	})

	// The goroutines stash errors instead of returning them, so Wait
	// never fails; it only joins the fan-out.
	_ = g.Wait()

	if historyErr != nil {
		c.Degraded = append(c.Degraded, "history")
		e.log.Warn().Err(historyErr).Msg("history provider failed")
	} else {
		for i, seg := range it.Segments {
			c.History[seg.Segment.ID] = histories[i]
		}
	}
	if regularityErr != nil {
		c.Degraded = append(c.Degraded, "regularity")
		e.log.Warn().Err(regularityErr).Msg("regularity provider failed")
	} else {
		c.Regularity = regularity
	}
	if weatherErr != nil {
		c.Degraded = append(c.Degraded, "weather")
		e.log.Warn().Err(weatherErr).Msg("weather provider failed")
	} else {
		c.WeatherRisk = weather
	}
	if seasonErr != nil {
		c.Degraded = append(c.Degraded, "seasonality")
		e.log.Warn().Err(seasonErr).Msg("seasonality provider failed")
	} else {
		c.SeasonFactor = season
	}

	return c
}

// Scores an itinerary. When the history or weather source failed the
// engine falls back to the default medium assessment; the itinerary
// itself is unaffected.
func (e *Engine) Assess(ctx context.Context, it *model.Itinerary) model.RiskAssessment {
	// Synthesized routes have no operating history to score against,
	// so any itinerary using one gets the cautious default.
	for _, seg := range it.Segments {
		if strings.HasPrefix(seg.Segment.RouteID, "virtual-route-") {
			return DefaultAssessment([]string{"history"})
		}
	}

	c := e.Collect(ctx, it)

	for _, source := range c.Degraded {
		if source == "history" || source == "weather" {
			return DefaultAssessment(c.Degraded)
		}
	}

	return e.Model.Predict(BuildFeatures(it, c))
}

package risk

import (
	"fmt"
	"math"

	"github.com/sakhatrans/routegraph/model"
)

// Model scores a feature record. The rule-based model below is the
// only implementation today; a learned model plugs in behind the same
// interface.
type Model interface {
	Predict(f Features) model.RiskAssessment
}

// RuleBasedModel sums nine bounded components on top of a base of
// 1.0 and clamps the rounded result to 1..10.
type RuleBasedModel struct{}

func (RuleBasedModel) Predict(f Features) model.RiskAssessment {
	r := 1.0
	r += transferComponent(f.TransferCount)
	r += transportComponent(f)
	r += delayComponent(f.AvgDelay90, f.DelayFrequency)
	r += cancellationComponent(f.CancellationRate90)
	r += occupancyComponent(f)
	r += regularityComponent(f.ScheduleRegularity)
	r += f.WeatherRisk * 1.5
	r += seasonComponent(f.SeasonFactor)
	r += durationComponent(f.TotalDurationMinutes)

	score := int(math.Round(r))
	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}

	band := model.BandForScore(score)
	return model.RiskAssessment{
		Score:           score,
		Band:            band,
		Description:     describe(band),
		Recommendations: recommendations(score, f),
	}
}

func transferComponent(n int) float64 {
	switch n {
	case 0:
		return 0
	case 1:
		return 0.5
	case 2:
		return 1.0
	}
	return 1.5 + 0.5*float64(n-2)
}

func transportComponent(f Features) float64 {
	c := 0.0
	if f.HasFerry || f.HasRiverTransport {
		c += 1.5
	}
	if f.HasMixedTransport {
		c += 0.5
	}
	if f.HasBus {
		c += 0.3
	}
	return c
}

func delayComponent(avg90, frequency float64) float64 {
	var c float64
	switch {
	case avg90 < 15:
		c = 0
	case avg90 < 30:
		c = 0.5
	case avg90 < 60:
		c = 1.0
	default:
		c = 1.5 + (avg90-60)/60
	}
	c += frequency * 2
	return math.Min(c, 2)
}

func cancellationComponent(rate float64) float64 {
	switch {
	case rate < 0.05:
		return 0
	case rate < 0.10:
		return 0.5
	case rate < 0.20:
		return 1.0
	}
	return 1.5 + rate*5
}

func occupancyComponent(f Features) float64 {
	c := 0.0
	if f.AvgOccupancy > 0.9 {
		c += 1.0
	} else if f.AvgOccupancy > 0.8 {
		c += 0.5
	}
	c += 0.3 * float64(f.HighOccupancySegments)
	c += 0.5 * float64(f.LowAvailabilitySegments)
	return math.Min(c, 2)
}

func regularityComponent(reg float64) float64 {
	switch {
	case reg > 0.8:
		return 0
	case reg > 0.6:
		return 0.3
	case reg > 0.4:
		return 0.7
	}
	return 1.0
}

func seasonComponent(factor float64) float64 {
	switch {
	case factor > 1.15:
		return 0.5
	case factor > 1.1:
		return 0.3
	}
	return 0
}

func durationComponent(minutes float64) float64 {
	h := minutes / 60
	switch {
	case h < 2:
		return 0
	case h < 6:
		return 0.2
	case h < 12:
		return 0.4
	}
	return 0.6 + (h-12)/24
}

func describe(band model.RiskBand) string {
	switch band {
	case model.RiskVeryLow:
		return "Very low risk: a routine trip with no notable reliability concerns."
	case model.RiskLow:
		return "Low risk: minor delays possible, no structural concerns."
	case model.RiskMedium:
		return "Medium risk: plan some slack around transfers and departures."
	case model.RiskHigh:
		return "High risk: delays or disruptions are likely on parts of this trip."
	}
	return "Very high risk: this trip is fragile; consider rebooking or rerouting."
}

func recommendations(score int, f Features) []string {
	var recs []string
	if score >= 7 {
		recs = append(recs, "Consider travel insurance for this trip.")
	}
	if f.TransferCount > 2 {
		recs = append(recs, "Arrive early at transfer points; connections are tight.")
	}
	if f.HasFerry || f.HasRiverTransport {
		recs = append(recs, "River crossings are weather-sensitive; check conditions before departure.")
	}
	if f.AvgOccupancy > 0.9 {
		recs = append(recs, "Book early: vehicles on this route fill up.")
	}
	if f.ScheduleRegularity > 0 && f.ScheduleRegularity < 0.6 {
		recs = append(recs, "Verify the schedule shortly before departure; service is irregular.")
	}
	if f.CancellationRate90 > 0.1 {
		recs = append(recs, "Cancellations are common on this route; consider alternatives.")
	}
	return recs
}

// DefaultAssessment is returned when the collectors cannot supply
// enough signal to score the itinerary.
func DefaultAssessment(degraded []string) model.RiskAssessment {
	return model.RiskAssessment{
		Score:       5,
		Band:        model.RiskMedium,
		Description: "Medium risk: assessment degraded, defaulting to a cautious estimate.",
		Recommendations: []string{
			fmt.Sprintf("Risk data sources unavailable (%v); treat this assessment as approximate.", degraded),
		},
	}
}

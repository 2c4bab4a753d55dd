package risk

import (
	"math"

	"github.com/sakhatrans/routegraph/model"
)

// The feature record the model scores. Built from an itinerary plus
// the collected historical signals.
type Features struct {
	SegmentCount  int
	TransferCount int

	HasFerry          bool
	HasRiverTransport bool
	HasMixedTransport bool
	HasBus            bool

	LongestSegmentMinutes   float64
	ShortestTransferMinutes float64
	TotalDurationMinutes    float64

	AvgDelay90         float64
	DelayFrequency     float64
	CancellationRate90 float64

	AvgOccupancy            float64
	HighOccupancySegments   int
	LowAvailabilitySegments int

	ScheduleRegularity float64
	WeatherRisk        float64
	SeasonFactor       float64
}

// Aggregated signals gathered by the collector.
type Collected struct {
	History      map[string]SegmentHistory
	Regularity   float64
	WeatherRisk  float64
	SeasonFactor float64

	// Names of sources that failed; non-empty means the assessment
	// runs degraded.
	Degraded []string
}

const (
	highOccupancyThreshold = 0.85
	lowAvailabilitySeats   = 5
)

// Derives the feature record from an itinerary and collected
// signals. River boats are the only ferry service in the region, so
// ferry presence doubles as river-transport presence.
func BuildFeatures(it *model.Itinerary, c Collected) Features {
	f := Features{
		SegmentCount:       len(it.Segments),
		TransferCount:      it.TransferCount,
		ScheduleRegularity: c.Regularity,
		WeatherRisk:        c.WeatherRisk,
		SeasonFactor:       c.SeasonFactor,
	}

	kinds := map[model.TransportKind]bool{}
	shortestTransfer := math.Inf(1)
	totalOccupancy := 0.0
	occupancySamples := 0

	for _, seg := range it.Segments {
		kinds[seg.Segment.Kind] = true
		if seg.Segment.Kind == model.TransportKindFerry {
			f.HasFerry = true
			f.HasRiverTransport = true
		}
		if seg.Segment.Kind == model.TransportKindBus {
			f.HasBus = true
		}

		if seg.DurationMinutes > f.LongestSegmentMinutes {
			f.LongestSegmentMinutes = seg.DurationMinutes
		}
		if seg.TransferMinutes > 0 && seg.TransferMinutes < shortestTransfer {
			shortestTransfer = seg.TransferMinutes
		}
		f.TotalDurationMinutes += seg.DurationMinutes + seg.TransferMinutes

		h, found := c.History[seg.Segment.ID]
		if found {
			f.AvgDelay90 += h.AvgDelay90
			f.DelayFrequency += h.DelayFrequency
			f.CancellationRate90 += h.CancellationRate90
			if h.AvgOccupancy > 0 {
				totalOccupancy += h.AvgOccupancy
				occupancySamples++
				if h.AvgOccupancy > highOccupancyThreshold {
					f.HighOccupancySegments++
				}
			}
		}
		if seg.Flight != nil && seg.Flight.Seats > 0 && seg.Flight.Seats <= lowAvailabilitySeats {
			f.LowAvailabilitySegments++
		}
	}

	if n := len(it.Segments); n > 0 {
		f.AvgDelay90 /= float64(n)
		f.DelayFrequency /= float64(n)
		f.CancellationRate90 /= float64(n)
	}
	if occupancySamples > 0 {
		f.AvgOccupancy = totalOccupancy / float64(occupancySamples)
	}
	if !math.IsInf(shortestTransfer, 1) {
		f.ShortestTransferMinutes = shortestTransfer
	}

	f.HasMixedTransport = len(kinds) > 1

	return f
}

// Serializes the record to a named numeric vector: durations in
// hours, booleans one-hot. This is the shape a future learned model
// would consume.
func (f Features) Vector() map[string]float64 {
	vec := map[string]float64{
		"segment_count":             float64(f.SegmentCount),
		"transfer_count":            float64(f.TransferCount),
		"longest_segment_hours":     f.LongestSegmentMinutes / 60,
		"shortest_transfer_hours":   f.ShortestTransferMinutes / 60,
		"total_duration_hours":      f.TotalDurationMinutes / 60,
		"avg_delay_90":              f.AvgDelay90,
		"delay_frequency":           f.DelayFrequency,
		"cancellation_rate_90":      f.CancellationRate90,
		"avg_occupancy":             f.AvgOccupancy,
		"high_occupancy_segments":   float64(f.HighOccupancySegments),
		"low_availability_segments": float64(f.LowAvailabilitySegments),
		"schedule_regularity":       f.ScheduleRegularity,
		"weather_risk":              f.WeatherRisk,
		"season_factor":             f.SeasonFactor,
	}
	for name, set := range map[string]bool{
		"has_ferry":           f.HasFerry,
		"has_river_transport": f.HasRiverTransport,
		"has_mixed_transport": f.HasMixedTransport,
		"has_bus":             f.HasBus,
	} {
		if set {
			vec[name] = 1
		} else {
			vec[name] = 0
		}
	}
	return vec
}

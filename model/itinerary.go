package model

import "time"

// The route-level slice a graph edge was cut from: one consecutive
// stop pair of one route.
type Segment struct {
	ID         string        `json:"id"`
	RouteID    string        `json:"routeId"`
	Kind       TransportKind `json:"kind"`
	EstMinutes float64       `json:"estMinutes,omitempty"`
	BasePrice  float64       `json:"basePrice,omitempty"`
}

// One traversed edge with its selected flight and derived timing.
type SegmentDetail struct {
	Segment         Segment   `json:"segment"`
	Flight          *Flight   `json:"flight"`
	Departure       time.Time `json:"departure"`
	Arrival         time.Time `json:"arrival"`
	DurationMinutes float64   `json:"durationMinutes"`
	Price           float64   `json:"price"`
	TransferMinutes float64   `json:"transferMinutes"`
}

// A timed, priced realization of a path through the route graph.
type Itinerary struct {
	From       string          `json:"from"`
	To         string          `json:"to"`
	Date       string          `json:"date"`
	Passengers int             `json:"passengers"`
	Segments   []SegmentDetail `json:"segments"`

	TotalDurationMinutes float64  `json:"totalDurationMinutes"`
	TotalPrice           float64  `json:"totalPrice"`
	TransferCount        int      `json:"transferCount"`
	TransportTypes       []string `json:"transportTypes"`

	Departure time.Time `json:"departure"`
	Arrival   time.Time `json:"arrival"`
}

type RiskBand string

const (
	RiskVeryLow  RiskBand = "VERY_LOW"
	RiskLow      RiskBand = "LOW"
	RiskMedium   RiskBand = "MEDIUM"
	RiskHigh     RiskBand = "HIGH"
	RiskVeryHigh RiskBand = "VERY_HIGH"
)

// Maps a 1..10 score onto its band.
func BandForScore(score int) RiskBand {
	switch {
	case score <= 2:
		return RiskVeryLow
	case score <= 4:
		return RiskLow
	case score <= 6:
		return RiskMedium
	case score <= 8:
		return RiskHigh
	}
	return RiskVeryHigh
}

// The qualitative risk attached to an itinerary.
type RiskAssessment struct {
	Score           int      `json:"score"`
	Band            RiskBand `json:"band"`
	Description     string   `json:"description"`
	Recommendations []string `json:"recommendations,omitempty"`
}

package model

// Holds the core domain types shared by ingestion, graph building and
// routing.

import (
	"fmt"
	"strings"
	"time"
)

type TransportKind int

const (
	TransportKindUnknown TransportKind = iota
	TransportKindAirplane
	TransportKindBus
	TransportKindTrain
	TransportKindFerry
	TransportKindTaxi
)

func (k TransportKind) String() string {
	switch k {
	case TransportKindAirplane:
		return "airplane"
	case TransportKindBus:
		return "bus"
	case TransportKindTrain:
		return "train"
	case TransportKindFerry:
		return "ferry"
	case TransportKindTaxi:
		return "taxi"
	}
	return "unknown"
}

// Maps free-form upstream transport labels (Russian and English, any
// case) onto a TransportKind. Unrecognized labels default to bus, the
// dominant mode in the region.
func ParseTransportKind(s string) TransportKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "airplane", "plane", "air", "самолет", "самолёт", "авиа":
		return TransportKindAirplane
	case "bus", "автобус":
		return TransportKindBus
	case "train", "rail", "поезд", "жд", "электричка":
		return TransportKindTrain
	case "ferry", "boat", "паром", "теплоход", "судно":
		return TransportKindFerry
	case "taxi", "такси", "маршрутка":
		return TransportKindTaxi
	}
	return TransportKindBus
}

type StopKind int

const (
	StopKindGeneric StopKind = iota
	StopKindAirport
	StopKindRailway
	StopKindFerryTerminal
)

func (k StopKind) String() string {
	switch k {
	case StopKindAirport:
		return "airport"
	case StopKindRailway:
		return "railway"
	case StopKindFerryTerminal:
		return "ferry_terminal"
	}
	return "generic"
}

type SourceMode int

const (
	SourceModeUnknown SourceMode = iota
	SourceModeReal
	SourceModeRecovery
	SourceModeMock
)

func (m SourceMode) String() string {
	switch m {
	case SourceModeReal:
		return "real"
	case SourceModeRecovery:
		return "recovery"
	case SourceModeMock:
		return "mock"
	}
	return "unknown"
}

type FlightStatus string

const (
	FlightStatusScheduled FlightStatus = "scheduled"
	FlightStatusDelayed   FlightStatus = "delayed"
	FlightStatusCancelled FlightStatus = "cancelled"
)

// A physical or synthesized boarding point. Virtual stops exist only
// to guarantee that every reference city is reachable; their IDs are
// a pure function of the normalized city key.
type Stop struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Lat     *float64 `json:"lat,omitempty"`
	Lon     *float64 `json:"lon,omitempty"`
	CityKey string   `json:"cityKey"`
	Kind    StopKind `json:"kind"`
	Virtual bool     `json:"virtual"`
}

// An ordered sequence of at least two stops served by one transport
// kind. Every StopID must exist in the dataset the route belongs to.
type Route struct {
	ID       string        `json:"id"`
	Number   string        `json:"number,omitempty"`
	Kind     TransportKind `json:"kind"`
	StopIDs  []string      `json:"stopIds"`
	BaseFare float64       `json:"baseFare,omitempty"`
	Operator string        `json:"operator,omitempty"`
	Virtual  bool          `json:"virtual"`

	// Optional per-hop travel time estimate in minutes, as reported
	// upstream. Zero means unknown.
	EstMinutes float64 `json:"estMinutes,omitempty"`
}

// A single timed traversal of one edge of a route.
type Flight struct {
	ID        string       `json:"id"`
	RouteID   string       `json:"routeId"`
	FromStop  string       `json:"fromStop"`
	ToStop    string       `json:"toStop"`
	Departure time.Time    `json:"departure"`
	Arrival   time.Time    `json:"arrival"`
	Price     float64      `json:"price"`
	Seats     int          `json:"seats"`
	Status    FlightStatus `json:"status"`
}

func (f *Flight) DurationMinutes() float64 {
	return f.Arrival.Sub(f.Departure).Minutes()
}

// An immutable snapshot of the transport network. Exactly one dataset
// is active at a time: the one the published graph was built from.
type Dataset struct {
	Version   string     `json:"version"`
	Hash      string     `json:"hash"`
	Mode      SourceMode `json:"mode"`
	Quality   int        `json:"quality"`
	CreatedAt time.Time  `json:"createdAt"`
	Active    bool       `json:"active"`

	Stops   []*Stop   `json:"stops"`
	Routes  []*Route  `json:"routes"`
	Flights []*Flight `json:"flights"`
}

// Index of stops by ID. Built on demand: datasets are immutable but
// small enough that callers index once per pass.
func (d *Dataset) StopIndex() map[string]*Stop {
	idx := make(map[string]*Stop, len(d.Stops))
	for _, s := range d.Stops {
		idx[s.ID] = s
	}
	return idx
}

func (d *Dataset) StopsByCity() map[string][]*Stop {
	byCity := map[string][]*Stop{}
	for _, s := range d.Stops {
		byCity[s.CityKey] = append(byCity[s.CityKey], s)
	}
	return byCity
}

// Summarizes dataset completeness as an integer 0..100. Three
// subscores are averaged: stops (presence + coordinate coverage),
// routes (presence + operator/fare coverage), flights (presence +
// price coverage).
func QualityScore(stops []*Stop, routes []*Route, flights []*Flight) int {
	stopScore := 0.0
	if len(stops) > 0 {
		withCoords := 0
		for _, s := range stops {
			if s.Lat != nil && s.Lon != nil {
				withCoords++
			}
		}
		stopScore = 50 + 50*float64(withCoords)/float64(len(stops))
	}

	routeScore := 0.0
	if len(routes) > 0 {
		withMeta := 0
		for _, r := range routes {
			if r.Operator != "" || r.BaseFare > 0 {
				withMeta++
			}
		}
		routeScore = 50 + 50*float64(withMeta)/float64(len(routes))
	}

	flightScore := 0.0
	if len(flights) > 0 {
		withPrice := 0
		for _, f := range flights {
			if f.Price > 0 {
				withPrice++
			}
		}
		flightScore = 50 + 50*float64(withPrice)/float64(len(flights))
	}

	return int((stopScore + routeScore + flightScore) / 3)
}

// Metadata for a built graph, persisted alongside its payload.
type GraphMetadata struct {
	NodeCount      int       `json:"nodeCount"`
	EdgeCount      int       `json:"edgeCount"`
	BuiltAt        time.Time `json:"builtAt"`
	DatasetVersion string    `json:"datasetVersion"`
	Active         bool      `json:"active"`
}

func (m GraphMetadata) String() string {
	return fmt.Sprintf("graph %s: %d nodes, %d edges", m.DatasetVersion, m.NodeCount, m.EdgeCount)
}

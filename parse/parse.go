package parse

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/spkg/bom"

	"github.com/sakhatrans/routegraph/model"
)

// A full upstream snapshot, still in provider-native CSV form. The
// provider boundary hands this over; nothing downstream of this
// package ever sees provider field names.
type RawSnapshot struct {
	StopsCSV   []byte
	RoutesCSV  []byte
	FlightsCSV []byte
}

type stopCSV struct {
	ID   string `csv:"id"`
	Name string `csv:"name"`
	Lat  string `csv:"lat"`
	Lon  string `csv:"lon"`
	City string `csv:"city"`
	Kind string `csv:"kind"`
}

type routeCSV struct {
	ID         string `csv:"id"`
	Number     string `csv:"number"`
	Kind       string `csv:"kind"`
	Stops      string `csv:"stops"`
	Fare       string `csv:"fare"`
	Operator   string `csv:"operator"`
	EstMinutes string `csv:"est_minutes"`
}

type flightCSV struct {
	ID        string `csv:"id"`
	RouteID   string `csv:"route_id"`
	FromStop  string `csv:"from_stop"`
	ToStop    string `csv:"to_stop"`
	Departure string `csv:"departure"`
	Arrival   string `csv:"arrival"`
	Price     string `csv:"price"`
	Seats     string `csv:"seats"`
	Status    string `csv:"status"`
}

// Decoded snapshot records, normalized to model types but not yet
// validated against the unified reference.
type Records struct {
	Stops   []*model.Stop
	Routes  []*model.Route
	Flights []*model.Flight
}

func init() {
	// LazyCSVReader survives sloppy quoting in upstream exports. The
	// BOM reader strips unicode BOMs if present.
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		return gocsv.LazyCSVReader(bom.NewReader(in))
	})
}

// Decodes a raw snapshot into model records. Transport kinds are
// normalized (unknown labels default to bus), times are coerced from
// wall-clock HH:MM or ISO form, coordinates may be absent.
func Snapshot(raw *RawSnapshot) (*Records, error) {
	var stopRows []*stopCSV
	if err := gocsv.Unmarshal(bytes.NewReader(raw.StopsCSV), &stopRows); err != nil {
		return nil, errors.Wrap(err, "unmarshaling stops csv")
	}

	var routeRows []*routeCSV
	if err := gocsv.Unmarshal(bytes.NewReader(raw.RoutesCSV), &routeRows); err != nil {
		return nil, errors.Wrap(err, "unmarshaling routes csv")
	}

	var flightRows []*flightCSV
	if err := gocsv.Unmarshal(bytes.NewReader(raw.FlightsCSV), &flightRows); err != nil {
		return nil, errors.Wrap(err, "unmarshaling flights csv")
	}

	rec := &Records{}

	seenStop := map[string]bool{}
	for _, row := range stopRows {
		if row.ID == "" {
			return nil, errors.New("empty stop id")
		}
		if seenStop[row.ID] {
			return nil, errors.Errorf("repeated stop id %q", row.ID)
		}
		seenStop[row.ID] = true

		stop := &model.Stop{
			ID:      row.ID,
			Name:    strings.TrimSpace(row.Name),
			CityKey: strings.TrimSpace(row.City),
			Kind:    parseStopKind(row.Kind),
		}
		stop.Lat = parseCoord(row.Lat)
		stop.Lon = parseCoord(row.Lon)
		rec.Stops = append(rec.Stops, stop)
	}

	for _, row := range routeRows {
		if row.ID == "" {
			return nil, errors.New("empty route id")
		}
		stopIDs := splitStops(row.Stops)
		if len(stopIDs) < 2 {
			return nil, errors.Errorf("route %q has %d stops, need at least 2", row.ID, len(stopIDs))
		}
		fare, _ := strconv.ParseFloat(row.Fare, 64)
		est, _ := strconv.ParseFloat(row.EstMinutes, 64)
		rec.Routes = append(rec.Routes, &model.Route{
			ID:         row.ID,
			Number:     row.Number,
			Kind:       model.ParseTransportKind(row.Kind),
			StopIDs:    stopIDs,
			BaseFare:   fare,
			Operator:   strings.TrimSpace(row.Operator),
			EstMinutes: est,
		})
	}

	for _, row := range flightRows {
		if row.ID == "" {
			return nil, errors.New("empty flight id")
		}
		dep, err := CoerceTime(row.Departure)
		if err != nil {
			return nil, errors.Wrapf(err, "flight %q departure", row.ID)
		}
		arr, err := CoerceTime(row.Arrival)
		if err != nil {
			return nil, errors.Wrapf(err, "flight %q arrival", row.ID)
		}
		if arr.Before(dep) {
			return nil, errors.Errorf("flight %q arrives before it departs", row.ID)
		}
		price, _ := strconv.ParseFloat(row.Price, 64)
		seats, _ := strconv.Atoi(row.Seats)
		rec.Flights = append(rec.Flights, &model.Flight{
			ID:        row.ID,
			RouteID:   row.RouteID,
			FromStop:  row.FromStop,
			ToStop:    row.ToStop,
			Departure: dep,
			Arrival:   arr,
			Price:     price,
			Seats:     seats,
			Status:    parseStatus(row.Status),
		})
	}

	return rec, nil
}

// Renders the snapshot as canonical JSON and hashes it. Records are
// sorted by ID so the hash is stable across upstream reorderings.
func Hash(rec *Records) string {
	stops := append([]*model.Stop{}, rec.Stops...)
	sort.Slice(stops, func(i, j int) bool { return stops[i].ID < stops[j].ID })

	routes := append([]*model.Route{}, rec.Routes...)
	sort.Slice(routes, func(i, j int) bool { return routes[i].ID < routes[j].ID })

	flights := append([]*model.Flight{}, rec.Flights...)
	sort.Slice(flights, func(i, j int) bool { return flights[i].ID < flights[j].ID })

	canonical, _ := json.Marshal(struct {
		Stops   []*model.Stop   `json:"stops"`
		Routes  []*model.Route  `json:"routes"`
		Flights []*model.Flight `json:"flights"`
	}{stops, routes, flights})

	return fmt.Sprintf("%x", sha256.Sum256(canonical))
}

func parseCoord(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseStopKind(s string) model.StopKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "airport", "аэропорт":
		return model.StopKindAirport
	case "railway", "вокзал":
		return model.StopKindRailway
	case "ferry_terminal", "пристань":
		return model.StopKindFerryTerminal
	}
	return model.StopKindGeneric
}

func parseStatus(s string) model.FlightStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "delayed":
		return model.FlightStatusDelayed
	case "cancelled", "canceled":
		return model.FlightStatusCancelled
	}
	return model.FlightStatusScheduled
}

func splitStops(s string) []string {
	var out []string
	for _, part := range strings.Split(s, "|") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

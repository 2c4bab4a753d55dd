package normalize

import (
	"embed"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/spkg/bom"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed refdata/cities.csv refdata/airports.csv refdata/suburbs.csv
var refdata embed.FS

type cityCSV struct {
	City string  `csv:"city"`
	Lat  float64 `csv:"lat"`
	Lon  float64 `csv:"lon"`
}

type airportCSV struct {
	Airport string `csv:"airport"`
	City    string `csv:"city"`
}

type suburbCSV struct {
	Suburb string `csv:"suburb"`
	City   string `csv:"city"`
}

// Coordinates of a reference city.
type CityCoords struct {
	Lat float64
	Lon float64
}

// Normalizer maps arbitrary city labels to canonical city keys using
// the unified reference tables. Loaded once at startup and read-only
// afterwards.
type Normalizer struct {
	cities   map[string]CityCoords
	airports map[string]string
	suburbs  map[string]string
	order    []string

	lower cases.Caser
}

// Loads the embedded unified reference (cities with coordinates,
// airports and suburbs mapped to their main city).
func NewNormalizer() (*Normalizer, error) {
	n := &Normalizer{
		cities:   map[string]CityCoords{},
		airports: map[string]string{},
		suburbs:  map[string]string{},
		lower:    cases.Lower(language.Russian),
	}

	var cities []*cityCSV
	if err := readRef("refdata/cities.csv", &cities); err != nil {
		return nil, fmt.Errorf("loading cities reference: %w", err)
	}
	for _, c := range cities {
		key := n.fold(c.City)
		n.cities[key] = CityCoords{Lat: c.Lat, Lon: c.Lon}
		n.order = append(n.order, key)
	}

	var airports []*airportCSV
	if err := readRef("refdata/airports.csv", &airports); err != nil {
		return nil, fmt.Errorf("loading airports reference: %w", err)
	}
	for _, a := range airports {
		n.airports[n.fold(a.Airport)] = n.fold(a.City)
	}

	var suburbs []*suburbCSV
	if err := readRef("refdata/suburbs.csv", &suburbs); err != nil {
		return nil, fmt.Errorf("loading suburbs reference: %w", err)
	}
	for _, s := range suburbs {
		n.suburbs[n.fold(s.Suburb)] = n.fold(s.City)
	}

	return n, nil
}

func readRef(path string, out interface{}) error {
	f, err := refdata.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = bom.NewReader(f)
	if err := gocsv.Unmarshal(r, out); err != nil {
		return fmt.Errorf("unmarshaling %s: %w", path, err)
	}
	return nil
}

// Lexical normalization only: lowercase, ё→е, trim, collapse
// whitespace, strip city prefixes.
func (n *Normalizer) fold(s string) string {
	s = n.lower.String(s)
	s = strings.ReplaceAll(s, "ё", "е")
	s = strings.Join(strings.Fields(s), " ")

	for _, prefix := range []string{"г.", "город "} {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimSpace(strings.TrimPrefix(s, prefix))
		}
	}
	return s
}

// Maps an arbitrary input label to a canonical city key. Airport and
// suburb names resolve to their main city. Idempotent:
// Normalize(Normalize(x)) == Normalize(x).
func (n *Normalizer) Normalize(label string) string {
	key := n.fold(label)

	if city, ok := n.airports[key]; ok {
		key = city
	} else if city, ok := n.suburbs[key]; ok {
		key = city
	}

	return n.fold(key)
}

// Reports whether the key (after normalization) is a reference city.
func (n *Normalizer) Accepted(label string) bool {
	_, ok := n.cities[n.Normalize(label)]
	return ok
}

// Coordinates of a reference city, by any label resolving to it.
func (n *Normalizer) Coords(label string) (CityCoords, bool) {
	c, ok := n.cities[n.Normalize(label)]
	return c, ok
}

// All reference city keys, in reference order.
func (n *Normalizer) Cities() []string {
	out := make([]string, len(n.order))
	copy(out, n.order)
	return out
}

// Stable identifier for the virtual stop of a city. A pure function
// of the normalized city key, so re-runs and restarts produce the
// same ID.
func (n *Normalizer) VirtualStopID(city string) string {
	return "virtual-stop-" + n.Normalize(city)
}

// Stable identifier for a virtual route between two stops.
func VirtualRouteID(fromStopID, toStopID string) string {
	return "virtual-route-" + fromStopID + "-" + toStopID
}

package normalize

import (
	"fmt"
	"math"
	"strings"

	"github.com/sakhatrans/routegraph/model"
)

// Generic transit nouns that must never stand in for a city name.
var serviceWords = map[string]bool{
	"центральная":   true,
	"главный":       true,
	"пассажирский":  true,
	"международный": true,
	"внутренний":    true,
	"туймаада":      true,
	"туймада":       true,
	"аэропорт":      true,
	"вокзал":        true,
	"автостанция":   true,
	"станция":       true,
	"остановка":     true,
}

// Result of validating a single stop record.
type Result struct {
	Valid  bool
	Errors []string
}

// Validator rejects malformed stop records before they enter a
// dataset.
type Validator struct {
	norm *Normalizer
}

func NewValidator(norm *Normalizer) *Validator {
	return &Validator{norm: norm}
}

// Checks a stop record against the dataset admission rules. The city
// key is checked as given: service words are rejected before any
// airport or suburb resolution could mask them.
func (v *Validator) ValidateStop(stop *model.Stop) Result {
	var errs []string

	if len(strings.TrimSpace(stop.Name)) < 3 {
		errs = append(errs, fmt.Sprintf("stop name %q too short", stop.Name))
	}

	if stop.Lat != nil {
		if math.IsNaN(*stop.Lat) || math.IsInf(*stop.Lat, 0) || *stop.Lat < -90 || *stop.Lat > 90 {
			errs = append(errs, fmt.Sprintf("latitude %v out of range", *stop.Lat))
		}
	}
	if stop.Lon != nil {
		if math.IsNaN(*stop.Lon) || math.IsInf(*stop.Lon, 0) || *stop.Lon < -180 || *stop.Lon > 180 {
			errs = append(errs, fmt.Sprintf("longitude %v out of range", *stop.Lon))
		}
	}

	city := strings.TrimSpace(stop.CityKey)
	if city == "" {
		errs = append(errs, "missing city key")
	} else if serviceWords[v.norm.fold(city)] {
		errs = append(errs, fmt.Sprintf("city key %q is a service word", city))
	} else if !v.norm.Accepted(city) {
		errs = append(errs, fmt.Sprintf("city key %q not in unified reference", city))
	}

	return Result{Valid: len(errs) == 0, Errors: errs}
}

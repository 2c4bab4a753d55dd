package parse

import (
	"time"

	"github.com/pkg/errors"
)

var isoLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// Coerces an upstream timestamp into a time.Time. Accepts ISO forms
// and bare wall-clock HH:MM, which is anchored to the current date.
func CoerceTime(s string) (time.Time, error) {
	return CoerceTimeOn(time.Now(), s)
}

// Like CoerceTime, but wall-clock values are anchored to the date of
// base. ISO values are returned as-is.
func CoerceTimeOn(base time.Time, s string) (time.Time, error) {
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	if t, err := time.Parse("15:04", s); err == nil {
		return time.Date(
			base.Year(), base.Month(), base.Day(),
			t.Hour(), t.Minute(), 0, 0,
			base.Location(),
		), nil
	}
	if t, err := time.Parse("15:04:05", s); err == nil {
		return time.Date(
			base.Year(), base.Month(), base.Day(),
			t.Hour(), t.Minute(), t.Second(), 0,
			base.Location(),
		), nil
	}

	return time.Time{}, errors.Errorf("unparseable time %q", s)
}

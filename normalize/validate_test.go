package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakhatrans/routegraph/model"
)

func newValidator(t *testing.T) *Validator {
	norm, err := NewNormalizer()
	require.NoError(t, err)
	return NewValidator(norm)
}

func TestValidateStopAccepts(t *testing.T) {
	v := newValidator(t)

	lat, lon := 62.03, 129.73
	res := v.ValidateStop(&model.Stop{
		ID:      "stop-1",
		Name:    "Якутск автовокзал",
		Lat:     &lat,
		Lon:     &lon,
		CityKey: "Якутск",
	})
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
}

func TestValidateStopMissingCoordinatesOK(t *testing.T) {
	v := newValidator(t)

	res := v.ValidateStop(&model.Stop{
		ID:      "stop-1",
		Name:    "Вилюйск остановка",
		CityKey: "Вилюйск",
	})
	assert.True(t, res.Valid)
}

func TestValidateStopRejectsEverythingAtOnce(t *testing.T) {
	v := newValidator(t)

	lat, lon := 91.0, -181.0
	res := v.ValidateStop(&model.Stop{
		ID:      "stop-bad",
		Name:    "AB",
		Lat:     &lat,
		Lon:     &lon,
		CityKey: "туймаада",
	})
	assert.False(t, res.Valid)
	assert.Len(t, res.Errors, 4)
}

func TestValidateStopRejections(t *testing.T) {
	v := newValidator(t)
	lat, lon := 62.0, 129.0

	for name, stop := range map[string]*model.Stop{
		"short name": {
			Name: "АБ", Lat: &lat, Lon: &lon, CityKey: "Якутск",
		},
		"missing city": {
			Name: "Какая-то остановка", Lat: &lat, Lon: &lon,
		},
		"service word city": {
			Name: "Главный вокзал", Lat: &lat, Lon: &lon, CityKey: "вокзал",
		},
		"unknown city": {
			Name: "Остановка где-то", Lat: &lat, Lon: &lon, CityKey: "Монреаль",
		},
	} {
		res := v.ValidateStop(stop)
		assert.False(t, res.Valid, name)
		assert.Len(t, res.Errors, 1, name)
	}
}

func TestValidateStopServiceWordBeatsReference(t *testing.T) {
	v := newValidator(t)

	// "Туймаада" is an airport name that resolves to Якутск, but as a
	// city key it is a service word and must be rejected outright.
	res := v.ValidateStop(&model.Stop{
		Name:    "Аэропорт Туймаада",
		CityKey: "Туймаада",
	})
	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "service word")
}

func TestValidateStopCoordinateEdges(t *testing.T) {
	v := newValidator(t)

	for _, tc := range []struct {
		lat, lon float64
		valid    bool
	}{
		{90, 180, true},
		{-90, -180, true},
		{90.0001, 0, false},
		{0, -180.0001, false},
	} {
		res := v.ValidateStop(&model.Stop{
			Name:    "Тестовая остановка",
			Lat:     &tc.lat,
			Lon:     &tc.lon,
			CityKey: "Якутск",
		})
		assert.Equal(t, tc.valid, res.Valid, "lat=%v lon=%v", tc.lat, tc.lon)
	}
}

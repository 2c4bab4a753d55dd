package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCanonicalizes(t *testing.T) {
	n, err := NewNormalizer()
	require.NoError(t, err)

	for input, want := range map[string]string{
		"Якутск":       "якутск",
		"ЯКУТСК":       "якутск",
		"г. Якутск":    "якутск",
		"город Якутск": "якутск",
		"  Якутск  ":   "якутск",
		"Нерюнгри":     "нерюнгри",
		"Верхоянск":    "верхоянск",
		"Чёрский":      "черский",
		"Черский":      "черский",
		"Маган":        "якутск", // airport
		"Туймаада":     "якутск", // airport
		"Чульман":      "нерюнгри",
		"Жатай":        "якутск", // suburb
		"Марха":        "якутск",
	} {
		assert.Equal(t, want, n.Normalize(input), "input %q", input)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	n, err := NewNormalizer()
	require.NoError(t, err)

	inputs := []string{
		"Якутск", "г. Верхоянск", "Маган", "Жатай", "Чёрский",
		"не город вовсе", "", "   ", "Aldan",
	}
	for _, in := range inputs {
		once := n.Normalize(in)
		assert.Equal(t, once, n.Normalize(once), "input %q", in)
	}
}

func TestAcceptedAndCoords(t *testing.T) {
	n, err := NewNormalizer()
	require.NoError(t, err)

	assert.True(t, n.Accepted("Якутск"))
	assert.True(t, n.Accepted("Маган"))
	assert.False(t, n.Accepted("Монреаль"))
	assert.False(t, n.Accepted(""))

	c, ok := n.Coords("ЯКУТСК")
	require.True(t, ok)
	assert.InDelta(t, 62.0281, c.Lat, 0.001)
	assert.InDelta(t, 129.7326, c.Lon, 0.001)

	_, ok = n.Coords("нигде")
	assert.False(t, ok)
}

func TestCitiesStableOrder(t *testing.T) {
	n, err := NewNormalizer()
	require.NoError(t, err)

	first := n.Cities()
	second := n.Cities()
	require.NotEmpty(t, first)
	assert.Equal(t, first, second)
	assert.Contains(t, first, "якутск")
	assert.Contains(t, first, "верхоянск")
}

func TestVirtualStopIDStable(t *testing.T) {
	n, err := NewNormalizer()
	require.NoError(t, err)

	id := n.VirtualStopID("Верхоянск")
	assert.Equal(t, "virtual-stop-верхоянск", id)

	// Case and ё/е variants of the same city yield the same ID.
	assert.Equal(t, id, n.VirtualStopID("ВЕРХОЯНСК"))
	assert.Equal(t, id, n.VirtualStopID("г. Верхоянск"))
	assert.Equal(t,
		n.VirtualStopID("Чёрский"),
		n.VirtualStopID("Черский"),
	)
}

func TestVirtualRouteID(t *testing.T) {
	assert.Equal(t,
		"virtual-route-virtual-stop-верхоянск-stop-hub",
		VirtualRouteID("virtual-stop-верхоянск", "stop-hub"),
	)
}

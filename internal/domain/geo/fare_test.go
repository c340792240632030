package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversineKM(t *testing.T) {
	t.Run("zero distance", func(t *testing.T) {
		p := Point{Longitude: 71.43, Latitude: 51.13}
		assert.InDelta(t, 0, HaversineKM(p, p), 1e-9)
	})

	t.Run("one degree of latitude", func(t *testing.T) {
		got := HaversineKM(Point{}, Point{Latitude: 1})
		assert.InDelta(t, EarthRadiusKM*math.Pi/180, got, 1e-6)
	})
}

func TestFareIsSymmetric(t *testing.T) {
	pairs := [][2]Point{
		{{Longitude: 0, Latitude: 0}, {Longitude: 0.02, Latitude: -0.01}},
		{{Longitude: 71.43, Latitude: 51.13}, {Longitude: 71.41, Latitude: 51.16}},
		{{Longitude: -122.42, Latitude: 37.77}, {Longitude: -122.27, Latitude: 37.80}},
	}
	for _, pair := range pairs {
		assert.Equal(t, Fare(pair[0], pair[1]), Fare(pair[1], pair[0]))
	}
}

func TestFareIsMonotonicInDistance(t *testing.T) {
	origin := Point{}
	previous := Fare(origin, origin)
	assert.Equal(t, BaseFare, previous)

	for step := 1; step <= 50; step++ {
		next := Fare(origin, Point{Latitude: float64(step) * 0.01})
		assert.GreaterOrEqual(t, next, previous)
		previous = next
	}
}

func TestFareForDistance(t *testing.T) {
	tests := []struct {
		km   float64
		want int
	}{
		{0, 20},
		{1, 35},
		{1.97, 50},
		{-3, 20},
		{math.NaN(), 20},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FareForDistance(tt.km), "distance %v", tt.km)
	}
}

func TestSimulatedDestinationLibrary(t *testing.T) {
	got := SimulatedDestination(Point{}, "Library")

	assert.InDelta(t, -0.01685, got.Longitude, 1e-9)
	assert.InDelta(t, -0.0056, got.Latitude, 1e-9)
	assert.Equal(t, 50, Fare(Point{}, got))
}

func TestSimulatedDestinationIsDeterministic(t *testing.T) {
	pickup := Point{Longitude: 71.43, Latitude: 51.13}
	for _, label := range []string{"Library", "Airport", "Central Park", "Café Ölberg", ""} {
		assert.Equal(t, SimulatedDestination(pickup, label), SimulatedDestination(pickup, label))
	}
}

func TestSimulatedDestinationIsBounded(t *testing.T) {
	pickup := Point{Longitude: 10, Latitude: 20}
	labels := []string{"Library", "Airport", "Mall", "Station", "Museum", "Stadium", "東京駅", "a", "zz"}

	for _, label := range labels {
		got := SimulatedDestination(pickup, label)
		dLng := math.Abs(got.Longitude - pickup.Longitude)
		dLat := math.Abs(got.Latitude - pickup.Latitude)

		assert.GreaterOrEqual(t, dLng, 0.005-1e-12, label)
		assert.LessOrEqual(t, dLng, 0.02+1e-12, label)
		assert.GreaterOrEqual(t, dLat, 0.005-1e-12, label)
		assert.LessOrEqual(t, dLat, 0.02+1e-12, label)
	}
}

func TestSimulatedDestinationDiffersByLabel(t *testing.T) {
	pickup := Point{}
	labels := []string{"Library", "Airport", "Mall", "Station", "Museum", "Stadium", "Hospital", "University"}

	seen := make(map[Point]string, len(labels))
	for _, label := range labels {
		got := SimulatedDestination(pickup, label)
		_, dup := seen[got]
		require.False(t, dup, "labels %q and %q collide", seen[got], label)
		seen[got] = label
	}
}

func TestPointValidate(t *testing.T) {
	_, err := NewPoint(0, 91)
	assert.ErrorIs(t, err, ErrInvalidLatitude)

	_, err = NewPoint(-181, 0)
	assert.ErrorIs(t, err, ErrInvalidLongitude)

	p, err := NewPoint(71.4, 51.1)
	require.NoError(t, err)
	assert.Equal(t, "71.400000,51.100000", p.String())
}

package geo

import (
	"math"
	"unicode/utf16"
)

const (
	// EarthRadiusKM is the mean Earth radius used by HaversineKM.
	EarthRadiusKM = 6371.0

	BaseFare  = 20
	RatePerKM = 15

	// bounds of the simulated destination offset, in degrees
	minOffsetDegrees  = 0.005
	offsetSpanDegrees = 0.015
)

// HaversineKM returns the great-circle distance between a and b in kilometers.
func HaversineKM(a, b Point) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLng := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKM * c
}

// Fare returns base + round(distance_km * rate) for the trip between pickup and dropoff.
func Fare(pickup, dropoff Point) int {
	return FareForDistance(HaversineKM(pickup, dropoff))
}

// FareForDistance prices a distance in kilometers; negative distances price as zero.
func FareForDistance(distanceKM float64) int {
	if distanceKM < 0 || math.IsNaN(distanceKM) {
		distanceKM = 0
	}
	return BaseFare + int(math.Round(distanceKM*RatePerKM))
}

// SimulatedDestination derives a stable pseudo-coordinate near pickup from the destination
// label. It stands in for a geocoder: the same (pickup, label) always yields the same point,
// offset by 0.005..0.02 degrees on each axis in a direction taken from the label hash.
func SimulatedDestination(pickup Point, label string) Point {
	hash := labelHash(label)

	lngFactor := float64(absInt32(hash%100))/100*offsetSpanDegrees + minOffsetDegrees
	latFactor := float64(absInt32((hash>>8)%100))/100*offsetSpanDegrees + minOffsetDegrees

	lngDirection := 1.0
	if hash%2 != 0 {
		lngDirection = -1
	}
	latDirection := 1.0
	if (hash>>1)%2 != 0 {
		latDirection = -1
	}

	return Point{
		Longitude: pickup.Longitude + lngFactor*lngDirection,
		Latitude:  pickup.Latitude + latFactor*latDirection,
	}
}

// labelHash is the 32-bit "h*31 + c" string hash over UTF-16 code units.
func labelHash(label string) int32 {
	var hash int32
	for _, unit := range utf16.Encode([]rune(label)) {
		hash = (hash << 5) - hash + int32(unit)
	}
	return hash
}

func absInt32(v int32) int64 {
	if v < 0 {
		return -int64(v)
	}
	return int64(v)
}

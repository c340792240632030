package geo

import (
	"errors"
	"fmt"
)

// Point is a WGS84 position, stored and serialized as {longitude, latitude}.
type Point struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

var (
	ErrInvalidLatitude  = errors.New("latitude must be between -90 and 90")
	ErrInvalidLongitude = errors.New("longitude must be between -180 and 180")
)

// NewPoint builds a Point and validates its ranges.
func NewPoint(longitude, latitude float64) (Point, error) {
	point := Point{Longitude: longitude, Latitude: latitude}
	if err := point.Validate(); err != nil {
		return Point{}, err
	}
	return point, nil
}

// Validate checks latitude/longitude ranges.
func (point Point) Validate() error {
	if point.Latitude < -90 || point.Latitude > 90 {
		return ErrInvalidLatitude
	}
	if point.Longitude < -180 || point.Longitude > 180 {
		return ErrInvalidLongitude
	}
	return nil
}

// String returns "lng,lat" with six decimals.
func (point Point) String() string {
	return fmt.Sprintf("%.6f,%.6f", point.Longitude, point.Latitude)
}

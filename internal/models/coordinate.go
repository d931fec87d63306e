package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"
	gjson "github.com/twpayne/go-geom/encoding/geojson"
)

// Coordinate is a WGS84 position in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ParseCoordinate reads a "lat, lon" pair. Both halves must be present and
// numeric; anything else is an error.
func ParseCoordinate(raw string) (Coordinate, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return Coordinate{}, fmt.Errorf("coordinate %q: want \"lat, lon\"", raw)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("coordinate %q: latitude: %w", raw, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("coordinate %q: longitude: %w", raw, err)
	}
	c := Coordinate{Lat: lat, Lon: lon}
	if err := c.Validate(); err != nil {
		return Coordinate{}, err
	}
	return c, nil
}

// Validate checks that the coordinate lies on the globe.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) {
		return fmt.Errorf("coordinate %v, %v is not a number", c.Lat, c.Lon)
	}
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("latitude %v out of range", c.Lat)
	}
	if c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("longitude %v out of range", c.Lon)
	}
	return nil
}

// Point returns the coordinate as a geom point in (lon, lat) axis order.
func (c Coordinate) Point() *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{c.Lon, c.Lat}).SetSRID(4326)
}

// GeoJSON encodes the coordinate as a GeoJSON Point geometry.
func (c Coordinate) GeoJSON() ([]byte, error) {
	return gjson.Marshal(c.Point())
}

// CoordinateFromPoint converts a geom point back to a Coordinate.
func CoordinateFromPoint(p *geom.Point) Coordinate {
	return Coordinate{Lat: p.Y(), Lon: p.X()}
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f, %.6f", c.Lat, c.Lon)
}

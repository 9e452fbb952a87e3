package decision

import (
	"math"

	"github.com/sells-group/geocode-cli/internal/model"
)

// earthRadiusM is the spherical-approximation Earth radius.
const earthRadiusM = 6371000.0

// Meters returns the great-circle distance between two coordinates.
func Meters(a, b model.Coordinate) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(latA)*math.Cos(latB)*sinLon*sinLon
	return 2 * earthRadiusM * math.Asin(math.Sqrt(h))
}

// Distances computes the pairwise distance set. Each distance is nil when
// either endpoint is absent.
func Distances(src, primary, secondary *model.Coordinate) model.DistanceSet {
	var set model.DistanceSet
	if src != nil && primary != nil {
		d := Meters(*src, *primary)
		set.SourcePrimaryM = &d
	}
	if src != nil && secondary != nil {
		d := Meters(*src, *secondary)
		set.SourceSecondaryM = &d
	}
	if primary != nil && secondary != nil {
		d := Meters(*primary, *secondary)
		set.PrimarySecondaryM = &d
	}
	return set
}

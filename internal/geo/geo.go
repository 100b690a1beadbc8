// Package geo resolves GPS coordinates to nearby monitoring stations.
package geo

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/common"
	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/station"
)

const (
	earthRadiusKm = 6371.0

	DefaultRadiusKm = 50.0
	DefaultLimit    = 1
)

var ErrInvalidCoordinate = errors.New("coordinate out of range")

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64
	Lon float64
}

// Haversine returns the great-circle distance between a and b in kilometres.
func Haversine(a, b Point) float64 {
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

// NearbyStation is a station annotated with its distance from the query point.
type NearbyStation struct {
	station.Station
	DistanceKm float64 `json:"distanceKm"`
}

// Resolver searches the active station snapshot on every call. There is no
// spatial index; station counts stay in the low hundreds.
type Resolver struct {
	stations station.Source
}

func NewResolver(src station.Source) *Resolver {
	return &Resolver{stations: src}
}

// FindNearest returns up to limit active stations within radiusKm of
// (lat, lon), closest first. Non-positive radius and limit fall back to
// DefaultRadiusKm and DefaultLimit.
func (r *Resolver) FindNearest(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]NearbyStation, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, ErrInvalidCoordinate
	}
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	all, err := r.stations.ListActiveStations(ctx)
	if err != nil {
		return nil, err
	}

	origin := Point{Lat: lat, Lon: lon}
	found := make([]NearbyStation, 0, len(all))
	for _, st := range all {
		d := Haversine(origin, Point{Lat: st.Location.Lat, Lon: st.Location.Lon})
		if d > radiusKm {
			continue
		}
		found = append(found, NearbyStation{Station: st, DistanceKm: d})
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].DistanceKm < found[j].DistanceKm
	})
	if len(found) > limit {
		found = found[:limit]
	}
	for i := range found {
		found[i].DistanceKm = common.Round(found[i].DistanceKm, 2)
	}
	return found, nil
}

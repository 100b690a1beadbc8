package geo

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/station"
)

func TestHaversine(t *testing.T) {
	hanoi := Point{Lat: 21.0285, Lon: 105.8542}
	saigon := Point{Lat: 10.8231, Lon: 106.6297}

	assert.Equal(t, 0.0, Haversine(hanoi, hanoi))
	assert.InDelta(t, Haversine(hanoi, saigon), Haversine(saigon, hanoi), 1e-9)

	// one degree along a meridian and a quarter of the equator
	assert.InDelta(t, 6371*math.Pi/180, Haversine(Point{0, 0}, Point{1, 0}), 0.1)
	assert.InDelta(t, 10007.54, Haversine(Point{0, 0}, Point{0, 90}), 0.1)
}

func testStations() station.StaticSource {
	return station.StaticSource{
		{Code: "HN-HK", Status: station.StatusActive, Location: station.Location{Lat: 21.0285, Lon: 105.8542}},
		{Code: "HN-HD", Status: station.StatusActive, Location: station.Location{Lat: 20.9714, Lon: 105.7788}},
		{Code: "HN-OFF", Status: station.StatusInactive, Location: station.Location{Lat: 21.0286, Lon: 105.8543}},
		{Code: "HCM-Q1", Status: station.StatusActive, Location: station.Location{Lat: 10.7769, Lon: 106.7009}},
	}
}

func TestFindNearestDefaults(t *testing.T) {
	r := NewResolver(testStations())

	got, err := r.FindNearest(context.Background(), 21.03, 105.85, 0, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "HN-HK", got[0].Code)
	assert.Equal(t, math.Round(got[0].DistanceKm*100)/100, got[0].DistanceKm)
}

func TestFindNearestSortsAndFiltersByRadius(t *testing.T) {
	r := NewResolver(testStations())

	got, err := r.FindNearest(context.Background(), 21.03, 105.85, 50, 10)
	require.NoError(t, err)
	require.Len(t, got, 2, "inactive and far stations are excluded")
	assert.Equal(t, "HN-HK", got[0].Code)
	assert.Equal(t, "HN-HD", got[1].Code)
	assert.Less(t, got[0].DistanceKm, got[1].DistanceKm)

	got, err = r.FindNearest(context.Background(), 21.03, 105.85, 2000, 10)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestFindNearestNothingInRange(t *testing.T) {
	r := NewResolver(testStations())

	got, err := r.FindNearest(context.Background(), 16.05, 108.2, 10, 1)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFindNearestInvalidCoordinate(t *testing.T) {
	r := NewResolver(testStations())

	_, err := r.FindNearest(context.Background(), 91, 0, 10, 1)
	assert.ErrorIs(t, err, ErrInvalidCoordinate)
}

type failingSource struct{}

func (failingSource) ListActiveStations(context.Context) ([]station.Station, error) {
	return nil, errors.New("db down")
}

func TestFindNearestPropagatesSourceError(t *testing.T) {
	_, err := NewResolver(failingSource{}).FindNearest(context.Background(), 21, 105, 10, 1)
	assert.EqualError(t, err, "db down")
}

// Package station reads the monitoring stations owned by the stations
// service. The pipeline never writes stations.
package station

import "context"

// Status of a station.
type Status string

const (
	StatusActive      Status = "active"
	StatusInactive    Status = "inactive"
	StatusMaintenance Status = "maintenance"
)

// Location is a WGS84 coordinate.
type Location struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// Station is a fixed monitoring point.
type Station struct {
	ID       string   `json:"id" yaml:"id"`
	Code     string   `json:"code" yaml:"code"`
	Status   Status   `json:"status" yaml:"status"`
	Location Location `json:"location" yaml:"location"`
	City     string   `json:"city" yaml:"city"`
	District string   `json:"district,omitempty" yaml:"district"`
}

// Active reports whether the station should be ingested.
func (s Station) Active() bool {
	return s.Status == StatusActive
}

// Source lists the currently active stations.
type Source interface {
	ListActiveStations(ctx context.Context) ([]Station, error)
}

// StaticSource serves a fixed station list.
type StaticSource []Station

// ListActiveStations returns the active entries of the list.
func (s StaticSource) ListActiveStations(context.Context) ([]Station, error) {
	return filterActive(s), nil
}

func filterActive(all []Station) []Station {
	out := make([]Station, 0, len(all))
	for _, st := range all {
		if st.Active() {
			out = append(out, st)
		}
	}
	return out
}

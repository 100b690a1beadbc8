// Package transform maps raw provider payloads to NGSI-LD entities.
// Functions here perform no I/O; the wall clock is only consulted through
// the now argument when a payload carries no timestamp.
package transform

import (
	"errors"
	"fmt"
	"time"

	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/ngsild"
	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/weather"
)

const (
	dataProvider   = "OpenWeatherMap"
	providerSource = "https://openweathermap.org"
)

// UN/CEFACT unit codes used on numeric properties.
const (
	unitCelsius        = "CEL"
	unitHectopascal    = "A97"
	unitMetrePerSecond = "MTS"
	unitDegree         = "DD"
	unitMetre          = "MTR"
	unitMillimetre     = "MMT"
	unitMicrogramM3    = "GQ"
)

// ErrValidation marks a provider payload that lacks a required field.
var ErrValidation = errors.New("invalid provider payload")

// ValidationError names the entity type and missing field.
type ValidationError struct {
	EntityType string
	Field      string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: missing or empty %q", ErrValidation, e.EntityType, e.Field)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(entityType, field string) error {
	return &ValidationError{EntityType: entityType, Field: field}
}

// StationRef is the station descriptor attached to every entity.
type StationRef struct {
	Code     string
	URN      string
	City     string
	District string
	Country  string
}

// ForecastOptions tunes forecast transforms.
type ForecastOptions struct {
	// MaxSlots caps the number of forecast entities; 0 keeps all slots.
	MaxSlots int
}

func (o ForecastOptions) limit(n int) int {
	if o.MaxSlots > 0 && o.MaxSlots < n {
		return o.MaxSlots
	}
	return n
}

// observedTime uses the provider's Unix timestamp when present, else now.
func observedTime(unix int64, now time.Time) time.Time {
	if unix > 0 {
		return time.Unix(unix, 0).UTC()
	}
	return now.UTC()
}

func iso(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// unixISO converts a Unix timestamp to RFC 3339, or "" when absent.
func unixISO(unix int64) string {
	if unix <= 0 {
		return ""
	}
	return iso(time.Unix(unix, 0))
}

func setNumber(e *ngsild.Entity, name string, v *float64, at, unit string) {
	if v == nil {
		return
	}
	e.Set(name, ngsild.Property{Value: *v, ObservedAt: at, UnitCode: unit})
}

// setFraction stores a 0-100 percentage as a 0-1 fraction.
func setFraction(e *ngsild.Entity, name string, pct *float64, at string) {
	if pct == nil {
		return
	}
	e.Set(name, ngsild.Property{Value: *pct / 100, ObservedAt: at})
}

func setText(e *ngsild.Entity, name, v, at string) {
	if v == "" {
		return
	}
	e.Set(name, ngsild.Property{Value: v, ObservedAt: at})
}

// setStation adds the attributes shared by every entity derived for a station.
func setStation(e *ngsild.Entity, st StationRef, coord *weather.Coord, country string) {
	if coord != nil {
		e.Set("location", ngsild.GeoProperty{Value: ngsild.NewPoint(coord.Lat, coord.Lon)})
	}

	address := map[string]any{}
	if st.City != "" {
		address["addressLocality"] = st.City
	}
	if st.District != "" {
		address["addressRegion"] = st.District
	}
	if country == "" {
		country = st.Country
	}
	if country != "" {
		address["addressCountry"] = country
	}
	if len(address) > 0 {
		e.Set("address", ngsild.Property{Value: address})
	}

	if st.URN != "" {
		e.Set("refStation", ngsild.Relationship{Object: st.URN})
	}
	e.Set("stationCode", ngsild.Property{Value: st.Code})
	e.Set("dataProvider", ngsild.Property{Value: dataProvider})
	e.Set("source", ngsild.Property{Value: providerSource})
}

func setConditions(e *ngsild.Entity, conds []weather.Condition, at string) {
	if len(conds) == 0 {
		return
	}
	c := conds[0]
	setText(e, "weatherType", c.Description, at)
	setText(e, "weatherMain", c.Main, at)
	setText(e, "weatherIcon", c.Icon, at)
	if c.ID != 0 {
		e.Set("weatherCode", ngsild.Property{Value: c.ID, ObservedAt: at})
	}
}

func setValidity(e *ngsild.Entity, from time.Time, span time.Duration) {
	e.Set("validFrom", ngsild.Property{Value: iso(from)})
	e.Set("validTo", ngsild.Property{Value: iso(from.Add(span))})
}

// Package ingest drives provider polling, transformation and broker upserts
// for every active station.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/broker"
	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/ngsild"
	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/station"
	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/transform"
	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/weather"
)

const (
	DomainWeather    = "weather"
	DomainAirQuality = "airquality"
)

// Upserter is the broker operation ingestion needs.
type Upserter interface {
	UpsertEntities(ctx context.Context, entities []ngsild.Entity, batchSize int) ([]broker.BatchResult, error)
}

// Domain ingests one kind of environmental data for a station.
type Domain interface {
	Name() string
	IngestCurrent(ctx context.Context, st station.Station) error
	// IngestForecast returns the number of forecast entities upserted.
	IngestForecast(ctx context.Context, st station.Station) (int, error)
}

// DomainOptions are shared by both domains.
type DomainOptions struct {
	BatchSize int
	Forecast  transform.ForecastOptions
	// ForecastDays is the cnt parameter of the daily weather forecast.
	ForecastDays int
}

func stationRef(st station.Station) transform.StationRef {
	urn := st.ID
	if !ngsild.IsURN(urn) {
		urn = ngsild.GenerateID("Station", st.Code)
	}
	return transform.StationRef{
		Code:     st.Code,
		URN:      urn,
		City:     st.City,
		District: st.District,
	}
}

func locationOf(st station.Station) weather.Location {
	return weather.Location{Lat: st.Location.Lat, Lon: st.Location.Lon}
}

// upsert pushes entities and turns per-entity rejections inside accepted
// batches into an error.
func upsert(ctx context.Context, up Upserter, entities []ngsild.Entity, batchSize int) error {
	results, err := up.UpsertEntities(ctx, entities, batchSize)
	if err != nil {
		return err
	}

	var rejected []string
	for _, r := range results {
		for _, f := range r.Failed {
			rejected = append(rejected, f.EntityID+": "+f.Reason)
		}
	}
	if len(rejected) > 0 {
		return fmt.Errorf("broker rejected %d entities: %s", len(rejected), strings.Join(rejected, "; "))
	}
	return nil
}

// WeatherDomain ingests current weather and the daily forecast.
type WeatherDomain struct {
	provider weather.Provider
	broker   Upserter
	opts     DomainOptions
	now      func() time.Time
}

func NewWeatherDomain(p weather.Provider, b Upserter, opts DomainOptions) *WeatherDomain {
	if opts.ForecastDays <= 0 {
		opts.ForecastDays = 7
	}
	return &WeatherDomain{provider: p, broker: b, opts: opts, now: time.Now}
}

func (d *WeatherDomain) Name() string { return DomainWeather }

func (d *WeatherDomain) IngestCurrent(ctx context.Context, st station.Station) error {
	raw, err := d.provider.CurrentWeather(ctx, locationOf(st))
	if err != nil {
		return fmt.Errorf("fetch current weather: %w", err)
	}
	e, err := transform.WeatherObserved(raw, stationRef(st), d.now())
	if err != nil {
		return err
	}
	return upsert(ctx, d.broker, []ngsild.Entity{e}, d.opts.BatchSize)
}

func (d *WeatherDomain) IngestForecast(ctx context.Context, st station.Station) (int, error) {
	raw, err := d.provider.DailyForecast(ctx, locationOf(st), d.opts.ForecastDays)
	if err != nil {
		return 0, fmt.Errorf("fetch weather forecast: %w", err)
	}
	entities, err := transform.WeatherForecast(raw, stationRef(st), d.opts.Forecast)
	if err != nil {
		return 0, err
	}
	if err := upsert(ctx, d.broker, entities, d.opts.BatchSize); err != nil {
		return 0, err
	}
	return len(entities), nil
}

// AirQualityDomain ingests current pollution and the hourly pollution forecast.
type AirQualityDomain struct {
	provider weather.Provider
	broker   Upserter
	opts     DomainOptions
	now      func() time.Time
}

func NewAirQualityDomain(p weather.Provider, b Upserter, opts DomainOptions) *AirQualityDomain {
	return &AirQualityDomain{provider: p, broker: b, opts: opts, now: time.Now}
}

func (d *AirQualityDomain) Name() string { return DomainAirQuality }

func (d *AirQualityDomain) IngestCurrent(ctx context.Context, st station.Station) error {
	raw, err := d.provider.AirPollution(ctx, locationOf(st))
	if err != nil {
		return fmt.Errorf("fetch air pollution: %w", err)
	}
	e, err := transform.AirQualityObserved(raw, stationRef(st), d.now())
	if err != nil {
		return err
	}
	return upsert(ctx, d.broker, []ngsild.Entity{e}, d.opts.BatchSize)
}

func (d *AirQualityDomain) IngestForecast(ctx context.Context, st station.Station) (int, error) {
	raw, err := d.provider.AirPollutionForecast(ctx, locationOf(st))
	if err != nil {
		return 0, fmt.Errorf("fetch air pollution forecast: %w", err)
	}
	entities, err := transform.AirQualityForecast(raw, stationRef(st), d.opts.Forecast)
	if err != nil {
		return 0, err
	}
	if err := upsert(ctx, d.broker, entities, d.opts.BatchSize); err != nil {
		return 0, err
	}
	return len(entities), nil
}

package weather

import "context"

// Location is the point a provider is queried for.
type Location struct {
	Lat float64
	Lon float64
}

// Provider abstracts the environmental data source (OpenWeatherMap).
type Provider interface {
	Name() string
	CurrentWeather(ctx context.Context, loc Location) (CurrentWeather, error)
	DailyForecast(ctx context.Context, loc Location, days int) (DailyForecast, error)
	AirPollution(ctx context.Context, loc Location) (AirPollution, error)
	AirPollutionForecast(ctx context.Context, loc Location) (AirPollution, error)
}

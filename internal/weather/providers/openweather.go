package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/retry"
	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/weather"
)

const defaultOpenWeatherBaseURL = "https://api.openweathermap.org/data/2.5"

// OpenWeatherOptions tunes the OpenWeatherMap client.
type OpenWeatherOptions struct {
	BaseURL string
	Units   string
	Lang    string
	// RatePerSecond caps outbound requests; 0 disables the limiter.
	RatePerSecond float64
	Backoff       retry.Policy
}

// OpenWeatherProvider implements the weather.Provider interface for OpenWeatherMap.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	units   string
	lang    string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherProvider(client *http.Client, apiKey string, opts OpenWeatherOptions) *OpenWeatherProvider {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultOpenWeatherBaseURL
	}
	if opts.Units == "" {
		opts.Units = "metric"
	}
	if opts.Backoff.MaxAttempts == 0 {
		opts.Backoff = retry.DefaultPolicy()
	}

	var limiter *rate.Limiter
	if opts.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1)
	}

	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		units:   opts.Units,
		lang:    opts.Lang,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: opts.Backoff,
			Limiter: limiter,
		},
		circuit: newCircuitBreaker("openweather"),
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

// CurrentWeather calls GET /weather.
func (p *OpenWeatherProvider) CurrentWeather(ctx context.Context, loc weather.Location) (weather.CurrentWeather, error) {
	var payload weather.CurrentWeather
	err := p.get(ctx, "/weather", loc, nil, &payload)
	return payload, err
}

// DailyForecast calls GET /forecast/daily with cnt=days.
func (p *OpenWeatherProvider) DailyForecast(ctx context.Context, loc weather.Location, days int) (weather.DailyForecast, error) {
	extra := url.Values{}
	if days > 0 {
		extra.Set("cnt", strconv.Itoa(days))
	}
	var payload weather.DailyForecast
	err := p.get(ctx, "/forecast/daily", loc, extra, &payload)
	return payload, err
}

// AirPollution calls GET /air_pollution.
func (p *OpenWeatherProvider) AirPollution(ctx context.Context, loc weather.Location) (weather.AirPollution, error) {
	var payload weather.AirPollution
	err := p.get(ctx, "/air_pollution", loc, nil, &payload)
	return payload, err
}

// AirPollutionForecast calls GET /air_pollution/forecast.
func (p *OpenWeatherProvider) AirPollutionForecast(ctx context.Context, loc weather.Location) (weather.AirPollution, error) {
	var payload weather.AirPollution
	err := p.get(ctx, "/air_pollution/forecast", loc, nil, &payload)
	return payload, err
}

func (p *OpenWeatherProvider) get(ctx context.Context, path string, loc weather.Location, extra url.Values, out any) error {
	if p.apiKey == "" {
		return fmt.Errorf("openweather api key is not configured")
	}

	values := url.Values{}
	values.Set("lat", strconv.FormatFloat(loc.Lat, 'f', -1, 64))
	values.Set("lon", strconv.FormatFloat(loc.Lon, 'f', -1, 64))
	values.Set("appid", p.apiKey)
	values.Set("units", p.units)
	if p.lang != "" {
		values.Set("lang", p.lang)
	}
	for k, vs := range extra {
		for _, v := range vs {
			values.Add(k, v)
		}
	}

	u := fmt.Sprintf("%s%s?%s", p.baseURL, path, values.Encode())
	if err := getJSON(ctx, p.httpCfg, p.circuit, u, out); err != nil {
		return fmt.Errorf("%s %s: %w", p.name, path, err)
	}
	return nil
}

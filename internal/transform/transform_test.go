package transform

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/ngsild"
	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/weather"
)

var station = StationRef{
	Code:     "Hà Đông",
	URN:      "urn:ngsi-ld:Station:HD01",
	City:     "Hà Nội",
	District: "Hà Đông",
}

var fixedNow = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func decode[T any](t *testing.T, payload string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(payload), &v))
	return v
}

func TestUSEPAAQI(t *testing.T) {
	assert.Equal(t, 50, USEPAAQI(12.0))
	assert.Equal(t, 0, USEPAAQI(0))
	assert.Equal(t, 0, USEPAAQI(-3))
	assert.Equal(t, 500, USEPAAQI(600))
	assert.Equal(t, 500, USEPAAQI(500.4))
	assert.Equal(t, 51, USEPAAQI(12.1))
	assert.Equal(t, 100, USEPAAQI(35.4))
	assert.Equal(t, 151, USEPAAQI(55.5))
	assert.Equal(t, 301, USEPAAQI(250.5))
}

func TestAQILabels(t *testing.T) {
	assert.Equal(t, "Good", USEPACategory(50))
	assert.Equal(t, "Moderate", USEPACategory(51))
	assert.Equal(t, "Unhealthy for Sensitive Groups", USEPACategory(150))
	assert.Equal(t, "Unhealthy", USEPACategory(200))
	assert.Equal(t, "Very Unhealthy", USEPACategory(300))
	assert.Equal(t, "Hazardous", USEPACategory(301))

	assert.Equal(t, "Fair", ProviderAQILabel(2))
	assert.Equal(t, "Very Poor", ProviderAQILabel(5))
	assert.Equal(t, "Unknown", ProviderAQILabel(9))
}

func TestWeatherObserved(t *testing.T) {
	raw := decode[weather.CurrentWeather](t, `{
		"coord": {"lon": 105.77, "lat": 20.97},
		"weather": [{"id": 803, "main": "Clouds", "description": "mây cụm", "icon": "04d"}],
		"main": {"temp": 31.2, "feels_like": 36.0, "pressure": 1006, "humidity": 65},
		"visibility": 10000,
		"wind": {"speed": 3.1, "deg": 140},
		"clouds": {"all": 75},
		"rain": {"1h": 0.4},
		"dt": 1714550400,
		"sys": {"country": "VN", "sunrise": 1714515000, "sunset": 1714562000},
		"name": "Hà Đông"
	}`)

	e, err := WeatherObserved(raw, station, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, "urn:ngsi-ld:WeatherObserved:Ha-Dong", e.ID)
	assert.Equal(t, ngsild.TypeWeatherObserved, e.Type)
	assert.Equal(t, "2024-05-01T08:00:00Z", e.Value("dateObserved"))
	assert.Equal(t, 31.2, e.Value("temperature"))
	assert.InDelta(t, 0.65, e.Value("relativeHumidity"), 1e-9)
	assert.InDelta(t, 0.75, e.Value("cloudiness"), 1e-9)
	assert.Equal(t, 0.4, e.Value("precipitation"))
	assert.Equal(t, "mây cụm", e.Value("weatherType"))
	assert.Equal(t, "2024-04-30T22:10:00Z", e.Value("sunrise"))
	assert.Equal(t, "urn:ngsi-ld:Station:HD01", e.Value("refStation"))

	geo, ok := e.Attributes["location"].(ngsild.GeoProperty)
	require.True(t, ok)
	assert.Equal(t, []float64{105.77, 20.97}, geo.Value.Coordinates)

	temp := e.Attributes["temperature"].(ngsild.Property)
	assert.Equal(t, "2024-05-01T08:00:00Z", temp.ObservedAt)
	assert.Equal(t, "CEL", temp.UnitCode)
}

func TestWeatherObservedFallsBackToNow(t *testing.T) {
	raw := decode[weather.CurrentWeather](t, `{"coord": {"lon": 1, "lat": 2}, "main": {"temp": 20}}`)

	e, err := WeatherObserved(raw, station, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T08:00:00Z", e.Value("dateObserved"))
}

func TestWeatherObservedRequiresCoord(t *testing.T) {
	raw := decode[weather.CurrentWeather](t, `{"main": {"temp": 20}}`)

	_, err := WeatherObserved(raw, station, fixedNow)
	require.ErrorIs(t, err, ErrValidation)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "coord", ve.Field)
}

func TestWeatherForecast(t *testing.T) {
	raw := decode[weather.DailyForecast](t, `{
		"city": {"name": "Hà Đông", "coord": {"lon": 105.77, "lat": 20.97}, "country": "VN"},
		"list": [
			{"dt": 1714550400, "temp": {"day": 33, "min": 26, "max": 35}, "humidity": 60, "pop": 0.3},
			{"dt": 1714636800, "temp": {"day": 32, "min": 25, "max": 34}, "humidity": 70}
		]
	}`)

	entities, err := WeatherForecast(raw, station, ForecastOptions{})
	require.NoError(t, err)
	require.Len(t, entities, 2)

	first := entities[0]
	assert.Equal(t, "urn:ngsi-ld:WeatherForecast:Ha-Dong-1714550400", first.ID)
	assert.Equal(t, "2024-05-01T08:00:00Z", first.Value("validFrom"))
	assert.Equal(t, "2024-05-02T08:00:00Z", first.Value("validTo"))
	assert.Equal(t, map[string]any{"temperature": 35.0}, first.Value("dayMaximum"))
	assert.InDelta(t, 0.6, first.Value("relativeHumidity"), 1e-9)
	assert.Equal(t, 0.3, first.Value("precipitationProbability"))

	capped, err := WeatherForecast(raw, station, ForecastOptions{MaxSlots: 1})
	require.NoError(t, err)
	assert.Len(t, capped, 1)
}

func TestWeatherForecastRequiresList(t *testing.T) {
	_, err := WeatherForecast(weather.DailyForecast{}, station, ForecastOptions{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAirQualityObserved(t *testing.T) {
	raw := decode[weather.AirPollution](t, `{
		"coord": {"lon": 105.77, "lat": 20.97},
		"list": [{"dt": 1714550400, "main": {"aqi": 3},
			"components": {"co": 400.5, "no2": 20.1, "o3": 60, "so2": 5, "pm2_5": 35.4, "pm10": 50, "nh3": 3}}]
	}`)

	e, err := AirQualityObserved(raw, station, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, "urn:ngsi-ld:AirQualityObserved:Ha-Dong", e.ID)
	assert.Equal(t, 3, e.Value("airQualityIndex"))
	assert.Equal(t, "Moderate", e.Value("airQualityLevel"))
	assert.Equal(t, 100, e.Value("aqiUS"))
	assert.Equal(t, "Moderate", e.Value("aqiUSCategory"))
	assert.Equal(t, 35.4, e.Value("pm25"))
	assert.Equal(t, 400.5, e.Value("co"))
	assert.Nil(t, e.Value("no"))

	pm := e.Attributes["pm25"].(ngsild.Property)
	assert.Equal(t, "GQ", pm.UnitCode)
}

func TestAirQualityObservedRejectsEmptyList(t *testing.T) {
	raw := decode[weather.AirPollution](t, `{"coord": {"lon": 1, "lat": 2}, "list": []}`)

	_, err := AirQualityObserved(raw, station, fixedNow)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "list", ve.Field)
}

func TestAirQualityForecastIDsAreDeterministic(t *testing.T) {
	raw := decode[weather.AirPollution](t, `{
		"coord": {"lon": 105.77, "lat": 20.97},
		"list": [
			{"dt": 1714550400, "main": {"aqi": 1}, "components": {"pm2_5": 5}},
			{"dt": 1714554000, "main": {"aqi": 2}, "components": {"pm2_5": 15}}
		]
	}`)

	first, err := AirQualityForecast(raw, station, ForecastOptions{})
	require.NoError(t, err)
	second, err := AirQualityForecast(raw, station, ForecastOptions{})
	require.NoError(t, err)

	require.Len(t, first, 2)
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}
	assert.Equal(t, "urn:ngsi-ld:AirQualityForecast:Ha-Dong-1714554000", first[1].ID)
	assert.Equal(t, "2024-05-01T09:00:00Z", first[0].Value("validTo"))
}

package transform

import (
	"time"

	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/ngsild"
	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/weather"
)

// WeatherObserved builds the observed weather entity for a station.
func WeatherObserved(raw weather.CurrentWeather, st StationRef, now time.Time) (ngsild.Entity, error) {
	const typ = ngsild.TypeWeatherObserved
	if raw.Coord == nil {
		return ngsild.Entity{}, invalid(typ, "coord")
	}
	if raw.Main.Temp == nil {
		return ngsild.Entity{}, invalid(typ, "main.temp")
	}

	at := iso(observedTime(raw.Dt, now))
	e := ngsild.New(ngsild.GenerateID(typ, st.Code), typ)
	setStation(&e, st, raw.Coord, raw.Sys.Country)
	e.Set("dateObserved", ngsild.Property{Value: at})
	setText(&e, "name", raw.Name, "")

	setNumber(&e, "temperature", raw.Main.Temp, at, unitCelsius)
	setNumber(&e, "feelsLikeTemperature", raw.Main.FeelsLike, at, unitCelsius)
	setNumber(&e, "minTemperature", raw.Main.TempMin, at, unitCelsius)
	setNumber(&e, "maxTemperature", raw.Main.TempMax, at, unitCelsius)
	setNumber(&e, "atmosphericPressure", raw.Main.Pressure, at, unitHectopascal)
	setNumber(&e, "seaLevelPressure", raw.Main.SeaLevel, at, unitHectopascal)
	setNumber(&e, "groundLevelPressure", raw.Main.GrndLevel, at, unitHectopascal)
	setFraction(&e, "relativeHumidity", raw.Main.Humidity, at)
	setNumber(&e, "visibility", raw.Visibility, at, unitMetre)
	setNumber(&e, "windSpeed", raw.Wind.Speed, at, unitMetrePerSecond)
	setNumber(&e, "windDirection", raw.Wind.Deg, at, unitDegree)
	setNumber(&e, "gustSpeed", raw.Wind.Gust, at, unitMetrePerSecond)
	setFraction(&e, "cloudiness", raw.Clouds.All, at)
	if raw.Rain != nil {
		setNumber(&e, "precipitation", firstNonNil(raw.Rain.OneH, raw.Rain.ThreeH), at, unitMillimetre)
	}
	if raw.Snow != nil {
		setNumber(&e, "snowfall", firstNonNil(raw.Snow.OneH, raw.Snow.ThreeH), at, unitMillimetre)
	}
	setConditions(&e, raw.Weather, at)
	setText(&e, "sunrise", unixISO(raw.Sys.Sunrise), at)
	setText(&e, "sunset", unixISO(raw.Sys.Sunset), at)

	return e, nil
}

// WeatherForecast builds one entity per daily forecast slot.
func WeatherForecast(raw weather.DailyForecast, st StationRef, opts ForecastOptions) ([]ngsild.Entity, error) {
	const typ = ngsild.TypeWeatherForecast
	if len(raw.List) == 0 {
		return nil, invalid(typ, "list")
	}

	n := opts.limit(len(raw.List))
	out := make([]ngsild.Entity, 0, n)
	for i := 0; i < n; i++ {
		slot := raw.List[i]
		if slot.Dt <= 0 {
			return nil, invalid(typ, "list.dt")
		}

		from := time.Unix(slot.Dt, 0).UTC()
		at := iso(from)
		e := ngsild.New(ngsild.GenerateForecastID(typ, st.Code, slot.Dt), typ)
		setStation(&e, st, raw.City.Coord, raw.City.Country)
		setValidity(&e, from, 24*time.Hour)

		setNumber(&e, "temperature", slot.Temp.Day, at, unitCelsius)
		setNumber(&e, "feelsLikeTemperature", slot.FeelsLike.Day, at, unitCelsius)
		if slot.Temp.Max != nil {
			e.Set("dayMaximum", ngsild.Property{Value: map[string]any{"temperature": *slot.Temp.Max}, ObservedAt: at})
		}
		if slot.Temp.Min != nil {
			e.Set("dayMinimum", ngsild.Property{Value: map[string]any{"temperature": *slot.Temp.Min}, ObservedAt: at})
		}
		setNumber(&e, "atmosphericPressure", slot.Pressure, at, unitHectopascal)
		setFraction(&e, "relativeHumidity", slot.Humidity, at)
		setNumber(&e, "windSpeed", slot.Speed, at, unitMetrePerSecond)
		setNumber(&e, "windDirection", slot.Deg, at, unitDegree)
		setNumber(&e, "gustSpeed", slot.Gust, at, unitMetrePerSecond)
		setFraction(&e, "cloudiness", slot.Clouds, at)
		setNumber(&e, "precipitationProbability", slot.Pop, at, "")
		setNumber(&e, "precipitation", slot.Rain, at, unitMillimetre)
		setNumber(&e, "snowfall", slot.Snow, at, unitMillimetre)
		setConditions(&e, slot.Weather, at)
		setText(&e, "sunrise", unixISO(slot.Sunrise), at)
		setText(&e, "sunset", unixISO(slot.Sunset), at)

		out = append(out, e)
	}
	return out, nil
}

func firstNonNil(vs ...*float64) *float64 {
	for _, v := range vs {
		if v != nil {
			return v
		}
	}
	return nil
}

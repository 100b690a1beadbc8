package transform

import (
	"time"

	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/ngsild"
	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/weather"
)

// AirQualityObserved builds the observed air quality entity from the first
// sample of a /air_pollution response.
func AirQualityObserved(raw weather.AirPollution, st StationRef, now time.Time) (ngsild.Entity, error) {
	const typ = ngsild.TypeAirQualityObserved
	if len(raw.List) == 0 {
		return ngsild.Entity{}, invalid(typ, "list")
	}
	if raw.Coord == nil {
		return ngsild.Entity{}, invalid(typ, "coord")
	}

	slot := raw.List[0]
	at := iso(observedTime(slot.Dt, now))
	e := ngsild.New(ngsild.GenerateID(typ, st.Code), typ)
	setStation(&e, st, raw.Coord, "")
	e.Set("dateObserved", ngsild.Property{Value: at})
	setPollution(&e, slot, at)

	return e, nil
}

// AirQualityForecast builds one entity per hourly forecast sample.
func AirQualityForecast(raw weather.AirPollution, st StationRef, opts ForecastOptions) ([]ngsild.Entity, error) {
	const typ = ngsild.TypeAirQualityForecast
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
		setStation(&e, st, raw.Coord, "")
		setValidity(&e, from, time.Hour)
		setPollution(&e, slot, at)

		out = append(out, e)
	}
	return out, nil
}

func setPollution(e *ngsild.Entity, slot weather.PollutionSlot, at string) {
	if slot.Main.AQI > 0 {
		e.Set("airQualityIndex", ngsild.Property{Value: slot.Main.AQI, ObservedAt: at})
		e.Set("airQualityLevel", ngsild.Property{Value: ProviderAQILabel(slot.Main.AQI), ObservedAt: at})
	}

	c := slot.Components
	if c.PM25 != nil {
		aqi := USEPAAQI(*c.PM25)
		e.Set("aqiUS", ngsild.Property{Value: aqi, ObservedAt: at})
		e.Set("aqiUSCategory", ngsild.Property{Value: USEPACategory(aqi), ObservedAt: at})
	}

	setNumber(e, "co", c.CO, at, unitMicrogramM3)
	setNumber(e, "no", c.NO, at, unitMicrogramM3)
	setNumber(e, "no2", c.NO2, at, unitMicrogramM3)
	setNumber(e, "o3", c.O3, at, unitMicrogramM3)
	setNumber(e, "so2", c.SO2, at, unitMicrogramM3)
	setNumber(e, "pm25", c.PM25, at, unitMicrogramM3)
	setNumber(e, "pm10", c.PM10, at, unitMicrogramM3)
	setNumber(e, "nh3", c.NH3, at, unitMicrogramM3)
}

package weather

// Payloads below mirror the OpenWeatherMap JSON responses. Pointer fields
// distinguish "absent" from zero so the transformer can validate them.

// Coord is a provider coordinate pair.
type Coord struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Condition is one entry of the provider "weather" array.
type Condition struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// CurrentWeather is the /weather response.
type CurrentWeather struct {
	Coord   *Coord      `json:"coord"`
	Weather []Condition `json:"weather"`
	Main    struct {
		Temp      *float64 `json:"temp"`
		FeelsLike *float64 `json:"feels_like"`
		TempMin   *float64 `json:"temp_min"`
		TempMax   *float64 `json:"temp_max"`
		Pressure  *float64 `json:"pressure"`
		Humidity  *float64 `json:"humidity"`
		SeaLevel  *float64 `json:"sea_level"`
		GrndLevel *float64 `json:"grnd_level"`
	} `json:"main"`
	Visibility *float64 `json:"visibility"`
	Wind       struct {
		Speed *float64 `json:"speed"`
		Deg   *float64 `json:"deg"`
		Gust  *float64 `json:"gust"`
	} `json:"wind"`
	Clouds struct {
		All *float64 `json:"all"`
	} `json:"clouds"`
	Rain *Precipitation `json:"rain"`
	Snow *Precipitation `json:"snow"`
	Dt   int64          `json:"dt"`
	Sys  struct {
		Country string `json:"country"`
		Sunrise int64  `json:"sunrise"`
		Sunset  int64  `json:"sunset"`
	} `json:"sys"`
	Timezone int    `json:"timezone"`
	Name     string `json:"name"`
}

// Precipitation volume for the last one and three hours, in mm.
type Precipitation struct {
	OneH   *float64 `json:"1h"`
	ThreeH *float64 `json:"3h"`
}

// DailyForecast is the /forecast/daily response.
type DailyForecast struct {
	City struct {
		ID       int64  `json:"id"`
		Name     string `json:"name"`
		Coord    *Coord `json:"coord"`
		Country  string `json:"country"`
		Timezone int    `json:"timezone"`
	} `json:"city"`
	Cnt  int        `json:"cnt"`
	List []DailySlot `json:"list"`
}

// DailySlot is one day of a daily forecast.
type DailySlot struct {
	Dt      int64 `json:"dt"`
	Sunrise int64 `json:"sunrise"`
	Sunset  int64 `json:"sunset"`
	Temp    struct {
		Day   *float64 `json:"day"`
		Min   *float64 `json:"min"`
		Max   *float64 `json:"max"`
		Night *float64 `json:"night"`
		Eve   *float64 `json:"eve"`
		Morn  *float64 `json:"morn"`
	} `json:"temp"`
	FeelsLike struct {
		Day *float64 `json:"day"`
	} `json:"feels_like"`
	Pressure *float64    `json:"pressure"`
	Humidity *float64    `json:"humidity"`
	Weather  []Condition `json:"weather"`
	Speed    *float64    `json:"speed"`
	Deg      *float64    `json:"deg"`
	Gust     *float64    `json:"gust"`
	Clouds   *float64    `json:"clouds"`
	Pop      *float64    `json:"pop"`
	Rain     *float64    `json:"rain"`
	Snow     *float64    `json:"snow"`
}

// AirPollution is the /air_pollution and /air_pollution/forecast response.
type AirPollution struct {
	Coord *Coord          `json:"coord"`
	List  []PollutionSlot `json:"list"`
}

// PollutionSlot is a single air pollution sample.
type PollutionSlot struct {
	Dt   int64 `json:"dt"`
	Main struct {
		AQI int `json:"aqi"`
	} `json:"main"`
	Components Components `json:"components"`
}

// Components are pollutant concentrations in µg/m³.
type Components struct {
	CO   *float64 `json:"co"`
	NO   *float64 `json:"no"`
	NO2  *float64 `json:"no2"`
	O3   *float64 `json:"o3"`
	SO2  *float64 `json:"so2"`
	PM25 *float64 `json:"pm2_5"`
	PM10 *float64 `json:"pm10"`
	NH3  *float64 `json:"nh3"`
}

package store

import (
	"fmt"
	"strings"

	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/ngsild"
)

// Kind is the SQL shape of a domain column.
type Kind int

const (
	KindNumber Kind = iota
	KindText
)

func (k Kind) sqlType() string {
	if k == KindText {
		return "TEXT"
	}
	return "DOUBLE PRECISION"
}

// Column maps one entity attribute onto a table column.
type Column struct {
	Name      string
	Attribute string
	Kind      Kind
}

// Table is a wide, append-only observation table for one entity type.
type Table struct {
	Name       string
	EntityType string
	Columns    []Column
}

var WeatherObservedTable = Table{
	Name:       "weather_observed",
	EntityType: ngsild.TypeWeatherObserved,
	Columns: []Column{
		{"station_code", "stationCode", KindText},
		{"name", "name", KindText},
		{"temperature", "temperature", KindNumber},
		{"feels_like_temperature", "feelsLikeTemperature", KindNumber},
		{"min_temperature", "minTemperature", KindNumber},
		{"max_temperature", "maxTemperature", KindNumber},
		{"atmospheric_pressure", "atmosphericPressure", KindNumber},
		{"relative_humidity", "relativeHumidity", KindNumber},
		{"visibility", "visibility", KindNumber},
		{"wind_speed", "windSpeed", KindNumber},
		{"wind_direction", "windDirection", KindNumber},
		{"gust_speed", "gustSpeed", KindNumber},
		{"cloudiness", "cloudiness", KindNumber},
		{"precipitation", "precipitation", KindNumber},
		{"snowfall", "snowfall", KindNumber},
		{"weather_type", "weatherType", KindText},
		{"weather_main", "weatherMain", KindText},
		{"weather_code", "weatherCode", KindNumber},
	},
}

var AirQualityObservedTable = Table{
	Name:       "air_quality_observed",
	EntityType: ngsild.TypeAirQualityObserved,
	Columns: []Column{
		{"station_code", "stationCode", KindText},
		{"air_quality_index", "airQualityIndex", KindNumber},
		{"air_quality_level", "airQualityLevel", KindText},
		{"aqi_us", "aqiUS", KindNumber},
		{"aqi_us_category", "aqiUSCategory", KindText},
		{"co", "co", KindNumber},
		{"no", "no", KindNumber},
		{"no2", "no2", KindNumber},
		{"o3", "o3", KindNumber},
		{"so2", "so2", KindNumber},
		{"pm25", "pm25", KindNumber},
		{"pm10", "pm10", KindNumber},
		{"nh3", "nh3", KindNumber},
	},
}

// Tables lists every persisted domain.
var Tables = []Table{WeatherObservedTable, AirQualityObservedTable}

// baseColumns are shared by every observation table, in insert order.
var baseColumns = []string{
	"id", "entity_id", "entity_type", "recv_time", "location_id",
	"location", "date_observed", "raw_entity",
}

// DDL returns the statements creating the table and its indexes.
func (t Table) DDL(unique bool) []string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", t.Name)
	b.WriteString("    id UUID PRIMARY KEY,\n")
	b.WriteString("    entity_id TEXT NOT NULL,\n")
	b.WriteString("    entity_type TEXT NOT NULL,\n")
	b.WriteString("    recv_time TIMESTAMPTZ NOT NULL,\n")
	b.WriteString("    location_id TEXT,\n")
	b.WriteString("    location JSONB,\n")
	b.WriteString("    date_observed TIMESTAMPTZ NOT NULL,\n")
	for _, c := range t.Columns {
		fmt.Fprintf(&b, "    %s %s,\n", c.Name, c.Kind.sqlType())
	}
	b.WriteString("    raw_entity JSONB NOT NULL\n)")

	stmts := []string{
		b.String(),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %[1]s_entity_recv_idx ON %[1]s (entity_id, recv_time)", t.Name),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %[1]s_location_observed_idx ON %[1]s (location_id, date_observed)", t.Name),
	}
	if unique {
		stmts = append(stmts, fmt.Sprintf(
			"CREATE UNIQUE INDEX IF NOT EXISTS %[1]s_entity_observed_key ON %[1]s (entity_id, date_observed)", t.Name))
	}
	return stmts
}

// insertSQL builds the parameterized insert for t.
func (t Table) insertSQL(dedupe bool) string {
	cols := append([]string{}, baseColumns...)
	for _, c := range t.Columns {
		cols = append(cols, c.Name)
	}
	params := make([]string, len(cols))
	for i := range cols {
		params[i] = fmt.Sprintf("$%d", i+1)
	}

	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.Name, strings.Join(cols, ", "), strings.Join(params, ", "))
	if dedupe {
		q += " ON CONFLICT (entity_id, date_observed) DO NOTHING"
	}
	return q
}

// TableFor returns the table persisting entityType.
func TableFor(entityType string) (Table, bool) {
	for _, t := range Tables {
		if t.EntityType == entityType {
			return t, true
		}
	}
	return Table{}, false
}

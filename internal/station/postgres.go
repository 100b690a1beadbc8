package station

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const listActiveStationsSQL = `
    SELECT id, code, status, lat, lon, COALESCE(city, ''), COALESCE(district, '')
    FROM stations
    WHERE status = 'active'
    ORDER BY code
`

// PostgresSource reads stations from the stations service table.
type PostgresSource struct {
	pool *pgxpool.Pool
}

// NewPostgresSource wraps an existing pool.
func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

// ListActiveStations returns every active station ordered by code.
func (s *PostgresSource) ListActiveStations(ctx context.Context) ([]Station, error) {
	rows, err := s.pool.Query(ctx, listActiveStationsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stations := make([]Station, 0)
	for rows.Next() {
		var (
			st     Station
			status string
		)
		if err := rows.Scan(
			&st.ID,
			&st.Code,
			&status,
			&st.Location.Lat,
			&st.Location.Lon,
			&st.City,
			&st.District,
		); err != nil {
			return nil, err
		}
		st.Status = Status(status)
		stations = append(stations, st)
	}
	return stations, rows.Err()
}

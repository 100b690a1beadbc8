package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore writes observation rows to PostgreSQL.
type PostgresStore struct {
	pool   *pgxpool.Pool
	dedupe bool
}

// NewPostgres connects a pgx pool and verifies it with a ping.
func NewPostgres(ctx context.Context, databaseURL string, dedupe bool) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool, dedupe: dedupe}, nil
}

// Pool exposes the pool so other readers can share connections.
func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// Close releases the pool resources.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates every observation table and its indexes.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, t := range Tables {
		for _, stmt := range t.DDL(s.dedupe) {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("create %s: %w", t.Name, err)
			}
		}
	}
	return tx.Commit(ctx)
}

// Insert writes one row; with dedupe enabled an existing
// (entity_id, date_observed) pair makes it a no-op reported as false.
func (s *PostgresStore) Insert(ctx context.Context, row Row) (bool, error) {
	t, ok := tableByName(row.Table)
	if !ok {
		return false, ErrUnknownTable
	}

	tag, err := s.pool.Exec(ctx, t.insertSQL(s.dedupe), insertArgs(t, row)...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func insertArgs(t Table, row Row) []any {
	var location any
	if len(row.Location) > 0 {
		location = string(row.Location)
	}
	var locationID any
	if row.LocationID != "" {
		locationID = row.LocationID
	}

	args := []any{
		row.ID.String(),
		row.EntityID,
		row.EntityType,
		row.RecvTime,
		locationID,
		location,
		row.DateObserved,
		string(row.RawEntity),
	}
	for _, c := range t.Columns {
		args = append(args, row.Fields[c.Name])
	}
	return args
}

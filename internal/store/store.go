// Package store persists observation rows derived from broker notifications.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrUnknownTable is returned for a row whose table is not in Tables.
	ErrUnknownTable = errors.New("unknown observation table")
)

// Row is one time-series observation. Fields is keyed by column name.
type Row struct {
	ID           uuid.UUID
	Table        string
	EntityID     string
	EntityType   string
	RecvTime     time.Time
	LocationID   string
	Location     json.RawMessage
	DateObserved time.Time
	Fields       map[string]any
	RawEntity    json.RawMessage
}

// Writer appends observation rows. Insert reports false when the row was
// dropped as a duplicate of an existing (entity id, dateObserved) pair.
type Writer interface {
	Insert(ctx context.Context, row Row) (bool, error)
}

func tableByName(name string) (Table, bool) {
	for _, t := range Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// Package notify turns broker change notifications into time-series rows.
// Delivery is at-least-once; each entity is written independently.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/metrics"
	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/ngsild"
	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/store"
)

// Notification is the payload the broker pushes to the webhook. Entities
// stay raw until persisted so one malformed entity fails on its own.
type Notification struct {
	ID             string            `json:"id,omitempty"`
	Type           string            `json:"type,omitempty"`
	SubscriptionID string            `json:"subscriptionId"`
	NotifiedAt     string            `json:"notifiedAt"`
	Data           []json.RawMessage `json:"data"`
}

// PersistenceError is a failure writing a single entity.
type PersistenceError struct {
	EntityID string
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.EntityID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// EntityError is the report form of a PersistenceError.
type EntityError struct {
	EntityID string `json:"entityId"`
	Error    string `json:"error"`
}

// Report aggregates one notification. Persisted counts rows actually
// written; Success also includes rows dropped as duplicates.
type Report struct {
	Success   int           `json:"success"`
	Persisted int           `json:"persisted"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Errors    []EntityError `json:"errors,omitempty"`
}

// Outcome of one entity.
type Outcome int

const (
	OutcomePersisted Outcome = iota
	OutcomeDuplicate
	OutcomeSkipped
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomePersisted:
		return "persisted"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Result is the per-entity outcome collected into a Report.
type Result struct {
	EntityID   string
	EntityType string
	Outcome    Outcome
	Err        error
}

// Persister writes notified entities through a store.Writer.
type Persister struct {
	writer  store.Writer
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewPersister returns a Persister. A nil logger is replaced by a no-op one.
func NewPersister(w store.Writer, logger *zap.Logger, m *metrics.Metrics) *Persister {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Persister{writer: w, logger: logger, metrics: m, now: time.Now}
}

// Persist writes every entity of n and reports per-entity outcomes. It
// never returns an error; failures are itemized in the report.
func (p *Persister) Persist(ctx context.Context, n Notification) Report {
	recv := p.receivedAt(n.NotifiedAt)

	results := make([]Result, 0, len(n.Data))
	for _, raw := range n.Data {
		r := p.persistOne(ctx, raw, recv)
		p.metrics.NotifiedEntity(r.EntityType, r.Outcome.String())
		results = append(results, r)
	}

	report := Summarize(results)
	p.logger.Info("notification persisted",
		zap.String("subscriptionId", n.SubscriptionID),
		zap.Int("entities", len(n.Data)),
		zap.Int("success", report.Success),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped))
	return report
}

// InvalidPayload reports a notification whose envelope could not be decoded.
func InvalidPayload(err error) Report {
	return Report{
		Failed: 1,
		Errors: []EntityError{{Error: "invalid notification payload: " + err.Error()}},
	}
}

// Summarize folds per-entity results into a Report.
func Summarize(results []Result) Report {
	var r Report
	for _, res := range results {
		switch res.Outcome {
		case OutcomePersisted:
			r.Success++
			r.Persisted++
		case OutcomeDuplicate:
			r.Success++
		case OutcomeSkipped:
			r.Skipped++
		case OutcomeFailed:
			r.Failed++
			r.Errors = append(r.Errors, EntityError{EntityID: res.EntityID, Error: res.Err.Error()})
		}
	}
	return r
}

func (p *Persister) persistOne(ctx context.Context, raw json.RawMessage, recv time.Time) Result {
	var e ngsild.Entity
	if err := json.Unmarshal(raw, &e); err != nil {
		id := rawEntityID(raw)
		p.logger.Warn("undecodable entity", zap.String("entityId", id), zap.Error(err))
		return Result{
			EntityID: id,
			Outcome:  OutcomeFailed,
			Err:      &PersistenceError{EntityID: id, Err: err},
		}
	}
	res := Result{EntityID: e.ID, EntityType: e.Type}

	table, ok := store.TableFor(e.Type)
	if !ok {
		p.logger.Info("skipping entity of untracked type",
			zap.String("entityId", e.ID), zap.String("entityType", e.Type))
		res.Outcome = OutcomeSkipped
		return res
	}

	row, err := BuildRow(table, e, recv)
	if err == nil {
		var inserted bool
		inserted, err = p.writer.Insert(ctx, row)
		if err == nil {
			res.Outcome = OutcomePersisted
			if !inserted {
				res.Outcome = OutcomeDuplicate
			}
			return res
		}
	}

	res.Outcome = OutcomeFailed
	res.Err = &PersistenceError{EntityID: e.ID, Err: err}
	p.logger.Warn("persist entity", zap.String("entityId", e.ID), zap.Error(err))
	return res
}

// rawEntityID recovers an id for error reporting from an entity that did
// not decode, rendering non-string ids as their JSON text.
func rawEntityID(raw json.RawMessage) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ""
	}
	id, ok := fields["id"]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(id, &s); err == nil {
		return s
	}
	return string(id)
}

// BuildRow maps an entity onto a table row. A missing dateObserved falls
// back to the notification time; an unparsable one is an error.
func BuildRow(t store.Table, e ngsild.Entity, recv time.Time) (store.Row, error) {
	if strings.TrimSpace(e.ID) == "" {
		return store.Row{}, fmt.Errorf("entity has no id")
	}

	observed := recv
	if v := e.Value("dateObserved"); v != nil {
		parsed, err := parseDate(v)
		if err != nil {
			return store.Row{}, err
		}
		observed = parsed
	}

	raw, err := json.Marshal(e)
	if err != nil {
		return store.Row{}, fmt.Errorf("encode raw entity: %w", err)
	}

	row := store.Row{
		ID:           uuid.New(),
		Table:        t.Name,
		EntityID:     e.ID,
		EntityType:   e.Type,
		RecvTime:     recv,
		LocationID:   locationID(e),
		Location:     location(e),
		DateObserved: observed,
		Fields:       make(map[string]any, len(t.Columns)),
		RawEntity:    raw,
	}
	for _, c := range t.Columns {
		v := e.Value(c.Attribute)
		if c.Kind == store.KindText {
			row.Fields[c.Name] = nullableText(v)
		} else {
			row.Fields[c.Name] = nullableNumber(v)
		}
	}
	return row, nil
}

func locationID(e ngsild.Entity) string {
	if s, ok := e.Value("refStation").(string); ok {
		return s
	}
	if s, ok := e.Value("stationCode").(string); ok {
		return s
	}
	return ""
}

func location(e ngsild.Entity) json.RawMessage {
	v := e.Value("location")
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

func (p *Persister) receivedAt(notifiedAt string) time.Time {
	if notifiedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, notifiedAt); err == nil {
			return t.UTC()
		}
		p.logger.Warn("unparsable notifiedAt, using receive time", zap.String("notifiedAt", notifiedAt))
	}
	return p.now().UTC()
}

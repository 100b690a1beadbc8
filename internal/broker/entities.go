package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/ngsild"
)

// Query filters GET /entities.
type Query struct {
	Type  string
	Q     string
	Limit int
}

// BatchResult is the outcome of one upsert batch.
type BatchResult struct {
	Index      int            `json:"index"`
	Size       int            `json:"size"`
	StatusCode int            `json:"statusCode"`
	Succeeded  []string       `json:"succeeded,omitempty"`
	Failed     []BatchFailure `json:"failed,omitempty"`
}

// BatchFailure is a single entity rejected inside an otherwise accepted batch.
type BatchFailure struct {
	EntityID string `json:"entityId"`
	Reason   string `json:"reason"`
}

func entityPath(id string) string {
	return "/entities/" + url.PathEscape(id)
}

// CreateEntity posts a new entity. A 409 yields ErrAlreadyExists.
func (c *Client) CreateEntity(ctx context.Context, e ngsild.Entity) error {
	if _, err := c.do(ctx, "create_entity", http.MethodPost, "/entities", nil, e); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return fmt.Errorf("create %s: %w", e.ID, ErrAlreadyExists)
		}
		return err
	}
	return nil
}

// UpdateEntityAttrs patches attributes of an existing entity.
func (c *Client) UpdateEntityAttrs(ctx context.Context, id string, attrs map[string]ngsild.Attribute) error {
	_, err := c.do(ctx, "update_attrs", http.MethodPatch, entityPath(id)+"/attrs", nil, attrs)
	return err
}

// UpsertEntities sends entities in sequential batches of batchSize using
// create-or-replace semantics, pausing between batches. Batches are not
// rolled back: on failure the results of accepted batches are returned
// together with the error.
func (c *Client) UpsertEntities(ctx context.Context, entities []ngsild.Entity, batchSize int) ([]BatchResult, error) {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if len(entities) == 0 {
		return nil, nil
	}

	query := url.Values{"options": []string{"update"}}
	results := make([]BatchResult, 0, (len(entities)+batchSize-1)/batchSize)

	for start, index := 0, 0; start < len(entities); start, index = start+batchSize, index+1 {
		if index > 0 && c.batchDelay > 0 {
			timer := time.NewTimer(c.batchDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return results, ctx.Err()
			case <-timer.C:
			}
		}

		end := start + batchSize
		if end > len(entities) {
			end = len(entities)
		}
		batch := entities[start:end]

		resp, err := c.do(ctx, "upsert", http.MethodPost, "/entityOperations/upsert", query, batch)
		if err != nil {
			c.logger.Warn("upsert batch failed",
				zap.Int("batch", index),
				zap.Int("size", len(batch)),
				zap.Int("committed_batches", len(results)),
				zap.Error(err),
			)
			return results, fmt.Errorf("upsert batch %d: %w", index, err)
		}

		results = append(results, parseBatchResult(index, batch, resp))
	}

	return results, nil
}

// parseBatchResult reads 201 (array of ids), 204 (no body) and 207
// (multi-status) responses.
func parseBatchResult(index int, batch []ngsild.Entity, resp *response) BatchResult {
	res := BatchResult{Index: index, Size: len(batch), StatusCode: resp.status}

	if resp.status == http.StatusMultiStatus {
		var body struct {
			Success []string `json:"success"`
			Errors  []struct {
				EntityID string          `json:"entityId"`
				Error    json.RawMessage `json:"error"`
			} `json:"errors"`
		}
		if err := json.Unmarshal(resp.body, &body); err == nil {
			res.Succeeded = body.Success
			for _, e := range body.Errors {
				res.Failed = append(res.Failed, BatchFailure{EntityID: e.EntityID, Reason: string(e.Error)})
			}
			return res
		}
	}

	res.Succeeded = make([]string, 0, len(batch))
	for _, e := range batch {
		res.Succeeded = append(res.Succeeded, e.ID)
	}
	return res
}

// GetEntity fetches one entity; a 404 returns (nil, nil).
func (c *Client) GetEntity(ctx context.Context, id string) (*ngsild.Entity, error) {
	resp, err := c.do(ctx, "get_entity", http.MethodGet, entityPath(id), nil, nil)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var e ngsild.Entity
	if err := json.Unmarshal(resp.body, &e); err != nil {
		return nil, fmt.Errorf("decode entity %s: %w", id, err)
	}
	return &e, nil
}

// QueryEntities lists entities matching q.
func (c *Client) QueryEntities(ctx context.Context, q Query) ([]ngsild.Entity, error) {
	values := url.Values{}
	if q.Type != "" {
		values.Set("type", q.Type)
	}
	if q.Q != "" {
		values.Set("q", q.Q)
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}

	resp, err := c.do(ctx, "query_entities", http.MethodGet, "/entities", values, nil)
	if err != nil {
		return nil, err
	}

	var out []ngsild.Entity
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return nil, fmt.Errorf("decode entities: %w", err)
	}
	return out, nil
}

// DeleteEntity removes an entity; deleting a missing entity is a no-op.
func (c *Client) DeleteEntity(ctx context.Context, id string) error {
	if _, err := c.do(ctx, "delete_entity", http.MethodDelete, entityPath(id), nil, nil); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	return nil
}

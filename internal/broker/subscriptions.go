package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
)

// Subscription is an NGSI-LD subscription document.
type Subscription struct {
	ID                string             `json:"id,omitempty"`
	Type              string             `json:"type"`
	Description       string             `json:"description,omitempty"`
	Entities          []EntitySelector   `json:"entities"`
	WatchedAttributes []string           `json:"watchedAttributes,omitempty"`
	Notification      NotificationParams `json:"notification"`
	Status            string             `json:"status,omitempty"`
}

// EntitySelector selects entities by type.
type EntitySelector struct {
	Type string `json:"type"`
}

// NotificationParams configures what is pushed and where.
// An empty Attributes list notifies every attribute.
type NotificationParams struct {
	Attributes []string `json:"attributes,omitempty"`
	Format     string   `json:"format,omitempty"`
	Endpoint   Endpoint `json:"endpoint"`
}

// Endpoint is the webhook receiving notifications.
type Endpoint struct {
	URI    string `json:"uri"`
	Accept string `json:"accept,omitempty"`
}

// EntityTypes returns the entity types the subscription selects.
func (s Subscription) EntityTypes() []string {
	out := make([]string, 0, len(s.Entities))
	for _, e := range s.Entities {
		out = append(out, e.Type)
	}
	return out
}

// CreateSubscription registers a subscription and returns its id.
func (c *Client) CreateSubscription(ctx context.Context, sub Subscription) (string, error) {
	if sub.Type == "" {
		sub.Type = "Subscription"
	}
	resp, err := c.do(ctx, "create_subscription", http.MethodPost, "/subscriptions", nil, sub)
	if err != nil {
		return "", err
	}

	if loc := resp.header.Get("Location"); loc != "" {
		return path.Base(loc), nil
	}
	if sub.ID != "" {
		return sub.ID, nil
	}
	return "", fmt.Errorf("broker create_subscription: no Location header in response")
}

// ListSubscriptions returns every subscription visible to this client.
func (c *Client) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	values := url.Values{"limit": []string{"1000"}}
	resp, err := c.do(ctx, "list_subscriptions", http.MethodGet, "/subscriptions", values, nil)
	if err != nil {
		return nil, err
	}

	var subs []Subscription
	if err := json.Unmarshal(resp.body, &subs); err != nil {
		return nil, fmt.Errorf("decode subscriptions: %w", err)
	}
	return subs, nil
}

// DeleteSubscription removes a subscription; a missing one is a no-op.
func (c *Client) DeleteSubscription(ctx context.Context, id string) error {
	if _, err := c.do(ctx, "delete_subscription", http.MethodDelete, "/subscriptions/"+url.PathEscape(id), nil, nil); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	return nil
}

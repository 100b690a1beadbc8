// Package subscription keeps the broker's change-notification channel for
// observed entities pointed at this service's webhook.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/broker"
	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/metrics"
	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/ngsild"
)

// State of the subscription for one entity type.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateCleaning      State = "cleaning"
	StateCreating      State = "creating"
	StateActive        State = "active"
	StateFailed        State = "failed"
)

// ErrLockHeld is returned when another instance is reconciling subscriptions.
var ErrLockHeld = errors.New("subscription lock held by another instance")

// Broker is the part of the broker client the manager needs.
type Broker interface {
	CreateSubscription(ctx context.Context, sub broker.Subscription) (string, error)
	ListSubscriptions(ctx context.Context) ([]broker.Subscription, error)
	DeleteSubscription(ctx context.Context, id string) error
}

// Registry mirrors the entityType → subscription id map outside the process.
type Registry interface {
	Save(ctx context.Context, ids map[string]string) error
	Load(ctx context.Context) (map[string]string, error)
}

// Locker serializes reconciliation across instances.
type Locker interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

// DefaultEntityTypes are the observed types whose changes are persisted.
// Forecast types are never subscribed.
var DefaultEntityTypes = []string{ngsild.TypeWeatherObserved, ngsild.TypeAirQualityObserved}

// Options configures a Manager. Registry and Locker are optional.
type Options struct {
	NotifyURL   string
	EntityTypes []string
	Registry    Registry
	Locker      Locker
}

// RecreateResult counts what a reconciliation did.
type RecreateResult struct {
	Deleted int `json:"deleted"`
	Created int `json:"created"`
}

// Health compares configured types with matching live subscriptions.
type Health struct {
	Expected int  `json:"expected"`
	Active   int  `json:"active"`
	Healthy  bool `json:"healthy"`
}

// Manager owns subscription lifecycle. Its id map is a cache rebuilt on
// every reconciliation; the broker's subscription list is authoritative.
type Manager struct {
	broker  Broker
	opts    Options
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu     sync.RWMutex
	ids    map[string]string
	states map[string]State
}

// NewManager returns a Manager with every configured type Uninitialized.
func NewManager(b Broker, opts Options, logger *zap.Logger, m *metrics.Metrics) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(opts.EntityTypes) == 0 {
		opts.EntityTypes = DefaultEntityTypes
	}

	states := make(map[string]State, len(opts.EntityTypes))
	for _, t := range opts.EntityTypes {
		states[t] = StateUninitialized
	}
	return &Manager{
		broker:  b,
		opts:    opts,
		logger:  logger,
		metrics: m,
		ids:     make(map[string]string),
		states:  states,
	}
}

// Initialize removes stale subscriptions pointing at our webhook and creates
// one fresh subscription per entity type. Callers log the error and keep
// running without live persistence.
func (m *Manager) Initialize(ctx context.Context) error {
	res, err := m.Recreate(ctx)
	if err != nil {
		m.logger.Error("subscription initialization failed", zap.Error(err),
			zap.Int("deleted", res.Deleted), zap.Int("created", res.Created))
		return err
	}
	m.logger.Info("subscriptions initialized",
		zap.Int("deleted", res.Deleted), zap.Int("created", res.Created))
	return nil
}

// Recreate runs cleanup then creation and reports the counts.
func (m *Manager) Recreate(ctx context.Context) (RecreateResult, error) {
	if m.opts.Locker != nil {
		ok, err := m.opts.Locker.TryLock(ctx)
		if err != nil {
			return RecreateResult{}, fmt.Errorf("acquire subscription lock: %w", err)
		}
		if !ok {
			return RecreateResult{}, ErrLockHeld
		}
		defer func() {
			if err := m.opts.Locker.Unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("release subscription lock", zap.Error(err))
			}
		}()
	}

	var res RecreateResult

	m.setAll(StateCleaning)
	deleted, err := m.cleanup(ctx)
	res.Deleted = deleted
	if err != nil {
		m.setAll(StateFailed)
		return res, err
	}

	ids := make(map[string]string, len(m.opts.EntityTypes))
	var errs []error
	for _, t := range m.opts.EntityTypes {
		m.setState(t, StateCreating)
		id, err := m.broker.CreateSubscription(ctx, m.subscriptionFor(t))
		if err != nil {
			m.setState(t, StateFailed)
			m.logger.Error("create subscription", zap.String("entityType", t), zap.Error(err))
			errs = append(errs, fmt.Errorf("create %s subscription: %w", t, err))
			continue
		}
		ids[t] = id
		m.setState(t, StateActive)
		res.Created++
		m.logger.Info("subscription created", zap.String("entityType", t), zap.String("id", id))
	}

	m.mu.Lock()
	m.ids = ids
	m.mu.Unlock()
	m.metrics.SetSubscriptionsActive(res.Created)

	if m.opts.Registry != nil {
		if err := m.opts.Registry.Save(ctx, ids); err != nil {
			m.logger.Warn("save subscription registry", zap.Error(err))
		}
	}
	return res, errors.Join(errs...)
}

// cleanup deletes every subscription whose endpoint is our webhook.
// Individual delete failures are logged and skipped.
func (m *Manager) cleanup(ctx context.Context) (int, error) {
	subs, err := m.broker.ListSubscriptions(ctx)
	if err != nil {
		return 0, fmt.Errorf("list subscriptions: %w", err)
	}

	deleted := 0
	for _, s := range subs {
		if !m.ownsEndpoint(s) {
			continue
		}
		if err := m.broker.DeleteSubscription(ctx, s.ID); err != nil {
			m.logger.Warn("delete stale subscription", zap.String("id", s.ID), zap.Error(err))
			continue
		}
		deleted++
	}
	return deleted, nil
}

// Health lists broker subscriptions and counts configured types that have
// at least one live subscription pointing at our webhook.
func (m *Manager) Health(ctx context.Context) (Health, error) {
	h := Health{Expected: len(m.opts.EntityTypes)}

	subs, err := m.broker.ListSubscriptions(ctx)
	if err != nil {
		return h, err
	}

	covered := make(map[string]bool)
	for _, s := range subs {
		if !m.ownsEndpoint(s) || !isLive(s.Status) {
			continue
		}
		for _, t := range s.EntityTypes() {
			covered[t] = true
		}
	}
	for _, t := range m.opts.EntityTypes {
		if covered[t] {
			h.Active++
		}
	}
	h.Healthy = h.Active == h.Expected
	return h, nil
}

// SubscriptionIDs returns a copy of the entityType → id cache.
func (m *Manager) SubscriptionIDs() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string, len(m.ids))
	for k, v := range m.ids {
		out[k] = v
	}
	return out
}

// KnownSubscriptionIDs returns the local id cache, or the registry's copy
// when this instance has not reconciled itself (for example after losing
// the lock to another instance).
func (m *Manager) KnownSubscriptionIDs(ctx context.Context) (map[string]string, error) {
	if ids := m.SubscriptionIDs(); len(ids) > 0 || m.opts.Registry == nil {
		return ids, nil
	}
	ids, err := m.opts.Registry.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load subscription registry: %w", err)
	}
	return ids, nil
}

// States returns a copy of the per-type lifecycle states.
func (m *Manager) States() map[string]State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]State, len(m.states))
	for k, v := range m.states {
		out[k] = v
	}
	return out
}

func (m *Manager) subscriptionFor(entityType string) broker.Subscription {
	return broker.Subscription{
		Type:        "Subscription",
		Description: "forecast-sync: " + entityType + " changes",
		Entities:    []broker.EntitySelector{{Type: entityType}},
		Notification: broker.NotificationParams{
			Format: "normalized",
			Endpoint: broker.Endpoint{
				URI:    m.opts.NotifyURL,
				Accept: "application/json",
			},
		},
	}
}

func (m *Manager) ownsEndpoint(s broker.Subscription) bool {
	return sameURL(s.Notification.Endpoint.URI, m.opts.NotifyURL)
}

func sameURL(a, b string) bool {
	return a != "" && strings.TrimRight(a, "/") == strings.TrimRight(b, "/")
}

// brokers report "active" or omit the field for live subscriptions
func isLive(status string) bool {
	return status == "" || status == "active"
}

func (m *Manager) setAll(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for t := range m.states {
		m.states[t] = s
	}
}

func (m *Manager) setState(entityType string, s State) {
	m.mu.Lock()
	m.states[entityType] = s
	m.mu.Unlock()
}

package subscription

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/broker"
	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/ngsild"
)

const notifyURL = "http://forecast-sync:8080/notify"

type fakeBroker struct {
	mu        sync.Mutex
	subs      map[string]broker.Subscription
	deleted   []string
	seq       int
	listErr   error
	createErr map[string]error
}

func newFakeBroker(subs ...broker.Subscription) *fakeBroker {
	f := &fakeBroker{subs: make(map[string]broker.Subscription), createErr: map[string]error{}}
	for _, s := range subs {
		f.subs[s.ID] = s
	}
	return f
}

func (f *fakeBroker) CreateSubscription(_ context.Context, sub broker.Subscription) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.createErr[sub.Entities[0].Type]; err != nil {
		return "", err
	}
	f.seq++
	sub.ID = "urn:ngsi-ld:Subscription:new-" + strconv.Itoa(f.seq)
	f.subs[sub.ID] = sub
	return sub.ID, nil
}

func (f *fakeBroker) ListSubscriptions(context.Context) ([]broker.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]broker.Subscription, 0, len(f.subs))
	for _, s := range f.subs {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeBroker) DeleteSubscription(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func sub(id, entityType, uri string) broker.Subscription {
	return broker.Subscription{
		ID:           id,
		Type:         "Subscription",
		Entities:     []broker.EntitySelector{{Type: entityType}},
		Notification: broker.NotificationParams{Endpoint: broker.Endpoint{URI: uri}},
	}
}

func TestInitializeDeletesOnlyOwnSubscriptions(t *testing.T) {
	fb := newFakeBroker(
		sub("old-1", ngsild.TypeWeatherObserved, notifyURL),
		sub("old-2", ngsild.TypeAirQualityObserved, notifyURL+"/"),
		sub("other", ngsild.TypeWeatherObserved, "http://someone-else/notify"),
	)
	m := NewManager(fb, Options{NotifyURL: notifyURL}, nil, nil)

	require.NoError(t, m.Initialize(context.Background()))

	assert.ElementsMatch(t, []string{"old-1", "old-2"}, fb.deleted)
	assert.Contains(t, fb.subs, "other")
	assert.Len(t, fb.subs, 3, "the foreign subscription plus one new per type")
}

func TestInitializeCreatesOnePerTypeWithoutAttributeFilter(t *testing.T) {
	fb := newFakeBroker()
	m := NewManager(fb, Options{NotifyURL: notifyURL}, nil, nil)

	require.NoError(t, m.Initialize(context.Background()))

	ids := m.SubscriptionIDs()
	require.Len(t, ids, 2)
	for _, typ := range DefaultEntityTypes {
		id, ok := ids[typ]
		require.True(t, ok, typ)
		s := fb.subs[id]
		assert.Equal(t, []string{typ}, s.EntityTypes())
		assert.Empty(t, s.Notification.Attributes)
		assert.Equal(t, notifyURL, s.Notification.Endpoint.URI)
		assert.Equal(t, "normalized", s.Notification.Format)
	}
	for _, st := range m.States() {
		assert.Equal(t, StateActive, st)
	}
}

func TestInitializePartialCreateFailure(t *testing.T) {
	fb := newFakeBroker()
	fb.createErr[ngsild.TypeAirQualityObserved] = errors.New("broker says no")
	m := NewManager(fb, Options{NotifyURL: notifyURL}, nil, nil)

	err := m.Initialize(context.Background())
	require.Error(t, err)

	states := m.States()
	assert.Equal(t, StateActive, states[ngsild.TypeWeatherObserved])
	assert.Equal(t, StateFailed, states[ngsild.TypeAirQualityObserved])
	assert.Len(t, m.SubscriptionIDs(), 1)
}

func TestInitializeListFailureMarksFailed(t *testing.T) {
	fb := newFakeBroker()
	fb.listErr = errors.New("connection refused")
	m := NewManager(fb, Options{NotifyURL: notifyURL}, nil, nil)

	assert.Error(t, m.Initialize(context.Background()))
	for _, st := range m.States() {
		assert.Equal(t, StateFailed, st)
	}
}

func TestRecreateReportsCounts(t *testing.T) {
	fb := newFakeBroker()
	reg := NewMemoryRegistry()
	m := NewManager(fb, Options{NotifyURL: notifyURL, Registry: reg}, nil, nil)
	require.NoError(t, m.Initialize(context.Background()))

	res, err := m.Recreate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RecreateResult{Deleted: 2, Created: 2}, res)
	assert.Len(t, fb.subs, 2)

	saved, err := reg.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, m.SubscriptionIDs(), saved)
}

func TestHealth(t *testing.T) {
	fb := newFakeBroker()
	m := NewManager(fb, Options{NotifyURL: notifyURL}, nil, nil)

	h, err := m.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Health{Expected: 2, Active: 0, Healthy: false}, h)

	require.NoError(t, m.Initialize(context.Background()))
	h, err = m.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Health{Expected: 2, Active: 2, Healthy: true}, h)

	for id, s := range fb.subs {
		if s.Entities[0].Type == ngsild.TypeWeatherObserved {
			s.Status = "expired"
			fb.subs[id] = s
		}
	}
	h, err = m.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, h.Active)
	assert.False(t, h.Healthy)
}

type heldLock struct{}

func (heldLock) TryLock(context.Context) (bool, error) { return false, nil }
func (heldLock) Unlock(context.Context) error          { return nil }

func TestRecreateSkipsWhenLockHeld(t *testing.T) {
	fb := newFakeBroker(sub("old-1", ngsild.TypeWeatherObserved, notifyURL))
	m := NewManager(fb, Options{NotifyURL: notifyURL, Locker: heldLock{}}, nil, nil)

	_, err := m.Recreate(context.Background())
	assert.ErrorIs(t, err, ErrLockHeld)
	assert.Empty(t, fb.deleted)
	assert.Equal(t, StateUninitialized, m.States()[ngsild.TypeWeatherObserved])
}

func TestLockLoserReportsRegistryIDs(t *testing.T) {
	reg := NewMemoryRegistry()
	winner := NewManager(newFakeBroker(), Options{NotifyURL: notifyURL, Registry: reg}, nil, nil)
	require.NoError(t, winner.Initialize(context.Background()))

	loser := NewManager(newFakeBroker(), Options{NotifyURL: notifyURL, Registry: reg, Locker: heldLock{}}, nil, nil)
	assert.ErrorIs(t, loser.Initialize(context.Background()), ErrLockHeld)
	assert.Empty(t, loser.SubscriptionIDs())

	ids, err := loser.KnownSubscriptionIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, winner.SubscriptionIDs(), ids)
	assert.Len(t, ids, 2)
}

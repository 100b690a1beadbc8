package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/geo"
	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/ingest"
	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/metrics"
	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/notify"
	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/station"
	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/store"
	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/subscription"
)

type fakeSubscriptions struct {
	health     subscription.Health
	recreate   subscription.RecreateResult
	recreateEr error
}

func (f *fakeSubscriptions) Recreate(context.Context) (subscription.RecreateResult, error) {
	return f.recreate, f.recreateEr
}

func (f *fakeSubscriptions) Health(context.Context) (subscription.Health, error) {
	return f.health, nil
}

func (f *fakeSubscriptions) KnownSubscriptionIDs(context.Context) (map[string]string, error) {
	return map[string]string{"WeatherObserved": "urn:ngsi-ld:Subscription:1"}, nil
}

func (f *fakeSubscriptions) States() map[string]subscription.State {
	return map[string]subscription.State{"WeatherObserved": subscription.StateActive}
}

type fakeBroker struct{ up bool }

func (f fakeBroker) HealthCheck(context.Context) bool { return f.up }

type fakeIngest struct {
	err    error
	domain string
	phase  ingest.Phase
}

func (f *fakeIngest) Run(_ context.Context, domain string, phase ingest.Phase) (ingest.CycleReport, error) {
	f.domain, f.phase = domain, phase
	if f.err != nil {
		return ingest.CycleReport{}, f.err
	}
	return ingest.CycleReport{Domains: []ingest.DomainReport{{Domain: domain, Success: 3}}}, nil
}

type testEnv struct {
	app    *fiber.App
	mem    *store.MemoryStore
	subs   *fakeSubscriptions
	ingest *fakeIngest
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		mem:    store.NewMemoryStore(false, 0),
		subs:   &fakeSubscriptions{health: subscription.Health{Expected: 2, Active: 2, Healthy: true}},
		ingest: &fakeIngest{},
	}

	reg := prometheus.NewRegistry()
	m := metrics.New()
	require.NoError(t, m.Register(reg))

	env.app = NewApp()
	RegisterRoutes(env.app, Deps{
		Persister: notify.NewPersister(env.mem, nil, m),
		Resolver: geo.NewResolver(station.StaticSource{
			{Code: "HN-HK", Status: station.StatusActive, Location: station.Location{Lat: 21.0285, Lon: 105.8542}},
		}),
		Ingest:        env.ingest,
		Subscriptions: env.subs,
		Broker:        fakeBroker{up: true},
		Gatherer:      reg,
	})
	return env
}

func doJSON(t *testing.T, app *fiber.App, method, target, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 && data[0] == '{' {
		require.NoError(t, json.Unmarshal(data, &out))
	}
	return resp.StatusCode, out
}

func TestNotifyPersistsAndAlwaysReturns200(t *testing.T) {
	env := newTestEnv(t)

	body := `{
		"subscriptionId": "urn:ngsi-ld:Subscription:1",
		"notifiedAt": "2024-05-01T08:00:05Z",
		"data": [
			{"id": "urn:ngsi-ld:WeatherObserved:HN-HK", "type": "WeatherObserved",
			 "dateObserved": {"type": "Property", "value": "2024-05-01T08:00:00Z"},
			 "temperature": {"type": "Property", "value": 30.5}},
			{"id": "urn:ngsi-ld:WeatherObserved:HN-HD", "type": "WeatherObserved",
			 "dateObserved": {"type": "Property", "value": "yesterday"}}
		]
	}`
	code, out := doJSON(t, env.app, http.MethodPost, "/notify", body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), out["success"])
	assert.Equal(t, float64(1), out["persisted"])
	assert.Equal(t, float64(1), out["failed"])
	assert.Len(t, out["errors"], 1)
	assert.Equal(t, 1, env.mem.Count(store.WeatherObservedTable.Name))

	code, out = doJSON(t, env.app, http.MethodPost, "/notify", `{not json`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), out["failed"])
	assert.Len(t, out["errors"], 1)
}

func TestNotifyKeepsValidEntitiesAroundMalformedOne(t *testing.T) {
	env := newTestEnv(t)

	body := `{
		"subscriptionId": "urn:ngsi-ld:Subscription:1",
		"notifiedAt": "2024-05-01T08:00:05Z",
		"data": [
			{"id": "urn:ngsi-ld:WeatherObserved:HN-HK", "type": "WeatherObserved",
			 "dateObserved": {"type": "Property", "value": "2024-05-01T08:00:00Z"}},
			{"id": 42, "type": "WeatherObserved"},
			{"id": "urn:ngsi-ld:WeatherObserved:HN-HD", "type": "WeatherObserved",
			 "dateObserved": {"type": "Property", "value": "2024-05-01T08:00:00Z"}}
		]
	}`
	code, out := doJSON(t, env.app, http.MethodPost, "/notify", body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(2), out["persisted"])
	assert.Equal(t, float64(1), out["failed"])
	assert.Len(t, out["errors"], 1)
	assert.Equal(t, 2, env.mem.Count(store.WeatherObservedTable.Name))
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	code, out := doJSON(t, env.app, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, true, out["broker"])

	env.subs.health = subscription.Health{Expected: 2, Active: 1}
	_, out = doJSON(t, env.app, http.MethodGet, "/health", "")
	assert.Equal(t, "degraded", out["status"])
}

func TestNearestStationValidation(t *testing.T) {
	env := newTestEnv(t)

	for _, target := range []string{
		"/api/v1/stations/nearest",
		"/api/v1/stations/nearest?lat=21",
		"/api/v1/stations/nearest?lat=abc&lon=105",
		"/api/v1/stations/nearest?lat=95&lon=105",
		"/api/v1/stations/nearest?lat=21&lon=105&limit=x",
	} {
		code, out := doJSON(t, env.app, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, code, target)
		assert.Equal(t, true, out["error"], target)
	}
}

func TestNearestStation(t *testing.T) {
	env := newTestEnv(t)

	code, out := doJSON(t, env.app, http.MethodGet, "/api/v1/stations/nearest?lat=21.03&lon=105.85", "")
	require.Equal(t, http.StatusOK, code)
	stations := out["stations"].([]any)
	require.Len(t, stations, 1)
	first := stations[0].(map[string]any)
	assert.Equal(t, "HN-HK", first["code"])
	assert.Contains(t, first, "distanceKm")

	_, out = doJSON(t, env.app, http.MethodGet, "/api/v1/stations/nearest?lat=10.8&lon=106.6&radiusKm=5", "")
	assert.Empty(t, out["stations"])
}

func TestAdminIngest(t *testing.T) {
	env := newTestEnv(t)

	code, out := doJSON(t, env.app, http.MethodPost, "/api/v1/admin/ingest?domain=weather&phase=current", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "weather", env.ingest.domain)
	assert.Equal(t, ingest.PhaseCurrent, env.ingest.phase)
	assert.Len(t, out["domains"], 1)

	code, _ = doJSON(t, env.app, http.MethodPost, "/api/v1/admin/ingest?domain=pollen", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = doJSON(t, env.app, http.MethodPost, "/api/v1/admin/ingest?phase=hourly", "")
	assert.Equal(t, http.StatusBadRequest, code)

	env.ingest.err = ingest.ErrCycleRunning
	code, _ = doJSON(t, env.app, http.MethodPost, "/api/v1/admin/ingest", "")
	assert.Equal(t, http.StatusConflict, code)
}

type deferredIngest struct {
	release chan struct{}
	seen    chan string
}

func (f *deferredIngest) Run(_ context.Context, domain string, phase ingest.Phase) (ingest.CycleReport, error) {
	<-f.release
	f.seen <- domain + "/" + string(phase)
	return ingest.CycleReport{}, nil
}

func TestAsyncIngestKeepsItsArguments(t *testing.T) {
	runner := &deferredIngest{release: make(chan struct{}), seen: make(chan string, 1)}
	app := NewApp()
	RegisterRoutes(app, Deps{
		Ingest:        runner,
		Subscriptions: &fakeSubscriptions{},
		Broker:        fakeBroker{up: true},
	})

	code, out := doJSON(t, app, http.MethodPost, "/api/v1/admin/ingest?domain=airquality&phase=forecast&async=true", "")
	require.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, "airquality", out["domain"])

	// Later requests reuse the request buffers of the first one.
	for i := 0; i < 20; i++ {
		doJSON(t, app, http.MethodGet, "/api/v1/stations/nearest?lat=1&lon=x", "")
		doJSON(t, app, http.MethodPost, "/api/v1/admin/ingest?domain=pollen&phase=1orecast", "")
	}
	close(runner.release)

	select {
	case got := <-runner.seen:
		assert.Equal(t, "airquality/forecast", got)
	case <-time.After(2 * time.Second):
		t.Fatal("async ingestion never ran")
	}
}

func TestAdminSubscriptions(t *testing.T) {
	env := newTestEnv(t)
	env.subs.recreate = subscription.RecreateResult{Deleted: 2, Created: 2}

	code, out := doJSON(t, env.app, http.MethodPost, "/api/v1/admin/subscriptions/recreate", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(2), out["deleted"])
	assert.Equal(t, float64(2), out["created"])

	env.subs.recreateEr = errors.New("broker down")
	code, _ = doJSON(t, env.app, http.MethodPost, "/api/v1/admin/subscriptions/recreate", "")
	assert.Equal(t, http.StatusBadGateway, code)

	code, out = doJSON(t, env.app, http.MethodGet, "/api/v1/admin/subscriptions", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, out, "states")
	assert.Contains(t, out, "health")
	assert.Equal(t, map[string]any{"WeatherObserved": "urn:ngsi-ld:Subscription:1"}, out["ids"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	doJSON(t, env.app, http.MethodPost, "/notify", `{"data":[{"id":"urn:ngsi-ld:X:1","type":"X"}]}`)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := env.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "forecast_sync_")
}

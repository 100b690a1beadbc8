package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/geo"
	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/ingest"
	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/notify"
	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/subscription"
)

var validate = validator.New()

type Persister interface {
	Persist(ctx context.Context, n notify.Notification) notify.Report
}

type Resolver interface {
	FindNearest(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]geo.NearbyStation, error)
}

type IngestRunner interface {
	Run(ctx context.Context, domain string, phase ingest.Phase) (ingest.CycleReport, error)
}

type Subscriptions interface {
	Recreate(ctx context.Context) (subscription.RecreateResult, error)
	Health(ctx context.Context) (subscription.Health, error)
	KnownSubscriptionIDs(ctx context.Context) (map[string]string, error)
	States() map[string]subscription.State
}

type BrokerHealth interface {
	HealthCheck(ctx context.Context) bool
}

// Deps are the handlers' collaborators. Gatherer may be nil to disable /metrics.
type Deps struct {
	Persister     Persister
	Resolver      Resolver
	Ingest        IngestRunner
	Subscriptions Subscriptions
	Broker        BrokerHealth
	Gatherer      prometheus.Gatherer
	Logger        *zap.Logger
}

// NewApp builds the Fiber app with the shared error handler and middleware.
func NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "forecast-sync",
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          5 * time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())
	return app
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}

	app.Post("/notify", notifyHandler(d))
	app.Get("/health", healthHandler(d))
	if d.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := app.Group("/api/v1")
	v1.Get("/stations/nearest", nearestHandler(d))

	admin := v1.Group("/admin")
	admin.Post("/ingest", ingestHandler(d))
	admin.Post("/subscriptions/recreate", func(c *fiber.Ctx) error {
		res, err := d.Subscriptions.Recreate(c.UserContext())
		if errors.Is(err, subscription.ErrLockHeld) {
			return fiber.NewError(fiber.StatusConflict, err.Error())
		}
		if err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
				"deleted": res.Deleted,
				"created": res.Created,
			})
		}
		return c.JSON(res)
	})
	admin.Get("/subscriptions", func(c *fiber.Ctx) error {
		out := fiber.Map{"states": d.Subscriptions.States()}
		if ids, err := d.Subscriptions.KnownSubscriptionIDs(c.UserContext()); err == nil {
			out["ids"] = ids
		} else {
			out["idsError"] = err.Error()
		}
		if h, err := d.Subscriptions.Health(c.UserContext()); err == nil {
			out["health"] = h
		} else {
			out["healthError"] = err.Error()
		}
		return c.JSON(out)
	})
}

// notifyHandler always answers 200 so the broker does not retry-storm the
// endpoint; failures are itemized in the body.
func notifyHandler(d Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var n notify.Notification
		if err := json.Unmarshal(c.Body(), &n); err != nil {
			d.Logger.Warn("undecodable notification", zap.Error(err))
			return c.JSON(notify.InvalidPayload(err))
		}
		return c.JSON(d.Persister.Persist(c.UserContext(), n))
	}
}

func healthHandler(d Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
		defer cancel()

		brokerUp := d.Broker.HealthCheck(ctx)
		out := fiber.Map{
			"status":  "ok",
			"service": "forecast-sync",
			"broker":  brokerUp,
		}
		if h, err := d.Subscriptions.Health(ctx); err == nil {
			out["subscriptions"] = h
			if !h.Healthy {
				out["status"] = "degraded"
			}
		}
		if !brokerUp {
			out["status"] = "degraded"
		}
		return c.JSON(out)
	}
}

// nearestQuery holds query parameters for the nearest-station lookup.
type nearestQuery struct {
	Lat      *float64 `validate:"required,gte=-90,lte=90"`
	Lon      *float64 `validate:"required,gte=-180,lte=180"`
	RadiusKm float64  `validate:"gte=0,lte=1000"`
	Limit    int      `validate:"gte=0,lte=100"`
}

func (q *nearestQuery) bind(c *fiber.Ctx) error {
	var err error
	if q.Lat, err = optionalFloat(c.Query("lat")); err != nil {
		return errors.New("lat must be a number")
	}
	if q.Lon, err = optionalFloat(c.Query("lon")); err != nil {
		return errors.New("lon must be a number")
	}
	if r, err := optionalFloat(c.Query("radiusKm")); err != nil {
		return errors.New("radiusKm must be a number")
	} else if r != nil {
		q.RadiusKm = *r
	}
	if s := c.Query("limit"); s != "" {
		if q.Limit, err = strconv.Atoi(s); err != nil {
			return errors.New("limit must be an integer")
		}
	}
	return validate.Struct(q)
}

func optionalFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func nearestHandler(d Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var q nearestQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		found, err := d.Resolver.FindNearest(c.UserContext(), *q.Lat, *q.Lon, q.RadiusKm, q.Limit)
		if err != nil {
			if errors.Is(err, geo.ErrInvalidCoordinate) {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			d.Logger.Error("nearest station lookup", zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "failed to resolve nearest station")
		}
		return c.JSON(fiber.Map{
			"lat":      *q.Lat,
			"lon":      *q.Lon,
			"stations": found,
		})
	}
}

type ingestQuery struct {
	Domain string `validate:"oneof=all weather airquality"`
	Async  bool
}

func ingestHandler(d Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Query values alias the request buffer; copy them so an async run
		// still sees them after the handler returns.
		q := ingestQuery{
			Domain: utils.CopyString(c.Query("domain", "all")),
			Async:  c.QueryBool("async", false),
		}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		phase, err := ingest.ParsePhase(utils.CopyString(c.Query("phase")))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if q.Async {
			go func() {
				if _, err := d.Ingest.Run(context.Background(), q.Domain, phase); err != nil {
					d.Logger.Warn("async ingestion", zap.Error(err))
				}
			}()
			return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"accepted": true, "domain": q.Domain, "phase": phase})
		}

		rep, err := d.Ingest.Run(c.UserContext(), q.Domain, phase)
		switch {
		case errors.Is(err, ingest.ErrCycleRunning):
			return fiber.NewError(fiber.StatusConflict, err.Error())
		case err != nil:
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(rep)
	}
}

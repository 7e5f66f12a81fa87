package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/telegram-weather-publisher/internal/scheduler"
	"github.com/i474232898/telegram-weather-publisher/internal/store"
	"github.com/i474232898/telegram-weather-publisher/internal/weather"
)

var validate = validator.New()

// CronTokenHeader carries the shared secret of the remote publish trigger.
const CronTokenHeader = "X-Cron-Token"

// Store is the read side of the configuration and ledger used by the API.
type Store interface {
	ServiceConfig(ctx context.Context) (store.ServiceConfig, error)
	GetCity(ctx context.Context, id int64) (store.City, error)
	CountActiveCities(ctx context.Context) (int, error)
	CountActiveChannels(ctx context.Context) (int, error)
	ActiveSchedules(ctx context.Context) ([]store.Schedule, error)
	CountSuccessful(ctx context.Context, kind weather.Kind, date time.Time) (int, error)
}

// Publisher runs a publication cycle.
type Publisher interface {
	Publish(ctx context.Context, kind weather.Kind) (int, error)
}

// Handler holds the dependencies of the HTTP routes.
type Handler struct {
	Store     Store
	Publisher Publisher

	// CronToken is the expected X-Cron-Token value; empty disables the trigger.
	CronToken string
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, h Handler) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	v1 := app.Group("/api/v1")
	v1.Get("/status", h.status)
	v1.Get("/publications/count", h.publicationCount)

	app.Post("/internal/publish/:kind", h.publish)
}

type scheduleView struct {
	ForecastType string `json:"forecast_type"`
	Time         string `json:"time"`
	JobID        string `json:"job_id"`
}

func (h Handler) status(c *fiber.Ctx) error {
	ctx := c.UserContext()

	cfg, err := h.Store.ServiceConfig(ctx)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load service config")
	}

	var defaultCity *string
	if cfg.DefaultCityID != nil {
		city, err := h.Store.GetCity(ctx, *cfg.DefaultCityID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to load default city")
		}
		if err == nil {
			defaultCity = &city.Name
		}
	}

	cities, err := h.Store.CountActiveCities(ctx)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to count cities")
	}
	channels, err := h.Store.CountActiveChannels(ctx)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to count channels")
	}
	schedules, err := h.Store.ActiveSchedules(ctx)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load schedules")
	}

	views := make([]scheduleView, 0, len(schedules))
	for _, s := range schedules {
		views = append(views, scheduleView{
			ForecastType: s.Kind.String(),
			Time:         s.At.String(),
			JobID:        scheduler.JobID(s.Kind),
		})
	}

	return c.JSON(fiber.Map{
		"service_enabled": cfg.ServiceEnabled,
		"default_city":    defaultCity,
		"active_cities":   cities,
		"active_channels": channels,
		"schedules":       views,
	})
}

// countQuery holds query parameters for the publication count endpoint.
type countQuery struct {
	Kind string `validate:"required,oneof=today tomorrow three_days"`
	Date string `validate:"required,datetime=2006-01-02"`
}

func (h Handler) publicationCount(c *fiber.Ctx) error {
	q := countQuery{Kind: c.Query("kind"), Date: c.Query("date")}
	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	kind, _ := weather.ParseKind(q.Kind)
	date, _ := time.Parse(weather.DateLayout, q.Date)

	n, err := h.Store.CountSuccessful(c.UserContext(), kind, date)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to count publications")
	}
	return c.JSON(fiber.Map{
		"forecast_type": q.Kind,
		"date":          q.Date,
		"successful":    n,
	})
}

func (h Handler) publish(c *fiber.Ctx) error {
	if h.CronToken == "" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"detail": "cron secret token is not configured"})
	}
	token := c.Get(CronTokenHeader)
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.CronToken)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"detail": "invalid cron token"})
	}

	kind, err := weather.ParseKind(c.Params("kind"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"detail": err.Error()})
	}

	n, err := h.Publisher.Publish(c.UserContext(), kind)
	if err != nil {
		log.Printf("ERROR: api: remote publish %s failed: %v", kind, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": err.Error()})
	}

	return c.JSON(fiber.Map{
		"status":        "ok",
		"forecast_type": kind.String(),
		"published":     n,
	})
}

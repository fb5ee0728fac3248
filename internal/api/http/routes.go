package httpapi

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/noise-dashboard/internal/noise"
	"github.com/i474232898/noise-dashboard/internal/session"
	"github.com/i474232898/noise-dashboard/internal/store"
)

var validate = validator.New()

const defaultLogLimit = 100

// Deps groups what the HTTP layer reads from.
type Deps struct {
	Session  *session.Session
	Logs     noise.LogSource
	Scale    noise.ColorScale
	Location *time.Location
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	if d.Location == nil {
		d.Location = time.UTC
	}
	sess := d.Session
	v1 := app.Group("/api/v1")

	v1.Get("/sensors", func(c *fiber.Ctx) error {
		info, err := sess.SnapshotInfo(c.UserContext())
		if err != nil {
			return sessionError(err)
		}

		ms := sess.Snapshots().AllForDisplay()
		sensors := make([]sensorView, 0, len(ms))
		for _, m := range ms {
			sensors = append(sensors, newSensorView(m, d.Scale))
		}

		resp := fiber.Map{
			"status":  info.Status,
			"sensors": sensors,
		}
		if info.LastErr != nil {
			resp["last_error"] = info.LastErr.Error()
		}
		return c.JSON(resp)
	})

	v1.Get("/sensors/:id", func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "sensor id must be an integer")
		}

		m, err := sess.Snapshots().Get(id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no measurement for requested sensor")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read sensor")
		}
		return c.JSON(newSensorView(m, d.Scale))
	})

	v1.Get("/selection", func(c *fiber.Ctx) error {
		sel, err := sess.Selection(c.UserContext())
		if err != nil {
			return sessionError(err)
		}
		return c.JSON(newSelectionView(sel, d.Location))
	})

	v1.Put("/selection", func(c *fiber.Ctx) error {
		var req selectRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		sel, err := sess.Select(c.UserContext(), *req.SensorID)
		if err != nil {
			return sessionError(err)
		}
		return c.JSON(newSelectionView(sel, d.Location))
	})

	v1.Put("/selection/filter", func(c *fiber.Ctx) error {
		var req filterRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		f, err := req.toFilter(d.Location)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		sel, err := sess.SetFilter(c.UserContext(), f)
		if err != nil {
			if errors.Is(err, session.ErrNoSelection) {
				return fiber.NewError(fiber.StatusConflict, "select a sensor before filtering")
			}
			return sessionError(err)
		}
		return c.JSON(newSelectionView(sel, d.Location))
	})

	v1.Get("/history", func(c *fiber.Ctx) error {
		view, err := sess.View(c.UserContext())
		if err != nil {
			return sessionError(err)
		}
		return c.JSON(newHistoryView(view, d.Scale, d.Location))
	})

	v1.Get("/reference", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"scale":  noise.ReferenceScale,
			"levels": noise.ReferenceTable(),
		})
	})

	v1.Get("/logs", func(c *fiber.Ctx) error {
		req := logsQuery{Limit: c.QueryInt("limit", defaultLogLimit)}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if d.Logs == nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "event log is not available")
		}

		entries, err := d.Logs.Logs(c.UserContext(), req.Limit)
		if err != nil {
			return fiber.NewError(fiber.StatusBadGateway, "failed to fetch event log")
		}

		out := make([]logView, 0, len(entries))
		for _, e := range entries {
			out = append(out, logView{LogEntry: e, Severity: e.Severity()})
		}
		return c.JSON(fiber.Map{"logs": out})
	})
}

// ErrorHandler is the centralized error response.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

// sessionError maps session failures that are not the caller's fault.
func sessionError(err error) error {
	if errors.Is(err, session.ErrClosed) {
		return fiber.NewError(fiber.StatusServiceUnavailable, "dashboard session is shutting down")
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}

// selectRequest is the body of PUT /selection.
type selectRequest struct {
	SensorID *int `json:"sensor_id" validate:"required,gte=0"`
}

// filterRequest is the body of PUT /selection/filter.
type filterRequest struct {
	Mode      string `json:"mode" validate:"required,oneof=none date_range window"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Window    string `json:"window" validate:"required_if=Mode window"`
}

// toFilter builds the filter. A date range with a missing bound is accepted and
// leaves the series unfiltered.
func (r filterRequest) toFilter(loc *time.Location) (noise.Filter, error) {
	switch r.Mode {
	case "date_range":
		var start, end time.Time
		var err error
		if r.StartDate != "" {
			if start, err = noise.ParseDate(r.StartDate, loc); err != nil {
				return noise.Filter{}, errors.New("start_date must be YYYY-MM-DD")
			}
		}
		if r.EndDate != "" {
			if end, err = noise.ParseDate(r.EndDate, loc); err != nil {
				return noise.Filter{}, errors.New("end_date must be YYYY-MM-DD")
			}
		}
		if !start.IsZero() && !end.IsZero() && end.Before(start) {
			return noise.Filter{}, errors.New("end_date must not be before start_date")
		}
		return noise.DateRange(start, end), nil
	case "window":
		w, err := noise.ParseWindow(r.Window)
		if err != nil {
			return noise.Filter{}, err
		}
		return noise.RollingWindow(w), nil
	default:
		return noise.NoFilter(), nil
	}
}

// logsQuery holds query parameters for the logs endpoint.
type logsQuery struct {
	Limit int `validate:"gte=1,lte=1000"`
}

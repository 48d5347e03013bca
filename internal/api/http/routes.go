package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/mlindgren/weatherjob/internal/store"
	"github.com/mlindgren/weatherjob/internal/weather"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service) {
	v1 := app.Group("/api/v1")

	v1.Get("/weather/hourly", func(c *fiber.Ctx) error {
		var req rangeQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		rows, err := service.GetRange(c.UserContext(), req.Location, req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no weather data for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather data")
		}

		return c.JSON(fiber.Map{
			"location": req.Location,
			"from":     req.From,
			"to":       req.To,
			"hours":    rows,
		})
	})

	v1.Get("/weather/daily", func(c *fiber.Ctx) error {
		var req dailyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		summaries, err := service.DailySummaries(c.UserContext(), req.Location, req.From, req.To)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to aggregate weather data")
		}
		if len(summaries) == 0 {
			return fiber.NewError(fiber.StatusNotFound, "no daily summaries for requested range")
		}

		return c.JSON(fiber.Map{
			"location": req.Location,
			"from":     req.From,
			"to":       req.To,
			"days":     summaries,
		})
	})
}

// rangeQuery holds query parameters for the hourly endpoint.
type rangeQuery struct {
	Location string    `validate:"required"`
	From     time.Time `validate:"required"`
	To       time.Time `validate:"required,gtefield=From"`
}

func (r *rangeQuery) bind(c *fiber.Ctx) error {
	r.Location = c.Query("location")

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	r.From = from
	r.To = to
	return nil
}

// dailyQuery holds query parameters for the daily-summary endpoint.
// Either days or an explicit from/to pair selects the range.
type dailyQuery struct {
	Location string `validate:"required"`
	Days     int    `validate:"omitempty,min=1,max=90"`
	From     time.Time
	To       time.Time
}

func (d *dailyQuery) bind(c *fiber.Ctx) error {
	d.Location = c.Query("location")

	fromStr := c.Query("from")
	toStr := c.Query("to")
	daysStr := c.Query("days")

	switch {
	case fromStr != "" || toStr != "":
		if fromStr == "" || toStr == "" {
			return errors.New("from and to must be given together")
		}
		from, err := parseTime(fromStr)
		if err != nil {
			return err
		}
		to, err := parseTime(toStr)
		if err != nil {
			return err
		}
		d.From = from
		d.To = to

	default:
		days := 7
		if daysStr != "" {
			n, err := strconv.Atoi(daysStr)
			if err != nil || n == 0 {
				return errors.New("days must be a positive integer")
			}
			days = n
		}
		d.Days = days
		now := time.Now().UTC()
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		d.From = midnight.AddDate(0, 0, -(days - 1))
		d.To = now
	}

	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}

package httpapi

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-lookup/internal/store"
)

var validate = validator.New()

// defaultFeaturedWindow is used when from/to are omitted.
const defaultFeaturedWindow = 24 * time.Hour

// featuredQuery holds the parameters of the featured history endpoint.
type featuredQuery struct {
	Location string    `validate:"required"`
	From     time.Time `validate:"required"`
	To       time.Time `validate:"required,gtefield=From"`
}

func (q *featuredQuery) bind(c *fiber.Ctx, now time.Time) error {
	loc, err := url.PathUnescape(c.Params("location"))
	if err != nil {
		return err
	}
	q.Location = strings.TrimSpace(loc)
	q.To = now
	q.From = now.Add(-defaultFeaturedWindow)

	if s := c.Query("from"); s != "" {
		t, err := parseTime(s)
		if err != nil {
			return err
		}
		q.From = t
	}
	if s := c.Query("to"); s != "" {
		t, err := parseTime(s)
		if err != nil {
			return err
		}
		q.To = t
	}
	return nil
}

// parseTime accepts RFC3339 or unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}

// featuredHistory returns the cached readings of one featured location.
func (s *Server) featuredHistory(c *fiber.Ctx) error {
	if s.deps.Featured == nil {
		return fiber.NewError(fiber.StatusNotFound, "featured locations are not enabled")
	}

	var q featuredQuery
	if err := q.bind(c, time.Now()); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	snaps, err := s.deps.Featured.Range(q.Location, q.From, q.To)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "no readings for requested location")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to read featured history")
	}

	return c.JSON(fiber.Map{
		"location":  q.Location,
		"from":      q.From,
		"to":        q.To,
		"snapshots": snaps,
	})
}

package httpapi

import (
	"bytes"
	"errors"
	"html/template"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/i474232898/weather-lookup/internal/export"
	"github.com/i474232898/weather-lookup/internal/history"
	"github.com/i474232898/weather-lookup/internal/pages"
	"github.com/i474232898/weather-lookup/internal/search"
	"github.com/i474232898/weather-lookup/internal/store"
)

// Backend is everything the web frontend needs from the API client.
type Backend interface {
	pages.WeatherSource
	pages.Creator
	history.Store
	export.Exporter
}

// Deps are the collaborators of a Server.
type Deps struct {
	Sessions    *Sessions
	Geolocation *search.Geolocation
	// GeolocationTimeout bounds the browser geolocation request.
	GeolocationTimeout time.Duration

	Featured          *store.MemoryStore
	FeaturedLocations []string
}

// Server renders the HTML frontend.
type Server struct {
	deps  Deps
	views *template.Template
}

// NewServer parses the embedded views.
func NewServer(deps Deps) (*Server, error) {
	views, err := parseViews()
	if err != nil {
		return nil, err
	}
	if deps.GeolocationTimeout <= 0 {
		deps.GeolocationTimeout = search.DefaultTimeout
	}
	return &Server{deps: deps, views: views}, nil
}

// NewApp builds the fiber app with middleware, health check and routes.
func NewApp(srv *Server) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "weather-lookup",
		DisableStartupMessage: true,
		// Query, cookie and form values are kept in session state past the
		// request, so they must not alias fasthttp's pooled buffers.
		Immutable:             true,
		ReadTimeout:           10 * time.Second,
		ErrorHandler:          srv.errorHandler,
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-lookup",
		})
	})

	RegisterRoutes(app, srv)
	return app
}

// errorHandler renders JSON for status endpoints and an HTML page otherwise.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		log.Printf("ERROR: %s %s: %v", c.Method(), c.Path(), err)
	}

	msg := err.Error()
	if code >= fiber.StatusInternalServerError {
		msg = "An unexpected error occurred. Please try again."
	}

	if wantsJSON(c) {
		return c.Status(code).JSON(fiber.Map{
			"error":   true,
			"message": msg,
		})
	}

	c.Status(code)
	return s.render(c, "error", errorPage{Code: code, Message: msg})
}

func wantsJSON(c *fiber.Ctx) bool {
	return strings.HasSuffix(c.Path(), "/status") ||
		strings.HasPrefix(c.Path(), "/featured/") ||
		strings.Contains(c.Get(fiber.HeaderAccept), fiber.MIMEApplicationJSON)
}

func (s *Server) render(c *fiber.Ctx, name string, data any) error {
	var buf bytes.Buffer
	if err := s.views.ExecuteTemplate(&buf, name, data); err != nil {
		log.Printf("ERROR: render %s: %v", name, err)
		return c.Status(fiber.StatusInternalServerError).SendString("template error")
	}
	c.Type("html", "utf-8")
	return c.Send(buf.Bytes())
}

type errorPage struct {
	chrome
	Code    int
	Message string
}

// chrome is the layout state shared by every page.
type chrome struct {
	Nav     string
	Refresh bool
}

type homePage struct {
	chrome
	Input        string
	View         pages.HomeView
	GeoError     string
	GeoTimeoutMS int64
	Featured     []store.Snapshot
}

type forecastPage struct {
	chrome
	View pages.ForecastView
}

type historyPage struct {
	chrome
	Form    pages.FormState
	Table   history.Snapshot
	Export  export.State
	Formats []export.Format
}

// featured returns the cached featured-location readings.
func (s *Server) featured() []store.Snapshot {
	if s.deps.Featured == nil {
		return nil
	}
	return s.deps.Featured.LatestAll(s.deps.FeaturedLocations)
}

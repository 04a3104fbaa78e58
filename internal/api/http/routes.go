package httpapi

import (
	"errors"
	"log"
	"net/url"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-lookup/internal/search"
)

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, srv *Server) {
	app.Get("/", srv.home)
	app.Get("/forecast", srv.forecast)
	app.Get("/geolocate", srv.geolocate)

	h := app.Group("/history")
	h.Get("/", srv.historyPage)
	h.Post("/", srv.historyCreate)
	h.Get("/status", srv.historyStatus)
	h.Post("/more", srv.historyMore)
	h.Post("/reload", srv.historyReload)
	h.Post("/delete/cancel", srv.historyDeleteCancel)
	h.Post("/:id/edit", srv.historyEdit)
	h.Post("/:id/save", srv.historySave)
	h.Post("/:id/cancel", srv.historyCancel)
	h.Post("/:id/toggle", srv.historyToggle)
	h.Post("/:id/delete", srv.historyDelete)
	h.Post("/:id/delete/confirm", srv.historyDeleteConfirm)

	app.Get("/export/:format", srv.exportDownload)
	app.Get("/featured/:location", srv.featuredHistory)
}

func (s *Server) home(c *fiber.Ctx) error {
	sess := s.deps.Sessions.Get(c)
	data := homePage{
		chrome:       chrome{Nav: "home"},
		GeoTimeoutMS: s.deps.GeolocationTimeout.Milliseconds(),
		Featured:     s.featured(),
	}

	raw := c.Query("location")
	if strings.TrimSpace(raw) == "" {
		data.View = sess.Home.View()
		data.Input = data.View.Query
		return s.render(c, "home", data)
	}

	view, committed, _ := sess.Home.Search(c.UserContext(), raw)
	if !committed {
		// A newer search from this browser finished first.
		view = sess.Home.View()
	}
	data.View = view
	data.Input = view.Query
	return s.render(c, "home", data)
}

func (s *Server) forecast(c *fiber.Ctx) error {
	sess := s.deps.Sessions.Get(c)
	view, _ := sess.Forecast.Show(c.UserContext(), c.Query("location"))
	return s.render(c, "forecast", forecastPage{chrome: chrome{Nav: "forecast"}, View: view})
}

// geolocate finishes a geolocation request. The browser sends either
// lat/lon or a GeolocationPositionError code; without either the server
// side locator is used.
func (s *Server) geolocate(c *fiber.Ctx) error {
	if lat, lon := c.Query("lat"), c.Query("lon"); lat != "" && lon != "" {
		la, err1 := strconv.ParseFloat(lat, 64)
		lo, err2 := strconv.ParseFloat(lon, 64)
		if err1 != nil || err2 != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid coordinates")
		}
		return redirectHome(c, search.FormatCoords(la, lo))
	}

	var geoErr error
	if code := c.Query("error"); code != "" {
		n, _ := strconv.Atoi(code)
		geoErr = search.ErrorFromCode(n)
	} else {
		q, err := s.deps.Geolocation.Resolve(c.UserContext())
		if err == nil {
			return redirectHome(c, q)
		}
		geoErr = err
	}

	if !errors.Is(geoErr, search.ErrUnsupported) {
		log.Printf("INFO: geolocation failed: %v", geoErr)
	}
	sess := s.deps.Sessions.Get(c)
	view := sess.Home.View()
	return s.render(c, "home", homePage{
		chrome:       chrome{Nav: "home"},
		Input:        view.Query,
		View:         view,
		GeoError:     search.Message(geoErr),
		GeoTimeoutMS: s.deps.GeolocationTimeout.Milliseconds(),
		Featured:     s.featured(),
	})
}

func redirectHome(c *fiber.Ctx, location string) error {
	return c.Redirect("/?location="+url.QueryEscape(location), fiber.StatusSeeOther)
}

// Package pages holds the page orchestrators shared by the web frontend and
// the terminal client: they sequence backend calls and produce view models.
package pages

import (
	"context"
	"log"
	"net/url"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/i474232898/weather-lookup/internal/apiclient"
	"github.com/i474232898/weather-lookup/internal/common"
	"github.com/i474232898/weather-lookup/internal/search"
	"github.com/i474232898/weather-lookup/internal/weather"
)

// WeatherSource is the part of the API client the home and forecast pages
// use.
type WeatherSource interface {
	CurrentWeather(ctx context.Context, location string) (weather.CurrentWeather, error)
	Forecast(ctx context.Context, location string) (weather.ForecastResult, error)
	Photos(ctx context.Context, location string) (weather.Photos, error)
	Maps(ctx context.Context, location string) (weather.MapData, error)
	Videos(ctx context.Context, location string) (weather.Videos, error)
}

// HomeView is everything the home page renders for one search.
type HomeView struct {
	Seq   uint64
	Query string
	// Location is the canonical name used for enrichment and the
	// forecast link; it falls back to Query.
	Location string
	Weather  *weather.CurrentWeather
	Error    string

	Photos            *weather.Photos
	PhotosUnavailable bool
	Map               *weather.MapData
	MapUnavailable    bool
	Videos            *weather.Videos
	VideosUnavailable bool
}

// Searched reports whether a search has produced anything to show.
func (v HomeView) Searched() bool {
	return v.Weather != nil || v.Error != ""
}

// ForecastLink is the forecast page URL for the resolved location.
func (v HomeView) ForecastLink() string {
	return "/forecast?location=" + url.QueryEscape(v.Location)
}

// Home orchestrates searches. Completions are fenced by sequence number:
// only the newest search is committed to the shared view.
type Home struct {
	src WeatherSource

	mu   sync.Mutex
	seq  uint64
	view HomeView
}

// NewHome creates a Home.
func NewHome(src WeatherSource) *Home {
	return &Home{src: src}
}

// View returns the last committed search.
func (h *Home) View() HomeView {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.view
}

// Search runs the search flow for input. Empty input is a no-op returning
// search.ErrEmptyQuery. A weather failure aborts the flow: the returned view
// carries the message and the error is returned as well. Enrichment failures
// only mark their section unavailable.
//
// The returned bool is false when a newer search has been committed
// meanwhile; the result is then not stored.
func (h *Home) Search(ctx context.Context, input string) (HomeView, bool, error) {
	query, err := search.Normalize(input)
	if err != nil {
		return h.View(), false, err
	}

	h.mu.Lock()
	h.seq++
	seq := h.seq
	h.mu.Unlock()

	view := HomeView{Seq: seq, Query: query, Location: query}

	cur, err := h.src.CurrentWeather(ctx, query)
	if err != nil {
		view.Error = apiclient.Message(err)
		log.Printf("INFO: search %q failed: %v", query, err)
		return view, h.commit(view), err
	}
	view.Weather = &cur
	view.Location = common.FirstNonEmpty(cur.CanonicalName(), query)

	h.enrich(ctx, &view)
	return view, h.commit(view), nil
}

// enrich fetches photos, map and videos concurrently. Each failure is
// isolated to its own section and never cancels the others.
func (h *Home) enrich(ctx context.Context, view *HomeView) {
	loc := view.Location
	var g errgroup.Group

	g.Go(func() error {
		p, err := h.src.Photos(ctx, loc)
		if err != nil {
			log.Printf("DEBUG: photos for %q unavailable: %v", loc, err)
			view.PhotosUnavailable = true
			return nil
		}
		view.Photos = &p
		return nil
	})
	g.Go(func() error {
		m, err := h.src.Maps(ctx, loc)
		if err != nil {
			log.Printf("DEBUG: map for %q unavailable: %v", loc, err)
			view.MapUnavailable = true
			return nil
		}
		view.Map = &m
		return nil
	})
	g.Go(func() error {
		v, err := h.src.Videos(ctx, loc)
		if err != nil {
			log.Printf("DEBUG: videos for %q unavailable: %v", loc, err)
			view.VideosUnavailable = true
			return nil
		}
		view.Videos = &v
		return nil
	})

	_ = g.Wait()
}

func (h *Home) commit(view HomeView) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if view.Seq != h.seq {
		return false
	}
	h.view = view
	return true
}

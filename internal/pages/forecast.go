package pages

import (
	"context"
	"strings"
	"sync"

	"github.com/i474232898/weather-lookup/internal/apiclient"
	"github.com/i474232898/weather-lookup/internal/weather"
)

// MsgNoLocation is shown on the forecast page without a location.
const MsgNoLocation = "No location specified. Please search from the home page."

// ForecastView is what the forecast page renders.
type ForecastView struct {
	Location string
	Resolved string
	Guidance string
	Error    string
	Days     []weather.DayForecast
}

// Forecast fetches once per location change and reuses the last result
// while the location stays the same.
type Forecast struct {
	src WeatherSource

	mu   sync.Mutex
	last string
	view ForecastView
}

// NewForecast creates a Forecast.
func NewForecast(src WeatherSource) *Forecast {
	return &Forecast{src: src}
}

// Show returns the view for location. An empty location yields guidance
// and no fetch.
func (f *Forecast) Show(ctx context.Context, location string) (ForecastView, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return ForecastView{Guidance: MsgNoLocation}, nil
	}

	f.mu.Lock()
	if f.last == location {
		v := f.view
		f.mu.Unlock()
		return v, nil
	}
	f.mu.Unlock()

	view := ForecastView{Location: location}
	res, err := f.src.Forecast(ctx, location)
	if err != nil {
		view.Error = apiclient.Message(err)
		return view, err
	}

	view.Resolved = res.ResolvedLocation
	days := res.Forecast.Daily
	if len(days) > weather.ForecastDays {
		days = days[:weather.ForecastDays]
	}
	view.Days = days

	f.mu.Lock()
	f.last = location
	f.view = view
	f.mu.Unlock()
	return view, nil
}

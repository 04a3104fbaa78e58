package apiclient

import (
	"context"
	"net/url"

	"github.com/i474232898/weather-lookup/internal/weather"
)

func locationQuery(location string) url.Values {
	return url.Values{"location": {location}}
}

// CurrentWeather fetches current conditions for a free-text location.
func (c *Client) CurrentWeather(ctx context.Context, location string) (weather.CurrentWeather, error) {
	var out weather.CurrentWeather
	err := c.getJSON(ctx, "/api/weather/current", locationQuery(location), &out)
	return out, err
}

// Forecast fetches the daily forecast for a free-text location.
func (c *Client) Forecast(ctx context.Context, location string) (weather.ForecastResult, error) {
	var out weather.ForecastResult
	err := c.getJSON(ctx, "/api/weather/forecast", locationQuery(location), &out)
	return out, err
}

// Photos fetches representative photos.
func (c *Client) Photos(ctx context.Context, location string) (weather.Photos, error) {
	var out weather.Photos
	err := c.getJSON(ctx, "/api/media/photos", locationQuery(location), &out)
	return out, err
}

// Maps fetches the map embed for a location.
func (c *Client) Maps(ctx context.Context, location string) (weather.MapData, error) {
	var out weather.MapData
	err := c.getJSON(ctx, "/api/media/maps", locationQuery(location), &out)
	return out, err
}

// Videos fetches related videos.
func (c *Client) Videos(ctx context.Context, location string) (weather.Videos, error) {
	var out weather.Videos
	err := c.getJSON(ctx, "/api/media/youtube", locationQuery(location), &out)
	return out, err
}

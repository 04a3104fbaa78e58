package weather

import (
	"fmt"
	"strings"

	"github.com/i474232898/weather-lookup/internal/common"
)

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
	ConditionMist    Condition = "mist"
)

// ForecastDays is the fixed size of the forecast grid.
const ForecastDays = 5

// CurrentWeather is the payload returned by the current conditions endpoint.
type CurrentWeather struct {
	ResolvedLocation string      `json:"resolved_location"`
	Latitude         float64     `json:"latitude"`
	Longitude        float64     `json:"longitude"`
	Weather          Observation `json:"weather"`
}

// CanonicalName returns the provider's name for the matched place, if any.
func (c CurrentWeather) CanonicalName() string {
	return strings.TrimSpace(common.FirstNonEmpty(c.Weather.Name, c.ResolvedLocation))
}

// Observation is the provider reading embedded in CurrentWeather.
type Observation struct {
	Name       string          `json:"name"`
	Main       ObservationMain `json:"main"`
	Conditions []ConditionText `json:"weather"`
	Wind       Wind            `json:"wind"`
	Visibility *float64        `json:"visibility,omitempty"`
	Sys        Sys             `json:"sys"`
}

// ObservationMain holds the numeric readings (imperial units).
type ObservationMain struct {
	Temp      float64 `json:"temp"`
	FeelsLike float64 `json:"feels_like"`
	Humidity  float64 `json:"humidity"`
	Pressure  float64 `json:"pressure"`
}

// ConditionText is a provider condition with its icon code.
type ConditionText struct {
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// Wind speed is in mph.
type Wind struct {
	Speed float64 `json:"speed"`
}

// Sys carries country and sun times as unix seconds.
type Sys struct {
	Country string `json:"country"`
	Sunrise int64  `json:"sunrise"`
	Sunset  int64  `json:"sunset"`
}

// Primary returns the first reported condition, or a zero value.
func (o Observation) Primary() ConditionText {
	if len(o.Conditions) == 0 {
		return ConditionText{}
	}
	return o.Conditions[0]
}

// Condition normalizes the primary condition.
func (o Observation) Condition() Condition {
	p := o.Primary()
	return MapCondition(p.Icon, p.Main+" "+p.Description)
}

// Place formats "Name, CC".
func (o Observation) Place() string {
	if o.Sys.Country == "" {
		return o.Name
	}
	return fmt.Sprintf("%s, %s", o.Name, o.Sys.Country)
}

// ForecastResult is the payload returned by the forecast endpoint.
type ForecastResult struct {
	ResolvedLocation string       `json:"resolved_location"`
	Latitude         float64      `json:"latitude"`
	Longitude        float64      `json:"longitude"`
	Forecast         ForecastBody `json:"forecast"`
}

// ForecastBody holds the daily summaries.
type ForecastBody struct {
	Daily []DayForecast `json:"daily"`
}

// DayForecast is a single day of the forecast grid.
type DayForecast struct {
	Date        string  `json:"date"`
	TempMin     float64 `json:"temp_min"`
	TempMax     float64 `json:"temp_max"`
	Humidity    float64 `json:"humidity"`
	Icon        string  `json:"icon"`
	Description string  `json:"description"`
}

// Condition normalizes the day's icon and description.
func (d DayForecast) Condition() Condition {
	return MapCondition(d.Icon, d.Description)
}

// Photos is the payload returned by the photos endpoint.
type Photos struct {
	ResolvedLocation string  `json:"resolved_location"`
	Photos           []Photo `json:"photos"`
}

// Photo is a single stock photo with attribution.
type Photo struct {
	URL             string `json:"url"`
	Alt             string `json:"alt"`
	Photographer    string `json:"photographer"`
	PhotographerURL string `json:"photographer_url"`
}

// MapData is the payload returned by the maps endpoint.
type MapData struct {
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	ResolvedName string  `json:"resolved_name"`
	EmbedURL     string  `json:"embed_url"`
}

// Videos is the payload returned by the videos endpoint.
type Videos struct {
	ResolvedLocation string  `json:"resolved_location"`
	Videos           []Video `json:"videos"`
}

// Video is a related video.
type Video struct {
	VideoID      string `json:"videoId"`
	Title        string `json:"title"`
	Thumbnail    string `json:"thumbnail"`
	ChannelTitle string `json:"channelTitle"`
}

// WatchURL returns the public URL of the video.
func (v Video) WatchURL() string {
	return "https://www.youtube.com/watch?v=" + v.VideoID
}

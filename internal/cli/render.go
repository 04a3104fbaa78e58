package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/i474232898/weather-lookup/internal/pages"
	"github.com/i474232898/weather-lookup/internal/weather"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func round(v float64) string {
	return strconv.Itoa(int(math.Round(v)))
}

func renderCurrent(w io.Writer, view pages.HomeView) {
	cur := view.Weather
	obs := cur.Weather
	primary := obs.Primary()

	t := newTable(w)
	t.SetTitle(obs.Place())
	t.AppendRows([]table.Row{
		{"Conditions", fmt.Sprintf("%s %s", obs.Condition().Glyph(), primary.Description)},
		{"Temperature", round(obs.Main.Temp) + "°F"},
		{"Feels like", round(obs.Main.FeelsLike) + "°F"},
		{"Humidity", round(obs.Main.Humidity) + "%"},
		{"Wind", round(obs.Wind.Speed) + " mph"},
	})
	if obs.Visibility != nil {
		t.AppendRow(table.Row{"Visibility", fmt.Sprintf("%.1f mi", *obs.Visibility/1609.344)})
	}
	if obs.Sys.Sunrise > 0 {
		t.AppendRow(table.Row{"Sunrise", clock(obs.Sys.Sunrise)})
	}
	if obs.Sys.Sunset > 0 {
		t.AppendRow(table.Row{"Sunset", clock(obs.Sys.Sunset)})
	}
	t.Render()

	fmt.Fprintln(w)
	switch {
	case view.PhotosUnavailable:
		fmt.Fprintln(w, "Photos unavailable.")
	case view.Photos != nil && len(view.Photos.Photos) > 0:
		fmt.Fprintln(w, "Photos:")
		for _, p := range view.Photos.Photos {
			fmt.Fprintf(w, "  %s (by %s)\n", p.URL, p.Photographer)
		}
	}
	switch {
	case view.MapUnavailable:
		fmt.Fprintln(w, "Map unavailable.")
	case view.Map != nil && view.Map.EmbedURL != "":
		fmt.Fprintf(w, "Map: %s\n", view.Map.EmbedURL)
	}
	switch {
	case view.VideosUnavailable:
		fmt.Fprintln(w, "Videos unavailable.")
	case view.Videos != nil && len(view.Videos.Videos) > 0:
		fmt.Fprintln(w, "Videos:")
		for _, v := range view.Videos.Videos {
			fmt.Fprintf(w, "  %s  %s\n", v.Title, v.WatchURL())
		}
	}
	fmt.Fprintf(w, "\nSee 5-Day Forecast: weatherctl forecast %q\n", view.Location)
}

func renderForecast(w io.Writer, view pages.ForecastView) {
	t := newTable(w)
	t.SetTitle("5-Day Forecast for " + view.Resolved)
	t.AppendHeader(table.Row{"Date", "Conditions", "High", "Low", "Humidity"})
	for _, d := range view.Days {
		t.AppendRow(table.Row{
			weekday(d.Date),
			d.Condition().Glyph() + " " + d.Description,
			round(d.TempMax) + "°F",
			round(d.TempMin) + "°F",
			round(d.Humidity) + "%",
		})
	}
	t.Render()
}

func renderQueries(w io.Writer, records []weather.QueryRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No records yet.")
		return
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Location", "Resolved", "Dates", "Created"})
	for _, r := range records {
		t.AppendRow(table.Row{r.ID, r.Location, r.Resolved(), r.DateRange(), r.CreatedAt.Day()})
	}
	t.Render()
}

func renderQuery(w io.Writer, r weather.QueryRecord) {
	t := newTable(w)
	t.SetTitle(fmt.Sprintf("Query #%d", r.ID))
	t.AppendRows([]table.Row{
		{"Location", r.Location},
		{"Resolved", r.Resolved()},
		{"Dates", r.DateRange()},
		{"Created", r.CreatedAt.Day()},
		{"Updated", r.UpdatedAt.Day()},
	})
	if r.Latitude != nil && r.Longitude != nil {
		t.AppendRow(table.Row{"Coordinates", fmt.Sprintf("%.4f, %.4f", *r.Latitude, *r.Longitude)})
	}
	t.Render()
	fmt.Fprintln(w, r.PrettyWeatherData())
}

func clock(unix int64) string {
	return timeFromUnix(unix).Format("3:04 PM")
}

func weekday(date string) string {
	d, err := weather.ParseDate(date)
	if err != nil {
		return date
	}
	return d.Format("Mon Jan 2")
}

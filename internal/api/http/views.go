package httpapi

import (
	"embed"
	"fmt"
	"html/template"
	"math"
	"net/url"
	"time"

	"github.com/i474232898/weather-lookup/internal/weather"
)

//go:embed views/*.html
var viewFS embed.FS

var viewFuncs = template.FuncMap{
	"temp": func(f float64) string {
		return fmt.Sprintf("%d°F", int(math.Round(f)))
	},
	"pct": func(f float64) string {
		return fmt.Sprintf("%d%%", int(math.Round(f)))
	},
	"mph": func(f float64) string {
		return fmt.Sprintf("%.1f mph", f)
	},
	"miles": func(meters *float64) string {
		if meters == nil {
			return "—"
		}
		return fmt.Sprintf("%.1f mi", *meters/1609.344)
	},
	"clock": func(unix int64) string {
		if unix == 0 {
			return "—"
		}
		return time.Unix(unix, 0).UTC().Format("15:04 UTC")
	},
	"weekday": func(date string) string {
		t, err := weather.ParseDate(date)
		if err != nil {
			return date
		}
		return t.Format("Mon Jan 2")
	},
	"iconURL": weather.IconURL,
	"embedURL": func(s string) template.URL {
		u, err := url.Parse(s)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") {
			return ""
		}
		return template.URL(u.String())
	},
}

func parseViews() (*template.Template, error) {
	t, err := template.New("views").Funcs(viewFuncs).ParseFS(viewFS, "views/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse views: %w", err)
	}
	return t, nil
}

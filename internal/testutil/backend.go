// Package testutil provides an in-memory stand-in for the REST backend used
// by tests across packages.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/i474232898/weather-lookup/internal/weather"
)

type failure struct {
	remaining int // <0 means forever
	status    int
	body      string
}

// Backend is a fake of the weather/media/query/export API.
type Backend struct {
	Server *httptest.Server

	mu       sync.Mutex
	records  []weather.QueryRecord // newest first, like the real list endpoint
	nextID   int64
	places   map[string]string
	failures map[string]*failure
	calls    map[string]int
	seen     map[string][]string
}

// NewBackend starts a fake backend closed on test cleanup.
func NewBackend(t testing.TB) *Backend {
	t.Helper()

	b := &Backend{
		nextID:   1,
		places:   map[string]string{},
		failures: map[string]*failure{},
		calls:    map[string]int{},
		seen:     map[string][]string{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/weather/current", b.wrap(b.current))
	mux.HandleFunc("GET /api/weather/forecast", b.wrap(b.forecast))
	mux.HandleFunc("GET /api/media/photos", b.wrap(b.photos))
	mux.HandleFunc("GET /api/media/maps", b.wrap(b.maps))
	mux.HandleFunc("GET /api/media/youtube", b.wrap(b.videos))
	mux.HandleFunc("POST /api/queries/{$}", b.wrap(b.create))
	mux.HandleFunc("GET /api/queries/{$}", b.wrap(b.list))
	mux.HandleFunc("GET /api/queries/{id}", b.wrap(b.get))
	mux.HandleFunc("PUT /api/queries/{id}", b.wrap(b.update))
	mux.HandleFunc("DELETE /api/queries/{id}", b.wrap(b.remove))
	mux.HandleFunc("GET /api/export/{$}", b.wrap(b.export))

	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Server.Close)
	return b
}

// URL is the backend base URL.
func (b *Backend) URL() string { return b.Server.URL }

// Place maps a raw input to the canonical name the provider reports.
func (b *Backend) Place(input, canonical string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.places[strings.ToLower(input)] = canonical
}

// Fail makes the next n requests to path fail with status and body.
// n < 0 fails forever.
func (b *Backend) Fail(path string, n, status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[path] = &failure{remaining: n, status: status, body: body}
}

// FailMethod is Fail restricted to one HTTP method.
func (b *Backend) FailMethod(method, path string, n, status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[method+" "+path] = &failure{remaining: n, status: status, body: body}
}

// Calls returns how many requests hit path.
func (b *Backend) Calls(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[path]
}

// Locations returns the location parameters seen on path, in order.
func (b *Backend) Locations(path string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.seen[path]...)
}

// Seed inserts n records named "City N".
func (b *Backend) Seed(n int) {
	for i := 0; i < n; i++ {
		b.Insert(weather.QueryCreate{
			Location:  fmt.Sprintf("City %d", i+1),
			StartDate: "2024-01-01",
			EndDate:   "2024-01-02",
		})
	}
}

// Insert stores a record directly.
func (b *Backend) Insert(in weather.QueryCreate) weather.QueryRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.insertLocked(in)
}

// Records returns a copy of the stored records in list order.
func (b *Backend) Records() []weather.QueryRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]weather.QueryRecord(nil), b.records...)
}

func (b *Backend) insertLocked(in weather.QueryCreate) weather.QueryRecord {
	now := time.Now().UTC()
	resolved := b.canonicalLocked(in.Location)
	lat, lon := 48.8566, 2.3522
	rec := weather.QueryRecord{
		ID:               b.nextID,
		Location:         in.Location,
		ResolvedLocation: &resolved,
		Latitude:         &lat,
		Longitude:        &lon,
		StartDate:        in.StartDate,
		EndDate:          in.EndDate,
		WeatherData:      json.RawMessage(`{"daily":{"temperature_2m_max":[10.5]}}`),
		CreatedAt:        weather.Timestamp{Time: now},
		UpdatedAt:        weather.Timestamp{Time: now},
	}
	b.nextID++
	b.records = append([]weather.QueryRecord{rec}, b.records...)
	return rec
}

func (b *Backend) canonicalLocked(input string) string {
	if c, ok := b.places[strings.ToLower(input)]; ok {
		return c
	}
	return input
}

func (b *Backend) wrap(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		b.mu.Lock()
		b.calls[path]++
		if loc := r.URL.Query().Get("location"); loc != "" {
			b.seen[path] = append(b.seen[path], loc)
		}
		f := b.failures[r.Method+" "+path]
		if f == nil || f.remaining == 0 {
			f = b.failures[path]
		}
		if f != nil && f.remaining != 0 {
			if f.remaining > 0 {
				f.remaining--
			}
			status, body := f.status, f.body
			b.mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
			return
		}
		b.mu.Unlock()
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func detail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

func (b *Backend) current(w http.ResponseWriter, r *http.Request) {
	loc := r.URL.Query().Get("location")
	b.mu.Lock()
	name := b.canonicalLocked(loc)
	b.mu.Unlock()

	vis := 10000.0
	writeJSON(w, http.StatusOK, weather.CurrentWeather{
		ResolvedLocation: name,
		Latitude:         48.8566,
		Longitude:        2.3522,
		Weather: weather.Observation{
			Name:       name,
			Main:       weather.ObservationMain{Temp: 68.4, FeelsLike: 67.1, Humidity: 55, Pressure: 1014},
			Conditions: []weather.ConditionText{{Main: "Clouds", Description: "broken clouds", Icon: "04d"}},
			Wind:       weather.Wind{Speed: 7.2},
			Visibility: &vis,
			Sys:        weather.Sys{Country: "FR", Sunrise: 1704096000, Sunset: 1704127000},
		},
	})
}

func (b *Backend) forecast(w http.ResponseWriter, r *http.Request) {
	loc := r.URL.Query().Get("location")
	b.mu.Lock()
	name := b.canonicalLocked(loc)
	b.mu.Unlock()

	daily := make([]weather.DayForecast, 0, weather.ForecastDays)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < weather.ForecastDays; i++ {
		daily = append(daily, weather.DayForecast{
			Date:        start.AddDate(0, 0, i).Format(weather.DateLayout),
			TempMin:     40 + float64(i),
			TempMax:     55 + float64(i),
			Humidity:    60,
			Icon:        "10d",
			Description: "Light Rain",
		})
	}
	writeJSON(w, http.StatusOK, weather.ForecastResult{
		ResolvedLocation: name,
		Forecast:         weather.ForecastBody{Daily: daily},
	})
}

func (b *Backend) photos(w http.ResponseWriter, r *http.Request) {
	loc := r.URL.Query().Get("location")
	writeJSON(w, http.StatusOK, weather.Photos{
		ResolvedLocation: loc,
		Photos: []weather.Photo{{
			URL:             "https://images.example/" + loc + ".jpg",
			Alt:             loc,
			Photographer:    "Ann Example",
			PhotographerURL: "https://images.example/@ann",
		}},
	})
}

func (b *Backend) maps(w http.ResponseWriter, r *http.Request) {
	loc := r.URL.Query().Get("location")
	writeJSON(w, http.StatusOK, weather.MapData{
		Latitude:     48.8566,
		Longitude:    2.3522,
		ResolvedName: loc,
		EmbedURL:     "https://maps.example/embed?q=" + loc,
	})
}

func (b *Backend) videos(w http.ResponseWriter, r *http.Request) {
	loc := r.URL.Query().Get("location")
	writeJSON(w, http.StatusOK, weather.Videos{
		ResolvedLocation: loc,
		Videos: []weather.Video{{
			VideoID:      "abc123",
			Title:        loc + " travel guide",
			Thumbnail:    "https://img.example/abc123.jpg",
			ChannelTitle: "Travel",
		}},
	})
}

func (b *Backend) create(w http.ResponseWriter, r *http.Request) {
	var in weather.QueryCreate
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		detail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	if in.StartDate > in.EndDate {
		detail(w, http.StatusUnprocessableEntity, "start_date must be before or equal to end_date")
		return
	}
	rec := b.Insert(in)
	writeJSON(w, http.StatusCreated, rec)
}

func (b *Backend) list(w http.ResponseWriter, r *http.Request) {
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 20
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	out := []weather.QueryRecord{}
	for i := skip; i < len(b.records) && len(out) < limit; i++ {
		out = append(out, b.records[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) find(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		detail(w, http.StatusUnprocessableEntity, "invalid id")
		return 0, false
	}
	for i, rec := range b.records {
		if rec.ID == id {
			return i, true
		}
	}
	detail(w, http.StatusNotFound, "Query not found")
	return 0, false
}

func (b *Backend) get(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i, ok := b.find(w, r); ok {
		writeJSON(w, http.StatusOK, b.records[i])
	}
}

func (b *Backend) update(w http.ResponseWriter, r *http.Request) {
	var patch weather.QueryUpdate
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		detail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	i, ok := b.find(w, r)
	if !ok {
		return
	}
	rec := patch.Apply(b.records[i])
	if rec.StartDate > rec.EndDate {
		detail(w, http.StatusUnprocessableEntity, "start_date must be before or equal to end_date")
		return
	}
	rec.UpdatedAt = weather.Timestamp{Time: time.Now().UTC()}
	b.records[i] = rec
	writeJSON(w, http.StatusOK, rec)
}

func (b *Backend) remove(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i, ok := b.find(w, r)
	if !ok {
		return
	}
	b.records = append(b.records[:i], b.records[i+1:]...)
	w.WriteHeader(http.StatusNoContent)
}

var exportFiles = map[string][2]string{
	"json":     {"application/json", "weather_queries.json"},
	"csv":      {"text/csv", "weather_queries.csv"},
	"xml":      {"application/xml", "weather_queries.xml"},
	"pdf":      {"application/pdf", "weather_queries.pdf"},
	"markdown": {"text/markdown", "weather_queries.md"},
}

func (b *Backend) export(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	meta, ok := exportFiles[format]
	if !ok {
		detail(w, http.StatusBadRequest, fmt.Sprintf("Unsupported format '%s'", format))
		return
	}

	b.mu.Lock()
	n := len(b.records)
	b.mu.Unlock()

	w.Header().Set("Content-Type", meta[0])
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, meta[1]))
	_, _ = fmt.Fprintf(w, "%s export of %d records", format, n)
}

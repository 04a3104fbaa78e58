package httpapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-lookup/internal/apiclient"
	"github.com/i474232898/weather-lookup/internal/history"
	"github.com/i474232898/weather-lookup/internal/retry"
	"github.com/i474232898/weather-lookup/internal/search"
	"github.com/i474232898/weather-lookup/internal/store"
	"github.com/i474232898/weather-lookup/internal/testutil"
	"github.com/i474232898/weather-lookup/internal/weather"
)

type testEnv struct {
	app      *fiber.App
	backend  *testutil.Backend
	sessions *Sessions
	cookie   string
}

func newTestEnv(t *testing.T, geo *search.Geolocation) *testEnv {
	t.Helper()
	return newTestEnvWithRetry(t, geo, retry.Fixed(2, 0))
}

func newTestEnvWithRetry(t *testing.T, geo *search.Geolocation, policy retry.Policy) *testEnv {
	t.Helper()
	backend := testutil.NewBackend(t)
	client, err := apiclient.New(apiclient.Config{BaseURL: backend.URL()})
	require.NoError(t, err)

	featured := store.NewMemoryStore(0, 0)
	featured.Save(store.Snapshot{
		Location:  "Tokyo",
		Weather:   weather.CurrentWeather{ResolvedLocation: "Tokyo", Weather: weather.Observation{Name: "Tokyo"}},
		Timestamp: time.Now(),
	})

	sessions := NewSessions(client, time.Minute, history.DefaultPageSize, policy)
	srv, err := NewServer(Deps{
		Sessions:          sessions,
		Geolocation:       geo,
		Featured:          featured,
		FeaturedLocations: []string{"Tokyo"},
	})
	require.NoError(t, err)

	return &testEnv{app: NewApp(srv), backend: backend, sessions: sessions}
}

// do sends a request carrying the session cookie and returns the response
// and body.
func (e *testEnv) do(t *testing.T, method, target string, form url.Values) (*http.Response, string) {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if e.cookie != "" {
		req.Header.Set("Cookie", e.cookie)
	}

	resp, err := e.app.Test(req, 5000)
	require.NoError(t, err)
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookie {
			e.cookie = c.Name + "=" + c.Value
		}
	}
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func (e *testEnv) waitLoaded(t *testing.T) history.Snapshot {
	t.Helper()
	var snap history.Snapshot
	require.Eventually(t, func() bool {
		snap = e.session(t).History.Table.Snapshot()
		return !snap.Status.InProgress() && snap.Status != history.StatusIdle
	}, 2*time.Second, 10*time.Millisecond)
	return snap
}

func (e *testEnv) waitRows(t *testing.T, n int) history.Snapshot {
	t.Helper()
	var snap history.Snapshot
	require.Eventually(t, func() bool {
		snap = e.session(t).History.Table.Snapshot()
		return snap.Status == history.StatusLoaded && len(snap.Rows) == n
	}, 2*time.Second, 10*time.Millisecond)
	return snap
}

func (e *testEnv) session(t *testing.T) *Session {
	t.Helper()
	id := strings.TrimPrefix(e.cookie, sessionCookie+"=")
	v, ok := e.sessions.cache.Get(id)
	require.True(t, ok, "session %q not found", id)
	return v.(*Session)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, body := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","service":"weather-lookup"}`, body)
}

func TestHomeBeforeSearchShowsFeatured(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, body := env.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Featured")
	assert.Contains(t, body, "Tokyo")
	assert.NotEmpty(t, env.cookie)
	assert.Zero(t, env.backend.Calls("/api/weather/current"))
}

func TestFeaturedHistory(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, http.MethodGet, "/featured/tokyo", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"location":"tokyo"`)
	assert.Contains(t, body, `"resolved_location":"Tokyo"`)

	resp, body = env.do(t, http.MethodGet, "/featured/Lima", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "no readings for requested location")

	resp, _ = env.do(t, http.MethodGet, "/featured/Tokyo?from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/featured/Tokyo?from=2024-01-02T00:00:00Z&to=2024-01-01T00:00:00Z", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	from := strconv.FormatInt(time.Now().Add(-48*time.Hour).Unix(), 10)
	to := strconv.FormatInt(time.Now().Add(-47*time.Hour).Unix(), 10)
	resp, _ = env.do(t, http.MethodGet, "/featured/Tokyo?from="+from+"&to="+to, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHomeSearch(t *testing.T) {
	env := newTestEnv(t, nil)
	env.backend.Place("10001", "New York")

	resp, body := env.do(t, http.MethodGet, "/?location=10001", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "New York, FR")
	assert.Contains(t, body, "See 5-Day Forecast")
	assert.Contains(t, body, "New York travel guide")
	assert.NotContains(t, body, "Featured")
	assert.Equal(t, []string{"New York"}, env.backend.Locations("/api/media/maps"))

	_, body = env.do(t, http.MethodGet, "/", nil)
	assert.Contains(t, body, `value="10001"`)
}

func TestSessionStateSurvivesLaterRequests(t *testing.T) {
	env := newTestEnv(t, nil)

	env.do(t, http.MethodGet, "/?location=Paris", nil)
	env.do(t, http.MethodGet, "/forecast?location=Rome", nil)
	for i := 0; i < 5; i++ {
		env.do(t, http.MethodGet, "/featured/ABCDEFGHIJKLMNOPQRSTUVWXYZ?from=x", nil)
	}

	sess := env.session(t)
	assert.Equal(t, "Paris", sess.Home.View().Query)
	assert.Equal(t, "Paris", sess.Home.View().Location)

	_, body := env.do(t, http.MethodGet, "/", nil)
	assert.Contains(t, body, `value="Paris"`)

	_, body = env.do(t, http.MethodGet, "/forecast?location=Rome", nil)
	assert.Contains(t, body, "5-Day Forecast for Rome")
	assert.Equal(t, 1, env.backend.Calls("/api/weather/forecast"))
}

func TestHomeSearchErrorAndUnavailableSections(t *testing.T) {
	env := newTestEnv(t, nil)
	env.backend.Fail("/api/weather/current", 1, 404, ``)

	_, body := env.do(t, http.MethodGet, "/?location=zzzz", nil)
	assert.Contains(t, body, "Location not found. Try a city name, zip code, or coordinates.")

	env.backend.Fail("/api/media/youtube", -1, 502, ``)
	_, body = env.do(t, http.MethodGet, "/?location=Paris", nil)
	assert.Contains(t, body, "Videos unavailable.")
	assert.NotContains(t, body, "Map unavailable.")
}

func TestForecastPage(t *testing.T) {
	env := newTestEnv(t, nil)

	_, body := env.do(t, http.MethodGet, "/forecast", nil)
	assert.Contains(t, body, "No location specified. Please search from the home page.")
	assert.Zero(t, env.backend.Calls("/api/weather/forecast"))

	_, body = env.do(t, http.MethodGet, "/forecast?location=Rome", nil)
	assert.Contains(t, body, "5-Day Forecast for Rome")
	assert.Equal(t, 5, strings.Count(body, "Light Rain</div>"))
}

func TestGeolocateWithBrowserCoordinates(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, _ := env.do(t, http.MethodGet, "/geolocate?lat=40.712776&lon=-74.005974", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/?location=40.71278%2C-74.00597", resp.Header.Get("Location"))
}

func TestGeolocateBrowserError(t *testing.T) {
	env := newTestEnv(t, nil)
	_, body := env.do(t, http.MethodGet, "/geolocate?error=1", nil)
	assert.Contains(t, body, "Location access was denied. Please enter a location manually.")

	_, body = env.do(t, http.MethodGet, "/geolocate?error=2", nil)
	assert.Contains(t, body, "Your location could not be determined.")
}

func TestGeolocateServerSide(t *testing.T) {
	env := newTestEnv(t, nil)
	_, body := env.do(t, http.MethodGet, "/geolocate", nil)
	assert.Contains(t, body, search.MsgUnsupported)

	geo := search.NewGeolocation(fixedLocator{search.Coordinates{Latitude: 51.5074, Longitude: -0.1278}}, time.Second)
	env = newTestEnv(t, geo)
	resp, _ := env.do(t, http.MethodGet, "/geolocate", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/?location=51.50740%2C-0.12780", resp.Header.Get("Location"))
}

type fixedLocator struct{ c search.Coordinates }

func (f fixedLocator) Available() bool { return true }

func (f fixedLocator) Locate(context.Context) (search.Coordinates, error) { return f.c, nil }

func TestHistoryFirstVisitLoadsInBackground(t *testing.T) {
	env := newTestEnv(t, nil)
	env.backend.Seed(3)

	resp, body := env.do(t, http.MethodGet, "/history", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Add New Query")

	snap := env.waitLoaded(t)
	assert.Equal(t, history.StatusLoaded, snap.Status)

	_, body = env.do(t, http.MethodGet, "/history", nil)
	assert.Contains(t, body, "City 3")
	assert.NotContains(t, body, `http-equiv="refresh"`)

	_, status := env.do(t, http.MethodGet, "/history/status", nil)
	assert.JSONEq(t, `{"status":"loaded","attempt":1,"error":"","count":3,"has_more":false}`, status)
}

func TestHistoryLoadErrorShowsTerminalMessage(t *testing.T) {
	env := newTestEnv(t, nil)
	env.backend.Fail("/api/queries/", -1, 502, ``)

	env.do(t, http.MethodGet, "/history", nil)
	snap := env.waitLoaded(t)
	assert.Equal(t, history.StatusError, snap.Status)

	_, body := env.do(t, http.MethodGet, "/history", nil)
	assert.Contains(t, body, apiclient.MsgUpstream)
	assert.Contains(t, body, "Try again")
}

func TestHistoryCreateEditDelete(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodGet, "/history", nil)
	env.waitLoaded(t)

	resp, _ := env.do(t, http.MethodPost, "/history", url.Values{
		"location":   {"Paris"},
		"start_date": {"2024-01-01"},
		"end_date":   {"2024-01-05"},
	})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	env.waitRows(t, 1)

	_, body := env.do(t, http.MethodGet, "/history", nil)
	assert.Contains(t, body, "Paris")
	assert.Contains(t, body, "2024-01-01 — 2024-01-05")

	recs := env.backend.Records()
	require.Len(t, recs, 1)
	id := recs[0].ID
	base := "/history/" + strconv.FormatInt(id, 10)

	env.do(t, http.MethodPost, base+"/edit", nil)
	env.do(t, http.MethodPost, base+"/save", url.Values{
		"location":   {"Paris"},
		"start_date": {"2024-02-01"},
		"end_date":   {"2024-01-01"},
	})
	_, body = env.do(t, http.MethodGet, "/history", nil)
	assert.Contains(t, body, history.MsgDateOrder)
	assert.Zero(t, env.backend.Calls("/api/queries/"+strconv.FormatInt(id, 10)))

	env.do(t, http.MethodPost, base+"/save", url.Values{
		"location":   {"Lyon"},
		"start_date": {"2024-01-01"},
		"end_date":   {"2024-01-05"},
	})
	assert.Equal(t, "Lyon", env.backend.Records()[0].Location)

	env.do(t, http.MethodPost, base+"/delete", nil)
	_, body = env.do(t, http.MethodGet, "/history", nil)
	assert.Contains(t, body, "Delete record #"+strconv.FormatInt(id, 10)+"?")

	env.do(t, http.MethodPost, base+"/delete/confirm", nil)
	assert.Empty(t, env.backend.Records())
	_, body = env.do(t, http.MethodGet, "/history", nil)
	assert.Contains(t, body, "No records yet. Create one above.")
}

func TestHistoryCreateReloadsInBackground(t *testing.T) {
	env := newTestEnvWithRetry(t, nil, retry.Fixed(3, 300*time.Millisecond))
	env.do(t, http.MethodGet, "/history", nil)
	env.waitLoaded(t)

	env.backend.FailMethod(http.MethodGet, "/api/queries/", 1, http.StatusServiceUnavailable, `{"detail":"down"}`)

	start := time.Now()
	resp, _ := env.do(t, http.MethodPost, "/history", url.Values{
		"location":   {"Paris"},
		"start_date": {"2024-01-01"},
		"end_date":   {"2024-01-05"},
	})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Less(t, time.Since(start), 300*time.Millisecond)
	require.Len(t, env.backend.Records(), 1)

	snap := env.waitRows(t, 1)
	assert.Equal(t, "Paris", snap.Rows[0].Location)
}

func TestHistoryCreateValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	env.do(t, http.MethodPost, "/history", url.Values{"location": {""}, "start_date": {""}, "end_date": {""}})
	_, body := env.do(t, http.MethodGet, "/history", nil)
	assert.Contains(t, body, "Location is required.")
	assert.Contains(t, body, "Start date is required.")
	assert.Contains(t, body, "End date is required.")
}

func TestExportDownload(t *testing.T) {
	env := newTestEnv(t, nil)
	env.backend.Seed(2)

	resp, body := env.do(t, http.MethodGet, "/export/csv", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `attachment; filename="weather_queries.csv"`, resp.Header.Get("Content-Disposition"))
	assert.Equal(t, "csv export of 2 records", body)

	resp, _ = env.do(t, http.MethodGet, "/export/markdown", nil)
	assert.Equal(t, `attachment; filename="weather_queries.md"`, resp.Header.Get("Content-Disposition"))

	resp, _ = env.do(t, http.MethodGet, "/export/docx", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExportFailureShowsMessage(t *testing.T) {
	env := newTestEnv(t, nil)
	env.backend.Fail("/api/export/", 1, 500, ``)

	resp, _ := env.do(t, http.MethodGet, "/export/pdf", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	_, body := env.do(t, http.MethodGet, "/history", nil)
	assert.Contains(t, body, "Export failed. Please try again.")
}

func TestSessionsAreIsolated(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodGet, "/?location=Oslo", nil)
	first := env.cookie

	env.cookie = ""
	_, body := env.do(t, http.MethodGet, "/", nil)
	assert.NotContains(t, body, `value="Oslo"`)
	assert.NotEqual(t, first, env.cookie)
	assert.Equal(t, 2, env.sessions.Count())
}

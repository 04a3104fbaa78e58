package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-lookup/internal/apiclient"
	"github.com/i474232898/weather-lookup/internal/store"
	"github.com/i474232898/weather-lookup/internal/testutil"
	"github.com/i474232898/weather-lookup/internal/weather"
)

func TestRunOnceKeepsLastGoodSnapshot(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.Place("nyc", "New York")
	client, err := apiclient.New(apiclient.Config{BaseURL: backend.URL()})
	require.NoError(t, err)

	st := store.NewMemoryStore(10, 0)
	s := New([]string{"nyc", "Paris"}, time.Hour, client, st)

	s.RunOnce()
	got := st.LatestAll(s.Locations())
	require.Len(t, got, 2)
	assert.Equal(t, "New York", got[0].Weather.CanonicalName())

	backend.Fail("/api/weather/current", -1, 502, ``)
	s.RunOnce()

	latest, err := st.Latest("nyc")
	require.NoError(t, err)
	assert.Equal(t, "New York", latest.Weather.CanonicalName())
	assert.Equal(t, 4, backend.Calls("/api/weather/current"))
}

func TestStartWithoutLocations(t *testing.T) {
	s := New(nil, 0, nil, store.NewMemoryStore(0, 0))
	require.NoError(t, s.Start())
	assert.Equal(t, defaultInterval, s.interval)
	s.Stop()
}

type countingFetcher struct{ calls chan string }

func (f countingFetcher) CurrentWeather(_ context.Context, location string) (weather.CurrentWeather, error) {
	f.calls <- location
	return weather.CurrentWeather{ResolvedLocation: location}, nil
}

func TestStartRunsImmediately(t *testing.T) {
	f := countingFetcher{calls: make(chan string, 4)}
	st := store.NewMemoryStore(0, 0)
	s := New([]string{"Rome"}, time.Hour, f, st)
	require.NoError(t, s.Start())
	defer s.Stop()

	select {
	case loc := <-f.calls:
		assert.Equal(t, "Rome", loc)
	case <-time.After(2 * time.Second):
		t.Fatal("refresh job did not run on start")
	}
}

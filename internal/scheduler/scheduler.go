package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/weather-lookup/internal/store"
	"github.com/i474232898/weather-lookup/internal/weather"
)

const (
	defaultInterval = 15 * time.Minute
	fetchTimeout    = 30 * time.Second
)

// Fetcher fetches current conditions for a location.
type Fetcher interface {
	CurrentWeather(ctx context.Context, location string) (weather.CurrentWeather, error)
}

// Scheduler periodically refreshes the featured-location cache.
type Scheduler struct {
	scheduler *gocron.Scheduler
	fetcher   Fetcher
	store     *store.MemoryStore
	locations []string
	interval  time.Duration
	now       func() time.Time
}

// New creates a new Scheduler.
func New(locations []string, interval time.Duration, fetcher Fetcher, st *store.MemoryStore) *Scheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		fetcher:   fetcher,
		store:     st,
		locations: locations,
		interval:  interval,
		now:       time.Now,
	}
}

// Locations returns the featured locations in display order.
func (s *Scheduler) Locations() []string {
	return s.locations
}

// Start schedules the refresh job, which first runs immediately.
func (s *Scheduler) Start() error {
	if len(s.locations) == 0 {
		log.Println("INFO: scheduler: no featured locations configured; nothing to schedule")
		return nil
	}

	if _, err := s.scheduler.Every(s.interval).Do(s.RunOnce); err != nil {
		return err
	}
	s.scheduler.StartAsync()
	return nil
}

// RunOnce fetches every featured location concurrently. Failures are
// logged and the previous snapshot is kept.
func (s *Scheduler) RunOnce() {
	log.Println("DEBUG: scheduler: refreshing featured locations")

	var wg sync.WaitGroup
	for _, loc := range s.locations {
		wg.Add(1)
		go func(loc string) {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
			defer cancel()

			cur, err := s.fetcher.CurrentWeather(ctx, loc)
			if err != nil {
				log.Printf("ERROR: scheduler: fetch failed for %s: %v", loc, err)
				return
			}
			s.store.Save(store.Snapshot{Location: loc, Weather: cur, Timestamp: s.now()})
		}(loc)
	}
	wg.Wait()
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

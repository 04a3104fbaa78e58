package httpapi

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/i474232898/weather-lookup/internal/export"
	"github.com/i474232898/weather-lookup/internal/history"
	"github.com/i474232898/weather-lookup/internal/pages"
	"github.com/i474232898/weather-lookup/internal/retry"
)

const sessionCookie = "wl_session"

// Session is the per-browser UI state.
type Session struct {
	ID       string
	Home     *pages.Home
	Forecast *pages.Forecast
	History  *pages.History
}

// Sessions keeps Session values in a TTL cache keyed by a cookie.
type Sessions struct {
	backend  Backend
	cache    *cache.Cache
	ttl      time.Duration
	pageSize int
	retry    retry.Policy
}

// NewSessions creates a session registry. Idle sessions expire after ttl.
func NewSessions(backend Backend, ttl time.Duration, pageSize int, policy retry.Policy) *Sessions {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Sessions{
		backend:  backend,
		cache:    cache.New(ttl, 2*ttl),
		ttl:      ttl,
		pageSize: pageSize,
		retry:    policy,
	}
}

// Count returns the number of live sessions.
func (s *Sessions) Count() int {
	return s.cache.ItemCount()
}

// Get returns the caller's session, creating one and setting the cookie
// when needed. Every access extends the session's lifetime.
func (s *Sessions) Get(c *fiber.Ctx) *Session {
	id := c.Cookies(sessionCookie)
	if id != "" {
		if v, ok := s.cache.Get(id); ok {
			sess := v.(*Session)
			s.cache.Set(id, sess, cache.DefaultExpiration)
			return sess
		}
	}

	sess := s.create()
	s.cache.Set(sess.ID, sess, cache.DefaultExpiration)
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Expires:  time.Now().Add(s.ttl),
	})
	return sess
}

func (s *Sessions) create() *Session {
	table := history.New(s.backend, history.Options{PageSize: s.pageSize, Retry: s.retry})
	page := pages.NewHistory(s.backend, table, export.NewControl(s.backend))
	// The reload after a create must not hold the POST through retries.
	page.Dispatch = func(reload func(context.Context) error) {
		startLoad(reload, "reload after create")
	}
	return &Session{
		ID:       uuid.NewString(),
		Home:     pages.NewHome(s.backend),
		Forecast: pages.NewForecast(s.backend),
		History:  page,
	}
}

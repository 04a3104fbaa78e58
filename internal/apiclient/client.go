package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

const defaultUserAgent = "weather-lookup"

// Config configures a Client.
type Config struct {
	// BaseURL of the REST backend, e.g. http://localhost:8000.
	BaseURL string

	// HTTPClient is optional; one honouring Timeout is built by default.
	HTTPClient *http.Client

	// Timeout applies to the default HTTP client only; 0 disables it.
	Timeout time.Duration

	UserAgent string

	// BreakerFailures trips the circuit after that many consecutive
	// connectivity/5xx failures. 0 disables the breaker.
	BreakerFailures int
	BreakerTimeout  time.Duration
}

// Client is the single point of HTTP access to the backend. It is stateless
// and safe for concurrent use; construct one at startup and pass it around.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	circuit   *gobreaker.CircuitBreaker
}

var (
	errNoBaseURL = errors.New("api base url not configured")
	errServer    = errors.New("server error")
)

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errNoBaseURL
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	c := &Client{
		baseURL:   base,
		http:      hc,
		userAgent: ua,
	}

	if cfg.BreakerFailures > 0 {
		threshold := uint32(cfg.BreakerFailures)
		openFor := cfg.BreakerTimeout
		if openFor <= 0 {
			openFor = 30 * time.Second
		}
		c.circuit = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "backend",
			MaxRequests: 1,
			Timeout:     openFor,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Printf("INFO: circuit %s changed from %s to %s", name, from, to)
			},
		})
	}

	return c, nil
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do executes a request and returns the raw 2xx response. Any other outcome
// is converted to *Error.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (*http.Response, error) {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, unexpectedError(fmt.Errorf("encode request: %w", err))
		}
		payload = b
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), bytes.NewReader(payload))
	if err != nil {
		return nil, unexpectedError(err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	send := func() (interface{}, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			// Keep the response for error mapping but count it as a failure.
			return resp, errServer
		}
		return resp, nil
	}

	var result interface{}
	if c.circuit != nil {
		result, err = c.circuit.Execute(send)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, connectivityError(err)
		}
	} else {
		result, err = send()
	}

	resp, _ := result.(*http.Response)
	if resp == nil {
		if err == nil {
			err = errors.New("empty response")
		}
		return nil, connectivityError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, statusError(resp.StatusCode, data)
	}

	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.sendJSON(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	resp, err := c.do(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return unexpectedError(fmt.Errorf("decode %s %s: %w", method, path, err))
	}
	return nil
}

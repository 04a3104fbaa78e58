package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/i474232898/weather-lookup/internal/weather"
)

const queriesPath = "/api/queries/"

// DefaultPageSize matches the backend's default list limit.
const DefaultPageSize = 20

func queryPath(id int64) string {
	return "/api/queries/" + strconv.FormatInt(id, 10)
}

// CreateQuery stores a new query.
func (c *Client) CreateQuery(ctx context.Context, body weather.QueryCreate) (weather.QueryRecord, error) {
	var out weather.QueryRecord
	err := c.sendJSON(ctx, http.MethodPost, queriesPath, nil, body, &out)
	return out, err
}

// ListQueries returns one page of stored queries in server order.
func (c *Client) ListQueries(ctx context.Context, skip, limit int) ([]weather.QueryRecord, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if skip < 0 {
		skip = 0
	}
	q := url.Values{
		"skip":  {strconv.Itoa(skip)},
		"limit": {strconv.Itoa(limit)},
	}
	var out []weather.QueryRecord
	if err := c.getJSON(ctx, queriesPath, q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetQuery returns a single stored query.
func (c *Client) GetQuery(ctx context.Context, id int64) (weather.QueryRecord, error) {
	var out weather.QueryRecord
	err := c.getJSON(ctx, queryPath(id), nil, &out)
	return out, err
}

// UpdateQuery sends only the fields set on patch.
func (c *Client) UpdateQuery(ctx context.Context, id int64, patch weather.QueryUpdate) (weather.QueryRecord, error) {
	var out weather.QueryRecord
	err := c.sendJSON(ctx, http.MethodPut, queryPath(id), nil, patch, &out)
	return out, err
}

// DeleteQuery removes a stored query.
func (c *Client) DeleteQuery(ctx context.Context, id int64) error {
	return c.sendJSON(ctx, http.MethodDelete, queryPath(id), nil, nil, nil)
}

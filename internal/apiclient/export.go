package apiclient

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
)

// Blob is an opaque downloadable payload.
type Blob struct {
	Data        []byte
	ContentType string
	// Filename from Content-Disposition, if the backend sent one.
	Filename string
}

// Export requests a rendered export of all stored queries.
func (c *Client) Export(ctx context.Context, format string) (Blob, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/export/", url.Values{"format": {format}}, nil)
	if err != nil {
		return Blob{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Blob{}, connectivityError(fmt.Errorf("read export body: %w", err))
	}

	blob := Blob{
		Data:        data,
		ContentType: resp.Header.Get("Content-Type"),
	}
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			blob.Filename = params["filename"]
		}
	}
	return blob, nil
}

// Package search turns user input or the device position into the location
// string handed to the weather lookups.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrEmptyQuery          = errors.New("empty location")
	ErrUnsupported         = errors.New("geolocation unsupported")
	ErrPermissionDenied    = errors.New("geolocation permission denied")
	ErrPositionUnavailable = errors.New("geolocation position unavailable")
	ErrTimeout             = errors.New("geolocation timed out")
)

// DefaultTimeout bounds a pending geolocation request.
const DefaultTimeout = 10 * time.Second

const (
	MsgUnsupported = "Geolocation is not supported by your browser. Please enter a location manually."
	MsgDenied      = "Location access was denied. Please enter a location manually."
	MsgUnavailable = "Your location could not be determined. Please enter a location manually."
	MsgGeneric     = "Unable to get your location. Please enter a location manually."
)

// Normalize trims a submitted query. Empty input is rejected and callers
// should treat it as a no-op.
func Normalize(input string) (string, error) {
	q := strings.TrimSpace(input)
	if q == "" {
		return "", ErrEmptyQuery
	}
	return q, nil
}

// Coordinates is a device position in decimal degrees.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// String formats "lat,lon" with five decimals.
func (c Coordinates) String() string {
	return FormatCoords(c.Latitude, c.Longitude)
}

// FormatCoords formats a coordinate pair as a location query.
func FormatCoords(lat, lon float64) string {
	return fmt.Sprintf("%.5f,%.5f", lat, lon)
}

// Locator resolves the current position. Available reports whether the
// capability exists in this environment and must be checked first.
type Locator interface {
	Available() bool
	Locate(ctx context.Context) (Coordinates, error)
}

// Geolocation wraps a Locator with the capability check and a timeout.
type Geolocation struct {
	locator Locator
	timeout time.Duration
}

// NewGeolocation creates a Geolocation. A nil locator means unsupported.
func NewGeolocation(locator Locator, timeout time.Duration) *Geolocation {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Geolocation{locator: locator, timeout: timeout}
}

// Available reports whether a position can be requested at all.
func (g *Geolocation) Available() bool {
	return g != nil && g.locator != nil && g.locator.Available()
}

// Resolve returns the location query for the current position.
func (g *Geolocation) Resolve(ctx context.Context) (string, error) {
	if !g.Available() {
		return "", ErrUnsupported
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	coords, err := g.locator.Locate(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return "", err
	}
	return coords.String(), nil
}

// Message maps a geolocation failure to the text shown next to the input.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnsupported):
		return MsgUnsupported
	case errors.Is(err, ErrPermissionDenied):
		return MsgDenied
	case errors.Is(err, ErrPositionUnavailable):
		return MsgUnavailable
	default:
		return MsgGeneric
	}
}

// ErrorFromCode maps a browser GeolocationPositionError code.
func ErrorFromCode(code int) error {
	switch code {
	case 1:
		return ErrPermissionDenied
	case 2:
		return ErrPositionUnavailable
	case 3:
		return ErrTimeout
	default:
		return fmt.Errorf("geolocation failed with code %d", code)
	}
}

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/kelvins/geocoder"
)

// DefaultIPLookupURL answers with {"status","lat","lon"}.
const DefaultIPLookupURL = "http://ip-api.com/json/"

// IPLocator approximates the position from the caller's public IP.
type IPLocator struct {
	URL    string
	Client *http.Client
}

// Available implements Locator.
func (l *IPLocator) Available() bool { return l != nil && l.URL != "" }

type ipLookupResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// Locate implements Locator.
func (l *IPLocator) Locate(ctx context.Context) (Coordinates, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.URL, nil)
	if err != nil {
		return Coordinates{}, err
	}
	req.Header.Set("Accept", "application/json")

	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Coordinates{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return Coordinates{}, ErrPermissionDenied
	case resp.StatusCode != http.StatusOK:
		return Coordinates{}, fmt.Errorf("%w: status %d", ErrPositionUnavailable, resp.StatusCode)
	}

	var body ipLookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Coordinates{}, fmt.Errorf("%w: %v", ErrPositionUnavailable, err)
	}
	if body.Status != "" && body.Status != "success" {
		return Coordinates{}, fmt.Errorf("%w: %s", ErrPositionUnavailable, body.Message)
	}
	return Coordinates{Latitude: body.Lat, Longitude: body.Lon}, nil
}

// AddressLocator geocodes a configured postal address through the Google
// Geocoding API.
type AddressLocator struct {
	Address string
	APIKey  string

	// geocode is swapped in tests.
	geocode func(geocoder.Address) (geocoder.Location, error)
}

// NewAddressLocator creates an AddressLocator.
func NewAddressLocator(address, apiKey string) *AddressLocator {
	return &AddressLocator{Address: address, APIKey: apiKey, geocode: geocoder.Geocoding}
}

// Available implements Locator.
func (l *AddressLocator) Available() bool {
	return l != nil && strings.TrimSpace(l.Address) != "" && l.APIKey != ""
}

// Locate implements Locator.
func (l *AddressLocator) Locate(ctx context.Context) (Coordinates, error) {
	type result struct {
		loc geocoder.Location
		err error
	}

	// The geocoder package reads its key from a package variable.
	geocoder.ApiKey = l.APIKey
	addr := ParseAddress(l.Address)

	done := make(chan result, 1)
	go func() {
		loc, err := l.geocode(addr)
		done <- result{loc, err}
	}()

	select {
	case <-ctx.Done():
		return Coordinates{}, ctx.Err()
	case r := <-done:
		if r.err != nil {
			log.Printf("DEBUG: geocoding %q failed: %v", l.Address, r.err)
			return Coordinates{}, fmt.Errorf("%w: %v", ErrPositionUnavailable, r.err)
		}
		return Coordinates{Latitude: r.loc.Latitude, Longitude: r.loc.Longitude}, nil
	}
}

// ParseAddress splits "street, city, state, country" style text. With
// fewer parts the leading ones are dropped: "city, country", "city".
func ParseAddress(s string) geocoder.Address {
	var parts []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}

	var a geocoder.Address
	switch len(parts) {
	case 0:
	case 1:
		a.City = parts[0]
	case 2:
		a.City, a.Country = parts[0], parts[1]
	case 3:
		a.City, a.State, a.Country = parts[0], parts[1], parts[2]
	default:
		n := len(parts)
		a.Street = strings.Join(parts[:n-3], ", ")
		a.City, a.State, a.Country = parts[n-3], parts[n-2], parts[n-1]
	}
	return a
}

package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Location is a geographic coordinate
type Location struct {
	Lat float64
	Lon float64
}

// Geocoder resolves a street address to a Location
type Geocoder interface {
	Geocode(ctx context.Context, address string) (Location, error)
}

// ErrNoLocation is returned when the geocoding service has no coordinates
// for an address
var ErrNoLocation = errors.New("no location for address")

// geoResponse is the JSON reply of the geocoding service
type geoResponse struct {
	Lat   *float64 `json:"lat"`
	Lon   *float64 `json:"lon"`
	Error string   `json:"error"`
}

// HTTPGeocoder queries a geocoding service at GET <BaseURL>/<escaped address>
type HTTPGeocoder struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// GeocoderOption configures an HTTPGeocoder
type GeocoderOption func(*HTTPGeocoder)

// WithHTTPClient sets the HTTP client used for lookups
func WithHTTPClient(client *http.Client) GeocoderOption {
	return func(g *HTTPGeocoder) {
		g.client = client
	}
}

// WithRateLimit limits lookups to perSecond requests per second.
// perSecond <= 0 disables the limit.
func WithRateLimit(perSecond float64, burst int) GeocoderOption {
	return func(g *HTTPGeocoder) {
		if perSecond <= 0 {
			g.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewHTTPGeocoder creates a geocoder for the service at baseURL
func NewHTTPGeocoder(baseURL string, timeout time.Duration, opts ...GeocoderOption) *HTTPGeocoder {
	g := &HTTPGeocoder{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Geocode looks up address
func (g *HTTPGeocoder) Geocode(ctx context.Context, address string) (Location, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return Location{}, fmt.Errorf("geocode %q: %w", address, err)
		}
	}

	reqURL := g.baseURL + "/" + url.PathEscape(address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Location{}, fmt.Errorf("geocode %q: %w", address, err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return Location{}, fmt.Errorf("geocode %q: %w", address, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body geoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Location{}, fmt.Errorf("geocode %q: failed to decode response (status %d): %w", address, resp.StatusCode, err)
	}
	if body.Error != "" {
		return Location{}, fmt.Errorf("geocode %q: %w: %s", address, ErrNoLocation, body.Error)
	}
	if body.Lat == nil || body.Lon == nil {
		return Location{}, fmt.Errorf("geocode %q: %w", address, ErrNoLocation)
	}
	return Location{Lat: *body.Lat, Lon: *body.Lon}, nil
}

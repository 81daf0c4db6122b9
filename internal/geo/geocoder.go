package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when the service has no match.
	ErrNotFound = errors.New("geocoder: no result")

	// ErrDisabled is returned when no geocoder URL is configured.
	ErrDisabled = errors.New("geocoder: disabled")
)

// Geocoder resolves addresses to coordinates and back using a
// Nominatim-compatible HTTP service.
type Geocoder struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewGeocoder returns a geocoder for baseURL. An empty baseURL yields a
// geocoder whose calls return ErrDisabled.
func NewGeocoder(baseURL, apiKey string, timeout time.Duration) *Geocoder {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Geocoder{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether a service URL is configured.
func (g *Geocoder) Enabled() bool {
	return g != nil && g.baseURL != ""
}

// Place is a geocoding match.
type Place struct {
	Point
	DisplayName string
}

type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Forward returns the best match for a free-text address.
func (g *Geocoder) Forward(ctx context.Context, address string) (Place, error) {
	if !g.Enabled() {
		return Place{}, ErrDisabled
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return Place{}, ErrNotFound
	}

	q := url.Values{}
	q.Set("q", address)
	q.Set("format", "json")
	q.Set("limit", "1")
	q.Set("countrycodes", "ro")

	var results []searchResult
	if err := g.get(ctx, "/search", q, &results); err != nil {
		return Place{}, err
	}
	if len(results) == 0 {
		return Place{}, ErrNotFound
	}
	return results[0].place()
}

// Reverse returns the address at p.
func (g *Geocoder) Reverse(ctx context.Context, p Point) (Place, error) {
	if !g.Enabled() {
		return Place{}, ErrDisabled
	}

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(p.Lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(p.Lng, 'f', 6, 64))
	q.Set("format", "json")

	var result struct {
		searchResult
		Error string `json:"error"`
	}
	if err := g.get(ctx, "/reverse", q, &result); err != nil {
		return Place{}, err
	}
	if result.Error != "" || result.DisplayName == "" {
		return Place{}, ErrNotFound
	}
	return result.place()
}

func (g *Geocoder) get(ctx context.Context, path string, q url.Values, out any) error {
	if g.apiKey != "" {
		q.Set("key", g.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build geocoder request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "ro")

	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("geocoder %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("geocoder %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode geocoder %s: %w", path, err)
	}
	return nil
}

func (r searchResult) place() (Place, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return Place{}, fmt.Errorf("geocoder latitude %q: %w", r.Lat, err)
	}
	lng, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return Place{}, fmt.Errorf("geocoder longitude %q: %w", r.Lon, err)
	}
	return Place{Point: Point{Lat: lat, Lng: lng}, DisplayName: r.DisplayName}, nil
}

package services

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

	"goodturn-api/config"
	"goodturn-api/models"
)

// ErrGeocodeNotFound means the free-text location could not be resolved to
// coordinates. The cache layer short-circuits to an empty result on it since
// no cache key can be computed.
var ErrGeocodeNotFound = errors.New("location could not be geocoded")

// Geocoder resolves a free-text address to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, freeText string) (models.Coordinates, error)
}

// NominatimGeocoder queries a Nominatim-compatible search endpoint.
type NominatimGeocoder struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

func NewNominatimGeocoder(cfg *config.Config) *NominatimGeocoder {
	return &NominatimGeocoder{
		baseURL:   strings.TrimRight(cfg.GeocoderBaseURL, "/"),
		userAgent: cfg.GeocoderUserAgent,
		client:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (g *NominatimGeocoder) Geocode(ctx context.Context, freeText string) (models.Coordinates, error) {
	u := fmt.Sprintf("%s/search?q=%s&format=json&limit=1", g.baseURL, url.QueryEscape(freeText))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return models.Coordinates{}, err
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("geocoding %q: %w", freeText, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Coordinates{}, fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}

	var results []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return models.Coordinates{}, fmt.Errorf("decoding geocoder response: %w", err)
	}
	if len(results) == 0 {
		return models.Coordinates{}, ErrGeocodeNotFound
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("bad latitude in geocoder response: %w", err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("bad longitude in geocoder response: %w", err)
	}
	return models.Coordinates{Latitude: lat, Longitude: lon}, nil
}

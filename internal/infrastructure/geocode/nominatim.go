package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/osintwatch/conflict-ingest/internal/infrastructure/config"
)

// Client is a forward geocoder over the Nominatim search API. It is the
// last-resort resolution tier, so results stay coarse: one hit per
// query, no address decomposition beyond the country.
type Client struct {
	endpoint string
	http     *http.Client
	logger   *zap.Logger
}

// New builds the geocoding client; returns nil when no endpoint is
// configured so callers can pass the result straight through.
func New(cfg config.GeocodeConfig, logger *zap.Logger) *Client {
	if cfg.Endpoint == "" {
		return nil
	}
	return &Client{
		endpoint: cfg.Endpoint,
		http:     &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
	}
}

type nominatimResult struct {
	Lat     string `json:"lat"`
	Lon     string `json:"lon"`
	Address struct {
		Country string `json:"country"`
	} `json:"address"`
}

func (c *Client) Geocode(ctx context.Context, name string) (float64, float64, string, error) {
	params := url.Values{}
	params.Set("q", name)
	params.Set("format", "jsonv2")
	params.Set("addressdetails", "1")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return 0, 0, "", fmt.Errorf("building geocode request: %w", err)
	}
	// Nominatim's usage policy requires an identifying agent.
	req.Header.Set("User-Agent", "conflict-ingest/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, 0, "", fmt.Errorf("geocode request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, 0, "", fmt.Errorf("geocode service returned status %d", resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return 0, 0, "", fmt.Errorf("decoding geocode response: %w", err)
	}
	if len(results) == 0 {
		return 0, 0, "", fmt.Errorf("no geocode result for %q", name)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return 0, 0, "", fmt.Errorf("invalid latitude in geocode result: %w", err)
	}
	lng, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return 0, 0, "", fmt.Errorf("invalid longitude in geocode result: %w", err)
	}

	return lat, lng, results[0].Address.Country, nil
}

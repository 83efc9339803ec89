package postcode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/homegrubhub/homegrubhub-be/internal/apperr"
)

// Location is the geographic data postcodes.io holds for a postcode.
type Location struct {
	Postcode  string  `json:"postcode"`
	Area      string  `json:"area"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Town      string  `json:"town"`
	District  string  `json:"district"`
	County    string  `json:"county"`
	Region    string  `json:"region"`
	Country   string  `json:"country"`
}

// Lookuper resolves postcodes to locations.
type Lookuper interface {
	Lookup(ctx context.Context, pc string) (Location, error)
	Nearby(ctx context.Context, lat, lng float64, radius int) ([]Location, error)
}

// Client talks to the postcodes.io REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for baseURL, e.g. "https://api.postcodes.io".
func NewClient(baseURL string) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: 5 * time.Second}}
}

type apiResult struct {
	Postcode      string  `json:"postcode"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	AdminWard     string  `json:"admin_ward"`
	AdminDistrict string  `json:"admin_district"`
	AdminCounty   string  `json:"admin_county"`
	Region        string  `json:"region"`
	Country       string  `json:"country"`
}

func (r apiResult) location() Location {
	return Location{
		Postcode:  r.Postcode,
		Area:      Area(r.Postcode),
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Town:      r.AdminWard,
		District:  r.AdminDistrict,
		County:    r.AdminCounty,
		Region:    r.Region,
		Country:   r.Country,
	}
}

// Lookup fetches a single postcode.
func (c *Client) Lookup(ctx context.Context, pc string) (Location, error) {
	if !Valid(pc) {
		return Location{}, apperr.Validation("Invalid UK postcode: %s", pc)
	}
	endpoint := fmt.Sprintf("%s/postcodes/%s", c.baseURL, url.PathEscape(compact(pc)))

	var body struct {
		Status int       `json:"status"`
		Result apiResult `json:"result"`
	}
	if err := c.get(ctx, endpoint, &body); err != nil {
		return Location{}, err
	}
	return body.Result.location(), nil
}

// Nearby lists postcodes within radius metres of a point.
func (c *Client) Nearby(ctx context.Context, lat, lng float64, radius int) ([]Location, error) {
	q := url.Values{}
	q.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("radius", strconv.Itoa(radius))
	q.Set("limit", "100")

	var body struct {
		Status int         `json:"status"`
		Result []apiResult `json:"result"`
	}
	if err := c.get(ctx, c.baseURL+"/postcodes?"+q.Encode(), &body); err != nil {
		return nil, err
	}
	out := make([]Location, 0, len(body.Result))
	for _, r := range body.Result {
		out = append(out, r.location())
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, endpoint string, dst interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build postcode request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.External("postcodes.io", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperr.New(apperr.CodeNotFound, "Postcode not found")
	case resp.StatusCode != http.StatusOK:
		return apperr.External("postcodes.io", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return apperr.External("postcodes.io", fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

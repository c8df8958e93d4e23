package geocode

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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DefaultBaseURL is the AMap REST endpoint.
const DefaultBaseURL = "https://restapi.amap.com"

// DefaultTimeout bounds a single AMap request.
const DefaultTimeout = 8 * time.Second

// ErrNoResult is returned when AMap answers but has no usable location.
var ErrNoResult = errors.New("geocode: no result")

const tracerName = "github.com/traumaregistry/intake/internal/geocode"

// ClientConfig configures the AMap client.
type ClientConfig struct {
	BaseURL string        // Defaults to DefaultBaseURL
	Key     string        // AMap web service key
	City    string        // City constraint, e.g. "上海"
	Timeout time.Duration // Per request; defaults to DefaultTimeout
}

// Client calls the AMap forward geocoding and place search APIs.
type Client struct {
	baseURL string
	key     string
	city    string
	http    *http.Client
}

// NewClient creates an AMap client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		key:     cfg.Key,
		city:    cfg.City,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

type amapResponse struct {
	Status   string         `json:"status"`
	Info     string         `json:"info"`
	Count    string         `json:"count"`
	Geocodes []amapLocation `json:"geocodes"`
	Pois     []amapLocation `json:"pois"`
}

type amapLocation struct {
	Location string `json:"location"`
}

// Geocode resolves an address with the city-constrained forward geocoder.
func (c *Client) Geocode(ctx context.Context, address string) (Coordinate, error) {
	q := url.Values{
		"key":       {c.key},
		"address":   {address},
		"city":      {c.city},
		"citylimit": {"true"},
		"batch":     {"false"},
	}
	resp, err := c.get(ctx, "/v3/geocode/geo", q)
	if err != nil {
		return Coordinate{}, err
	}
	if len(resp.Geocodes) == 0 {
		return Coordinate{}, ErrNoResult
	}
	return parseLocation(resp.Geocodes[0].Location)
}

// SearchPOI resolves keywords with the place text search, taking the first hit.
func (c *Client) SearchPOI(ctx context.Context, keywords string) (Coordinate, error) {
	q := url.Values{
		"key":       {c.key},
		"keywords":  {keywords},
		"city":      {c.city},
		"citylimit": {"true"},
		"offset":    {"1"},
		"page":      {"1"},
	}
	resp, err := c.get(ctx, "/v3/place/text", q)
	if err != nil {
		return Coordinate{}, err
	}
	if len(resp.Pois) == 0 {
		return Coordinate{}, ErrNoResult
	}
	return parseLocation(resp.Pois[0].Location)
}

func (c *Client) get(ctx context.Context, path string, q url.Values) (*amapResponse, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "amap"+path)
	defer span.End()
	span.SetAttributes(attribute.String("amap.path", path))

	resp, err := c.do(ctx, path, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return resp, err
}

func (c *Client) do(ctx context.Context, path string, q url.Values) (*amapResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build amap request: %w", err)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("amap request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("amap %s: http status %d", path, res.StatusCode)
	}

	var body amapResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode amap response: %w", err)
	}

	count, _ := strconv.Atoi(body.Count)
	if body.Status != "1" || count <= 0 {
		return nil, fmt.Errorf("%w: status=%s count=%s info=%s", ErrNoResult, body.Status, body.Count, body.Info)
	}
	return &body, nil
}

// parseLocation reads AMap's "lng,lat" string.
func parseLocation(loc string) (Coordinate, error) {
	lngStr, latStr, ok := strings.Cut(loc, ",")
	if !ok {
		return Coordinate{}, fmt.Errorf("%w: malformed location %q", ErrNoResult, loc)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("%w: malformed longitude %q", ErrNoResult, lngStr)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("%w: malformed latitude %q", ErrNoResult, latStr)
	}
	return Coordinate{Lng: lng, Lat: lat}, nil
}

package power

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"app-clima/internal/modules/climate/types"
)

// API Docs: https://power.larc.nasa.gov/docs/services/api/temporal/daily/
const DefaultBaseURL = "https://power.larc.nasa.gov/api/temporal/daily/point"

// DateLayout is the service's date format for start, end and series keys.
const DateLayout = "20060102"

const (
	community    = "RE"
	format       = "JSON"
	maxErrorBody = 4 << 10
)

// Query selects one point and an inclusive date range.
type Query struct {
	Latitude  float64
	Longitude float64
	Start     time.Time
	End       time.Time
}

func (q Query) StartKey() string { return q.Start.Format(DateLayout) }
func (q Query) EndKey() string   { return q.End.Format(DateLayout) }

// Client fetches daily point data from the NASA POWER API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{},
		baseURL:    DefaultBaseURL,
	}
}

// NewClientWithHTTPClient creates a client with a custom HTTP client
func NewClientWithHTTPClient(httpClient *http.Client) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    DefaultBaseURL,
	}
}

// SetBaseURL sets the endpoint (useful for testing)
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// BuildURL renders the request URL for q.
func (c *Client) BuildURL(q Query) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse base URL: %w", err)
	}

	v := u.Query()
	v.Set("parameters", strings.Join(Codes(), ","))
	v.Set("community", community)
	v.Set("longitude", formatFloat(q.Longitude))
	v.Set("latitude", formatFloat(q.Latitude))
	v.Set("start", q.StartKey())
	v.Set("end", q.EndKey())
	v.Set("format", format)
	u.RawQuery = v.Encode()

	return u.String(), nil
}

// Fetch issues a single GET for q and reshapes the body into a table.
// A non-200 status yields an error matching ErrNoData.
func (c *Client) Fetch(ctx context.Context, q Query) (types.Table, error) {
	reqURL, err := c.BuildURL(q)
	if err != nil {
		return types.Table{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return types.Table{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return types.Table{}, fmt.Errorf("failed to fetch: %w", err)
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return types.Table{}, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Table{}, fmt.Errorf("failed to read response body: %w", err)
	}

	return decodeTable(body)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

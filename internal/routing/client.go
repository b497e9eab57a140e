package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/example/foodsched/internal/availability"
)

// Client talks to an OSRM-compatible route service.
type Client struct {
	hc      *http.Client
	baseURL string
	profile string
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		hc:      &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		profile: "driving",
	}
}

type routeResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
	} `json:"routes"`
}

func (c *Client) Estimate(ctx context.Context, from, to GeoPoint) (availability.RouteEstimate, error) {
	if err := from.Validate(); err != nil {
		return availability.RouteEstimate{}, err
	}
	if err := to.Validate(); err != nil {
		return availability.RouteEstimate{}, err
	}
	// OSRM wants lng,lat pairs.
	coords := fmt.Sprintf("%f,%f;%f,%f", from.Lng, from.Lat, to.Lng, to.Lat)
	rawURL := fmt.Sprintf("%s/route/v1/%s/%s", c.baseURL, c.profile, coords)

	status, body, err := c.do(ctx, http.MethodGet, rawURL, map[string]string{"overview": "false"})
	if err != nil {
		return availability.RouteEstimate{}, err
	}
	var res routeResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return availability.RouteEstimate{}, fmt.Errorf("routing: decode response (status=%d): %w", status, err)
	}
	if status >= 400 || res.Code != "Ok" {
		if res.Message != "" {
			return availability.RouteEstimate{}, fmt.Errorf("routing failed: %s (status=%d)", res.Message, status)
		}
		return availability.RouteEstimate{}, fmt.Errorf("routing failed (status=%d, code=%q)", status, res.Code)
	}
	if len(res.Routes) == 0 {
		return availability.RouteEstimate{}, fmt.Errorf("routing: no route found")
	}
	r := res.Routes[0]
	return availability.RouteEstimate{
		DistanceMeters: r.Distance,
		Duration:       time.Duration(r.Duration * float64(time.Second)),
	}, nil
}

func (c *Client) do(ctx context.Context, method, rawURL string, query map[string]string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("accept", "application/json")
	if query != nil {
		q := req.URL.Query()
		for k, v := range query {
			q.Add(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()
	b, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return res.StatusCode, nil, err
	}
	return res.StatusCode, b, nil
}

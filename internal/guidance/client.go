// Package guidance polls the navigation API and turns decisions and route
// steps into announcements.
package guidance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hammamikhairi/navcompanion/internal/domain"
	"github.com/hammamikhairi/navcompanion/internal/logger"
)

// Compile-time interface check.
var _ domain.GuidanceSource = (*Client)(nil)

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithPrefix sets the API path prefix.
func WithPrefix(prefix string) ClientOption {
	return func(c *Client) {
		c.prefix = "/" + strings.Trim(prefix, "/")
		if c.prefix == "/" {
			c.prefix = ""
		}
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// Client talks to the navigation endpoints of the backend API.
type Client struct {
	baseURL    string
	prefix     string
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient creates a navigation API client.
func NewClient(baseURL string, log *logger.Logger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		prefix:     "/api",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LatestDecision returns the newest decision for room, or nil when the
// backend has none.
func (c *Client) LatestDecision(ctx context.Context, room string) (*domain.Decision, error) {
	u := c.baseURL + c.prefix + "/navigation/decision/latest?room=" + url.QueryEscape(room)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	var d domain.Decision
	if err := c.do(req, &d); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest decision: %w", err)
	}
	return &d, nil
}

type directionsRequest struct {
	Room      string  `json:"room"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Mode      string  `json:"mode"`
}

type directionsResponse struct {
	Summary  string `json:"summary"`
	NextStep struct {
		Instruction  string `json:"instruction"`
		DistanceText string `json:"distance_text"`
		DurationText string `json:"duration_text"`
	} `json:"next_step"`
	DestinationLatitude  float64 `json:"destination_latitude"`
	DestinationLongitude float64 `json:"destination_longitude"`
}

// NextDirection asks for the next walking step from at towards the
// room's destination. Returns domain.ErrNotFound when no destination is
// set.
func (c *Client) NextDirection(ctx context.Context, room string, at domain.Location, mode string) (*domain.RouteGuidance, error) {
	body, err := json.Marshal(directionsRequest{
		Room:      room,
		Latitude:  at.Latitude,
		Longitude: at.Longitude,
		Mode:      mode,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	u := c.baseURL + c.prefix + "/navigation/directions/next"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out directionsResponse
	if err := c.do(req, &out); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("next direction: %w", err)
	}
	return &domain.RouteGuidance{
		Summary:      out.Summary,
		Instruction:  out.NextStep.Instruction,
		DistanceText: out.NextStep.DistanceText,
		DurationText: out.NextStep.DurationText,
		Destination: domain.Location{
			Latitude:  out.DestinationLatitude,
			Longitude: out.DestinationLongitude,
		},
	}, nil
}

// do sends req and decodes a JSON body into out. 404 maps to
// domain.ErrNotFound.
func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("User-Agent", "NavCompanion/1.0")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("navigation api error %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	c.log.Debug("navigation api: %s %s ok", req.Method, req.URL.Path)
	return nil
}

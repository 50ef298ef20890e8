// Package openweathermap implements weather.Provider against the
// OpenWeatherMap current weather API.
package openweathermap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/commuteai/agents/internal/provider/resilience"
	"github.com/commuteai/agents/internal/weather"
)

const (
	// ProviderName identifies this weather provider.
	ProviderName = "openweathermap"

	// DefaultBaseURL is the OpenWeatherMap API base URL.
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5"
)

var errMalformed = errors.New("malformed payload")

// ClientConfig holds configuration for the OpenWeatherMap client.
type ClientConfig struct {
	// APIKey is the OpenWeatherMap API key (required).
	APIKey string

	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// HTTPClient defaults to a resilient client named after the provider.
	HTTPClient *resilience.Client

	Logger zerolog.Logger

	// Now is used to stamp conditions; defaults to time.Now.
	Now func() time.Time
}

// Client is an OpenWeatherMap API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
	now        func() time.Time
}

// NewClient creates a new OpenWeatherMap client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
		now:        now,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// GetCurrentWeather fetches current weather for a location in metric units.
// Every failure wraps weather.ErrUnavailable.
func (c *Client) GetCurrentWeather(ctx context.Context, lat, lon float64) (*weather.Condition, error) {
	query := url.Values{}
	query.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	query.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	query.Set("appid", c.apiKey)
	query.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/weather?"+query.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %w", weather.ErrUnavailable, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: executing request: %w", weather.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck // drain
		return nil, fmt.Errorf("%w: unexpected status code: %d", weather.ErrUnavailable, resp.StatusCode)
	}

	var payload currentWeatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %w", weather.ErrUnavailable, err)
	}

	condition, err := c.toCondition(&payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", weather.ErrUnavailable, err)
	}
	return condition, nil
}

func (c *Client) toCondition(resp *currentWeatherResponse) (*weather.Condition, error) {
	if resp.Main == nil || resp.Main.Temp == nil || resp.Main.Humidity == nil {
		return nil, fmt.Errorf("%w: missing main block", errMalformed)
	}
	if len(resp.Weather) == 0 {
		return nil, fmt.Errorf("%w: missing weather description", errMalformed)
	}

	condition := &weather.Condition{
		Temperature: *resp.Main.Temp,
		Description: resp.Weather[0].Description,
		Humidity:    int(math.Round(*resp.Main.Humidity)),
		Timestamp:   c.now(),
	}
	if resp.Wind != nil {
		condition.WindSpeed = resp.Wind.Speed
	}
	if resp.Rain != nil {
		condition.Precipitation = resp.Rain.OneHour
	}

	return condition, nil
}

type currentWeatherResponse struct {
	Weather []struct {
		ID          int    `json:"id"`
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main *struct {
		Temp     *float64 `json:"temp"`
		Humidity *float64 `json:"humidity"`
	} `json:"main"`
	Wind *struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Rain *struct {
		OneHour float64 `json:"1h"`
	} `json:"rain"`
	Dt int64 `json:"dt"`
}

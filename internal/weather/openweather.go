package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

const httpTimeout = 10 * time.Second

// newHTTPClient returns an http.Client with a 10-second timeout.
func newHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

const (
	owmCurrentDefault  = "https://api.openweathermap.org/data/2.5/weather"
	owmForecastDefault = "https://api.openweathermap.org/data/2.5/forecast"
)

var (
	errRateLimited = errors.New("rate limited")
	errServerError = errors.New("server error")
	errUnexpected  = errors.New("unexpected status code")
)

// backoffConfig controls the retry behaviour of an OpenWeatherClient.
type backoffConfig struct {
	maxRetries      int
	initialInterval time.Duration
	maxInterval     time.Duration
}

// OpenWeatherClient fetches current weather and 5-day forecasts from
// OpenWeatherMap. Calls go through a circuit breaker with bounded retries.
type OpenWeatherClient struct {
	apiKey      string
	currentURL  string
	forecastURL string
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker
	backoff     backoffConfig
}

// NewOpenWeatherClient constructs an OpenWeatherClient with the given API key.
func NewOpenWeatherClient(apiKey string) *OpenWeatherClient {
	return NewOpenWeatherClientWithURLs(owmCurrentDefault, owmForecastDefault, apiKey)
}

// NewOpenWeatherClientWithURLs constructs an OpenWeatherClient pointing at
// custom base URLs (for tests).
func NewOpenWeatherClientWithURLs(currentURL, forecastURL, apiKey string) *OpenWeatherClient {
	return &OpenWeatherClient{
		apiKey:      apiKey,
		currentURL:  currentURL,
		forecastURL: forecastURL,
		client:      newHTTPClient(),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "openweather",
			MaxRequests: 5,
			Interval:    1 * time.Minute,
			Timeout:     2 * time.Minute,
		}),
		backoff: backoffConfig{
			maxRetries:      2,
			initialInterval: 500 * time.Millisecond,
			maxInterval:     5 * time.Second,
		},
	}
}

// cityQuery builds the "q" parameter: "city" or "city,country".
func cityQuery(city, country string) string {
	if country != "" {
		return city + "," + country
	}
	return city
}

// doGet performs a GET through the circuit breaker with retries and
// exponential backoff, and returns the raw response body.
func (c *OpenWeatherClient) doGet(ctx context.Context, rawURL string) ([]byte, error) {
	var attempt int
	var lastErr error

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		result, err := c.breaker.Execute(func() (any, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
			if err != nil {
				return nil, fmt.Errorf("creating request: %w", err)
			}

			resp, err := c.client.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusTooManyRequests {
				return nil, errRateLimited
			}
			if resp.StatusCode >= 500 {
				return nil, errServerError
			}
			if resp.StatusCode != http.StatusOK {
				return nil, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
			}

			return io.ReadAll(resp.Body)
		})
		if err == nil {
			return result.([]byte), nil
		}

		// An open breaker or a 4xx will not improve with retries.
		if errors.Is(err, gobreaker.ErrOpenState) ||
			errors.Is(err, gobreaker.ErrTooManyRequests) ||
			errors.Is(err, errUnexpected) {
			return nil, err
		}

		lastErr = err
		if attempt >= c.backoff.maxRetries {
			return nil, lastErr
		}

		delay := c.backoff.initialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > c.backoff.maxInterval {
			delay = c.backoff.maxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		attempt++
	}
}

type owmCurrentResponse struct {
	Coord struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
}

// Current retrieves the current weather for the given city.
func (c *OpenWeatherClient) Current(ctx context.Context, city, country string) (*CurrentConditions, error) {
	endpoint := c.currentURL + "?q=" + url.QueryEscape(cityQuery(city, country)) +
		"&appid=" + c.apiKey + "&units=metric"

	body, err := c.doGet(ctx, endpoint)
	if err != nil {
		return nil, &CollaboratorError{Provider: "openweather", Err: fmt.Errorf("current weather for %s: %w", city, err)}
	}

	var raw owmCurrentResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &CollaboratorError{Provider: "openweather", Err: fmt.Errorf("decoding current weather for %s: %w", city, err)}
	}

	description := ""
	if len(raw.Weather) > 0 {
		description = raw.Weather[0].Description
	}

	return &CurrentConditions{
		Lat:         raw.Coord.Lat,
		Lon:         raw.Coord.Lon,
		Temperature: raw.Main.Temp,
		Description: description,
		Raw:         body,
	}, nil
}

type owmForecastEntry struct {
	DtTxt string `json:"dt_txt"`
	Main  struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
}

type owmForecastResponse struct {
	List []json.RawMessage `json:"list"`
}

// Forecast retrieves the forecast for a single future date. OpenWeather's
// free endpoint returns 3-hourly slots for 5 days; the 12:00 slot of the
// requested date is used, falling back to that date's first slot.
func (c *OpenWeatherClient) Forecast(ctx context.Context, date Date, city, country string) (*ForecastConditions, error) {
	endpoint := c.forecastURL + "?q=" + url.QueryEscape(cityQuery(city, country)) +
		"&appid=" + c.apiKey + "&units=metric"

	body, err := c.doGet(ctx, endpoint)
	if err != nil {
		return nil, &CollaboratorError{Provider: "openweather", Err: fmt.Errorf("forecast for %s: %w", city, err)}
	}

	var raw owmForecastResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &CollaboratorError{Provider: "openweather", Err: fmt.Errorf("decoding forecast for %s: %w", city, err)}
	}

	wantDay := date.String()
	var chosen *owmForecastEntry
	var chosenRaw json.RawMessage

	for _, item := range raw.List {
		var entry owmForecastEntry
		if err := json.Unmarshal(item, &entry); err != nil {
			continue
		}
		if !strings.HasPrefix(entry.DtTxt, wantDay) {
			continue
		}
		if chosen == nil || strings.HasSuffix(entry.DtTxt, "12:00:00") {
			e := entry
			chosen = &e
			chosenRaw = item
		}
		if strings.HasSuffix(entry.DtTxt, "12:00:00") {
			break
		}
	}

	if chosen == nil {
		return nil, &CollaboratorError{
			Provider: "openweather",
			Err:      fmt.Errorf("no forecast slots for %s on %s", city, wantDay),
		}
	}

	description := ""
	if len(chosen.Weather) > 0 {
		description = chosen.Weather[0].Description
	}

	return &ForecastConditions{
		Temperature: chosen.Main.Temp,
		Description: description,
		Raw:         chosenRaw,
	}, nil
}

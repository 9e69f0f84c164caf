package weather_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weatherapp/backend/internal/weather"
)

func currentHandler(t *testing.T) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"coord":   map[string]any{"lat": 51.5074, "lon": -0.1278},
			"main":    map[string]any{"temp": 18.5},
			"weather": []map[string]any{{"description": "light rain"}},
		})
	}
}

func forecastHandler(t *testing.T, entries []map[string]any) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"list": entries})
	}
}

func forecastEntry(dtTxt string, temp float64, desc string) map[string]any {
	return map[string]any{
		"dt_txt":  dtTxt,
		"main":    map[string]any{"temp": temp},
		"weather": []map[string]any{{"description": desc}},
	}
}

func TestCurrent_Success(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		currentHandler(t)(w, r)
	}))
	defer srv.Close()

	c := weather.NewOpenWeatherClientWithURLs(srv.URL, srv.URL, "test-key")
	cur, err := c.Current(context.Background(), "London", "GB")
	require.NoError(t, err)

	assert.Equal(t, "London,GB", gotQuery)
	assert.Equal(t, 51.5074, cur.Lat)
	assert.Equal(t, -0.1278, cur.Lon)
	assert.Equal(t, 18.5, cur.Temperature)
	assert.Equal(t, "light rain", cur.Description)
	assert.NotEmpty(t, cur.Raw, "raw provider response should be preserved")
}

func TestCurrent_NoCountryOmitsSuffix(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		currentHandler(t)(w, r)
	}))
	defer srv.Close()

	c := weather.NewOpenWeatherClientWithURLs(srv.URL, srv.URL, "test-key")
	_, err := c.Current(context.Background(), "London", "")
	require.NoError(t, err)
	assert.Equal(t, "London", gotQuery)
}

func TestCurrent_ClientErrorIsCollaboratorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := weather.NewOpenWeatherClientWithURLs(srv.URL, srv.URL, "test-key")
	_, err := c.Current(context.Background(), "Atlantis", "")

	var cErr *weather.CollaboratorError
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, "openweather", cErr.Provider)
}

func TestCurrent_RetriesServerErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		currentHandler(t)(w, r)
	}))
	defer srv.Close()

	c := weather.NewOpenWeatherClientWithURLs(srv.URL, srv.URL, "test-key")
	cur, err := c.Current(context.Background(), "London", "GB")
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 18.5, cur.Temperature)
}

func TestForecast_PrefersNoonSlot(t *testing.T) {
	srv := httptest.NewServer(forecastHandler(t, []map[string]any{
		forecastEntry("2026-09-01 09:00:00", 17.0, "mist"),
		forecastEntry("2026-09-01 12:00:00", 21.0, "clear sky"),
		forecastEntry("2026-09-01 15:00:00", 22.0, "clear sky"),
		forecastEntry("2026-09-02 12:00:00", 19.0, "rain"),
	}))
	defer srv.Close()

	c := weather.NewOpenWeatherClientWithURLs(srv.URL, srv.URL, "test-key")
	d, err := weather.ParseDate("2026-09-01")
	require.NoError(t, err)

	fc, err := c.Forecast(context.Background(), d, "London", "GB")
	require.NoError(t, err)
	assert.Equal(t, 21.0, fc.Temperature)
	assert.Equal(t, "clear sky", fc.Description)
}

func TestForecast_FallsBackToFirstSlotOfDate(t *testing.T) {
	srv := httptest.NewServer(forecastHandler(t, []map[string]any{
		forecastEntry("2026-09-01 18:00:00", 16.0, "overcast"),
		forecastEntry("2026-09-01 21:00:00", 14.0, "overcast"),
	}))
	defer srv.Close()

	c := weather.NewOpenWeatherClientWithURLs(srv.URL, srv.URL, "test-key")
	d, err := weather.ParseDate("2026-09-01")
	require.NoError(t, err)

	fc, err := c.Forecast(context.Background(), d, "London", "GB")
	require.NoError(t, err)
	assert.Equal(t, 16.0, fc.Temperature)
}

func TestForecast_NoSlotsForDate(t *testing.T) {
	srv := httptest.NewServer(forecastHandler(t, []map[string]any{
		forecastEntry("2026-09-02 12:00:00", 19.0, "rain"),
	}))
	defer srv.Close()

	c := weather.NewOpenWeatherClientWithURLs(srv.URL, srv.URL, "test-key")
	d, err := weather.ParseDate("2026-09-01")
	require.NoError(t, err)

	_, err = c.Forecast(context.Background(), d, "London", "GB")
	var cErr *weather.CollaboratorError
	require.ErrorAs(t, err, &cErr)
}

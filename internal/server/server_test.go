package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/venue-locator/internal/engine"
	"github.com/sells-group/venue-locator/internal/location"
	"github.com/sells-group/venue-locator/internal/metrics"
	"github.com/sells-group/venue-locator/internal/venue"
)

func newTestEngine() *engine.Engine {
	catalog := venue.NewCatalog()
	catalog.Seed()
	return engine.New(engine.Deps{
		Catalog:  catalog,
		Provider: location.NewStaticProvider(22.3193, 114.1694),
	})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth_Offline(t *testing.T) {
	h := NewRouter(newTestEngine(), Config{})

	rec := do(t, h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.NotContains(t, resp, "sync")
}

func TestListVenues(t *testing.T) {
	h := NewRouter(newTestEngine(), Config{})

	tests := []struct {
		name    string
		path    string
		wantIDs []string
	}{
		{"all", "/venues", []string{"hong-kong-victoria-harbor", "san-francisco-bay", "sydney-harbour", "solent-cowes"}},
		{"region", "/venues?region=europe", []string{"solent-cowes"}},
		{"search", "/venues?q=sydney", []string{"sydney-harbour"}},
		{"search and region", "/venues?q=harbour&region=oceania", []string{"sydney-harbour"}},
		{"no match", "/venues?q=atlantis", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, tt.path, "")
			require.Equal(t, http.StatusOK, rec.Code)

			var venues []venue.Venue
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &venues))
			ids := make([]string, 0, len(venues))
			for _, v := range venues {
				ids = append(ids, v.ID)
			}
			assert.ElementsMatch(t, tt.wantIDs, ids)
		})
	}
}

func TestGetVenue(t *testing.T) {
	h := NewRouter(newTestEngine(), Config{})

	rec := do(t, h, http.MethodGet, "/venues/sydney-harbour", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var v venue.Venue
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, "sydney-harbour", v.ID)

	rec = do(t, h, http.MethodGet, "/venues/atlantis", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResolve(t *testing.T) {
	h := NewRouter(newTestEngine(), Config{})

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantVenue  string
	}{
		{"victoria harbour", `{"lat":22.3193,"lng":114.1694}`, http.StatusOK, "hong-kong-victoria-harbor"},
		{"open ocean", `{"lat":0.5,"lng":-30}`, http.StatusOK, ""},
		{"missing lng", `{"lat":22.3}`, http.StatusBadRequest, ""},
		{"out of range", `{"lat":95,"lng":10}`, http.StatusBadRequest, ""},
		{"bad json", `{`, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/resolve", tt.body)
			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}

			var resp struct {
				Venue *struct {
					ID string `json:"id"`
				} `json:"venue"`
				Method   string   `json:"method"`
				Distance *float64 `json:"distance_m"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "gps-local", resp.Method)
			if tt.wantVenue == "" {
				assert.Nil(t, resp.Venue)
				assert.Nil(t, resp.Distance, "infinite distance encodes as null")
				return
			}
			require.NotNil(t, resp.Venue)
			assert.Equal(t, tt.wantVenue, resp.Venue.ID)
		})
	}
}

func TestCurrent_ManualOverride(t *testing.T) {
	eng := newTestEngine()
	h := NewRouter(eng, Config{})

	rec := do(t, h, http.MethodPut, "/current", `{"venue_id":"solent-cowes"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "solent-cowes", eng.CurrentVenue().ID)

	rec = do(t, h, http.MethodGet, "/current", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"method":"manual"`)

	rec = do(t, h, http.MethodPut, "/current", `{"venue_id":"atlantis"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, h, http.MethodPut, "/current", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "solent-cowes", eng.CurrentVenue().ID)
}

func TestCORSPreflight(t *testing.T) {
	h := NewRouter(newTestEngine(), Config{AllowedOrigins: []string{"https://app.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/resolve", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	catalog := venue.NewCatalog()
	catalog.Seed()
	m := metrics.New(reg)
	m.TrackCatalog(catalog.Len)
	eng := engine.New(engine.Deps{
		Catalog:  catalog,
		Provider: location.NewStaticProvider(22.3193, 114.1694),
		Metrics:  m,
	})

	assert.Equal(t, http.StatusNotFound, do(t, NewRouter(eng, Config{}), http.MethodGet, "/metrics", "").Code)

	h := NewRouter(eng, Config{Metrics: reg})
	do(t, h, http.MethodPost, "/resolve", `{"lat":22.3193,"lng":114.1694}`)

	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `venue_locator_resolutions_total{method="gps-local"} 1`)
	assert.Contains(t, body, "venue_locator_catalog_venues")
}

func TestEvents_StreamsUpdates(t *testing.T) {
	eng := newTestEngine()
	srv := httptest.NewServer(NewRouter(eng, Config{}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// Updates published before the stream subscribes are held for it.
	eng.Resolve(context.Background(), location.Fix{Lat: -33.8568, Lng: 151.2153})

	sc := bufio.NewScanner(resp.Body)
	var data string
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(line, "data: ")
			break
		}
	}
	require.NotEmpty(t, data)

	var u engine.Update
	require.NoError(t, json.Unmarshal([]byte(data), &u))
	assert.True(t, u.Changed)
	require.NotNil(t, u.Venue)
	assert.Equal(t, "sydney-harbour", u.Venue.ID)
}

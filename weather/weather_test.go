package weather

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

const currentJSON = `{
	"location": {"name": "Tokyo", "region": "Tokyo", "country": "Japan"},
	"current": {
		"temp_c": 21.5,
		"feelslike_c": 22.0,
		"condition": {"text": "Partly cloudy"},
		"humidity": 60,
		"wind_kph": 13.0,
		"last_updated": "2025-01-15 12:00"
	}
}`

func newUpstream(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient("test-key", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func TestCurrent(t *testing.T) {
	var gotQuery string
	client := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		if r.URL.Path != "/current.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(currentJSON))
	})

	report, err := client.Current(context.Background(), "Tokyo")
	if err != nil {
		t.Fatal(err)
	}

	if report.Location != "Tokyo" || report.Country != "Japan" {
		t.Errorf("location = %q/%q", report.Location, report.Country)
	}
	if report.TempC != 21.5 {
		t.Errorf("temp_c = %v, want 21.5", report.TempC)
	}
	if report.Condition != "Partly cloudy" {
		t.Errorf("condition = %q", report.Condition)
	}

	params, err := url.ParseQuery(gotQuery)
	if err != nil {
		t.Fatal(err)
	}
	for key, want := range map[string]string{"key": "test-key", "q": "Tokyo", "aqi": "no"} {
		if got := params.Get(key); got != want {
			t.Errorf("query param %s = %q, want %q", key, got, want)
		}
	}
}

func TestCurrentUnknownLocation(t *testing.T) {
	client := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":1006,"message":"No matching location found."}}`))
	})

	_, err := client.Current(context.Background(), "Nowhereville")
	if !errors.Is(err, ErrLocationNotFound) {
		t.Errorf("err = %v, want ErrLocationNotFound", err)
	}
}

func TestCurrentUpstreamError(t *testing.T) {
	client := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Current(context.Background(), "Tokyo")
	if !errors.Is(err, ErrUpstream) {
		t.Errorf("err = %v, want ErrUpstream", err)
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(""); err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestFetchFuncExtractsLocationFromResourceID(t *testing.T) {
	var gotLocation string
	client := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		gotLocation = r.URL.Query().Get("q")
		w.Write([]byte(currentJSON))
	})

	data, err := client.FetchFunc()(context.Background(), "/weather/Tokyo")
	if err != nil {
		t.Fatal(err)
	}
	if gotLocation != "Tokyo" {
		t.Errorf("upstream queried with %q, want Tokyo", gotLocation)
	}

	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatal(err)
	}
	if report.Location != "Tokyo" {
		t.Errorf("payload location = %q", report.Location)
	}
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aonuma/popscope/pkg/selection"
	"github.com/aonuma/popscope/pkg/series"
)

type stubFetcher struct {
	points map[int][]series.Point
}

func (s stubFetcher) FetchRegionSeries(ctx context.Context, code int, name string) (series.RegionSeries, error) {
	return series.RegionSeries{Code: code, Name: name, Points: s.points[code]}, nil
}

func newTestServer(points map[int][]series.Point) *Server {
	cache := selection.New(selection.Config{
		Fetcher: stubFetcher{points: points},
		Catalog: []series.Region{
			{Code: 1, Name: "North"},
			{Code: 2, Name: "South"},
		},
	})
	return New(cache, "", "")
}

func TestHandleRegions(t *testing.T) {
	s := newTestServer(nil)

	rec := httptest.NewRecorder()
	s.handleRegions(rec, httptest.NewRequest("GET", "/api/regions", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp regionsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Regions) != 2 || resp.Regions[0].Name != "North" {
		t.Fatalf("unexpected regions payload: %+v", resp)
	}
	if resp.CatalogError != "" {
		t.Fatalf("unexpected catalog error: %s", resp.CatalogError)
	}
}

func TestHandleRegionsSurfacesCatalogError(t *testing.T) {
	cache := selection.New(selection.Config{
		Fetcher:    stubFetcher{},
		CatalogErr: errors.New("catalog unavailable"),
	})
	s := New(cache, "", "")

	rec := httptest.NewRecorder()
	s.handleRegions(rec, httptest.NewRequest("GET", "/api/regions", nil))

	var resp regionsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Regions) != 0 {
		t.Fatal("expected an empty region list")
	}
	if resp.CatalogError == "" {
		t.Fatal("expected the catalog error to be surfaced")
	}
}

func TestHandleToggleReflectsImmediateState(t *testing.T) {
	s := newTestServer(map[int][]series.Point{1: {{Year: 2000, Value: 5}}})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/toggle", strings.NewReader(`{"code":1,"checked":true}`))
	s.handleToggle(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var status selection.Status
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	// The optimistic flip is visible in the response even though the fetch
	// may not have settled yet.
	if !status.Selected {
		t.Fatalf("expected selected=true in the immediate response, got %+v", status)
	}

	s.Cache.Wait()
	chart := s.Cache.ChartSeries()
	if len(chart) != 1 {
		t.Fatalf("expected the series cached after settling, got %d", len(chart))
	}
}

func TestHandleToggleUnknownCode(t *testing.T) {
	s := newTestServer(nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/toggle", strings.NewReader(`{"code":99,"checked":true}`))
	s.handleToggle(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown code, got %d", rec.Code)
	}
}

func TestHandleToggleBadBody(t *testing.T) {
	s := newTestServer(nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/toggle", strings.NewReader(`not json`))
	s.handleToggle(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleChartEmpty(t *testing.T) {
	s := newTestServer(nil)

	rec := httptest.NewRecorder()
	s.handleChart(rec, httptest.NewRequest("GET", "/api/chart", nil))

	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Fatalf("expected an empty JSON array, got %q", body)
	}
}

func TestBasicAuth(t *testing.T) {
	s := newTestServer(nil)
	s.Username = "user"
	s.Password = "pass"

	h := s.basicAuth(s.handleChart)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest("GET", "/api/chart", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/chart", nil)
	req.SetBasicAuth("user", "pass")
	h(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with credentials, got %d", rec.Code)
	}
}

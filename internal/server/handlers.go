package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/aonuma/popscope/pkg/selection"
	"github.com/aonuma/popscope/pkg/series"
)

type regionsResponse struct {
	Regions      []selection.Status `json:"regions"`
	CatalogError string             `json:"catalog_error,omitempty"`
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	resp := regionsResponse{Regions: s.Cache.Regions()}
	if _, err := s.Cache.Catalog(); err != nil {
		resp.CatalogError = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

type toggleRequest struct {
	Code    int  `json:"code"`
	Checked bool `json:"checked"`
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	region, ok := s.lookupRegion(req.Code)
	if !ok {
		http.Error(w, "unknown region code", http.StatusNotFound)
		return
	}

	// The fetch kicked off by a toggle outlives this request, so it must
	// not run under the request context.
	s.Cache.Toggle(context.Background(), region.Code, req.Checked, region.Name)

	status, _ := s.Cache.RegionStatus(region.Code)
	status.Name = region.Name
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	cs := s.Cache.ChartSeries()
	if cs == nil {
		cs = []series.ChartSeries{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cs)
}

func (s *Server) lookupRegion(code int) (series.Region, bool) {
	catalog, _ := s.Cache.Catalog()
	for _, region := range catalog {
		if region.Code == code {
			return region, true
		}
	}
	return series.Region{}, false
}

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/denisok6893-rgb/building-insights/internal/advisory"
	"github.com/denisok6893-rgb/building-insights/internal/domain"
)

func (s *Server) advisoryFailed(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, advisory.ErrInvalidOutcome) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_outcome"})
		return
	}
	s.logger(r).Warn("advisory call failed", zap.String("op", op), zap.Error(err))
	writeJSON(w, http.StatusBadGateway, map[string]string{"error": "advisory_unavailable"})
}

func (s *Server) handleSuitability(w http.ResponseWriter, r *http.Request) {
	var q domain.SuitabilityQuery
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_json"})
		return
	}
	if strings.TrimSpace(q.BuildingType) == "" || strings.TrimSpace(q.Area) == "" || q.Floors <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "building_type_area_and_floors_required"})
		return
	}
	if s.Advisor == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "advisory_disabled"})
		return
	}

	res, err := s.Advisor.CheckSuitability(r.Context(), q)
	if err != nil {
		s.advisoryFailed(w, r, "suitability", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRecommendation(w http.ResponseWriter, r *http.Request) {
	var q domain.RecommendationQuery
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_json"})
		return
	}
	if strings.TrimSpace(q.BuildingType) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "building_type_required"})
		return
	}
	if s.Advisor == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "advisory_disabled"})
		return
	}

	res, err := s.Advisor.RecommendAreas(r.Context(), q)
	if err != nil {
		s.advisoryFailed(w, r, "recommendation", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleModelMetrics refetches the metrics on every call. With ?cached=1 the
// last fetched value is returned without contacting the service.
func (s *Server) handleModelMetrics(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("cached") == "1" {
		m, err := s.Controller.CachedModelMetrics()
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "metrics_not_loaded"})
			return
		}
		writeJSON(w, http.StatusOK, m)
		return
	}

	m, err := s.Controller.RefreshModelMetrics(r.Context())
	if err != nil {
		s.advisoryFailed(w, r, "model_metrics", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

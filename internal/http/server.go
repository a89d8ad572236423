package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/denisok6893-rgb/building-insights/internal/aggregate"
	"github.com/denisok6893-rgb/building-insights/internal/dashboard"
	"github.com/denisok6893-rgb/building-insights/internal/domain"
	"github.com/denisok6893-rgb/building-insights/internal/filtering"
	"github.com/denisok6893-rgb/building-insights/internal/observability"
)

// Advisor is the remote prediction/recommendation service.
type Advisor interface {
	CheckSuitability(ctx context.Context, q domain.SuitabilityQuery) (domain.Suitability, error)
	RecommendAreas(ctx context.Context, q domain.RecommendationQuery) (domain.Recommendation, error)
}

type Server struct {
	Controller *dashboard.Controller
	Advisor    Advisor
	Snapshots  SnapshotStore
	Metrics    *observability.Metrics
	Log        *zap.Logger

	// DefaultSnapshotKey is advertised by GET /snapshots as the form to restore.
	DefaultSnapshotKey string
}

func NewServer(ctrl *dashboard.Controller, adv Advisor, snaps SnapshotStore, m *observability.Metrics, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		Controller:         ctrl,
		Advisor:            adv,
		Snapshots:          snaps,
		Metrics:            m,
		Log:                log,
		DefaultSnapshotKey: "buildingFilters",
	}
}

func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestID)

	handle := func(path, route string, h http.HandlerFunc, methods ...string) {
		r.Handle(path, s.Metrics.WrapHandler(route, h)).Methods(methods...)
	}

	handle("/health", "health", s.handleHealth, http.MethodGet)
	handle("/views", "views", s.handleViews, http.MethodGet)
	handle("/options", "options", s.handleOptions, http.MethodGet)
	handle("/dataset/reload", "dataset_reload", s.handleReload, http.MethodPost)

	handle("/views/{view}/buildings", "buildings", s.handleBuildings, http.MethodGet)
	handle("/views/{view}/summary", "summary", s.handleSummary, http.MethodGet)
	handle("/views/{view}/filters", "filters_get", s.handleFiltersGet, http.MethodGet)
	handle("/views/{view}/filters", "filters_apply", s.handleFiltersApply, http.MethodPost)
	handle("/views/{view}/filters", "filters_reset", s.handleFiltersReset, http.MethodDelete)

	handle("/snapshots", "snapshots_list", s.handleSnapshotsList, http.MethodGet)
	handle("/snapshots/{key}", "snapshot_get", s.handleSnapshotGet, http.MethodGet)
	handle("/snapshots/{key}", "snapshot_put", s.handleSnapshotPut, http.MethodPut)
	handle("/snapshots/{key}", "snapshot_delete", s.handleSnapshotDelete, http.MethodDelete)

	handle("/advisory/suitability", "advisory_suitability", s.handleSuitability, http.MethodPost)
	handle("/advisory/recommendation", "advisory_recommendation", s.handleRecommendation, http.MethodPost)
	handle("/advisory/metrics", "advisory_metrics", s.handleModelMetrics, http.MethodGet)

	r.Handle("/metrics", s.Metrics.Handler()).Methods(http.MethodGet)
	return r
}

type ctxKey struct{}

// requestID tags every request with an X-Request-ID, generating one when the
// client did not send it.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func (s *Server) logger(r *http.Request) *zap.Logger {
	if id, ok := r.Context().Value(ctxKey{}).(string); ok {
		return s.Log.With(zap.String("request_id", id))
	}
	return s.Log
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Controller.Health())
}

func (s *Server) handleViews(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"views": s.Controller.Engine().Views()})
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	ds := s.Controller.Dataset()
	if ds == nil {
		writeJSON(w, http.StatusOK, aggregate.FilterOptions(nil))
		return
	}
	writeJSON(w, http.StatusOK, ds.Options)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.Controller.Load(r.Context()); err != nil {
		s.logger(r).Error("dataset reload failed", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":  "dataset_load_failed",
			"health": s.Controller.Health(),
		})
		return
	}
	writeJSON(w, http.StatusOK, s.Controller.Health())
}

type BuildingsListResponse struct {
	View   string          `json:"view"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
	Total  int             `json:"total"`
	Items  []domain.Record `json:"items"`
}

func (s *Server) handleBuildings(w http.ResponseWriter, r *http.Request) {
	view := mux.Vars(r)["view"]
	sel, err := s.Controller.Current(view)
	if err != nil {
		writeViewError(w, err)
		return
	}

	// cards need a status; rows without one are left out of the list
	cards := make([]domain.Record, 0, len(sel.Records))
	for _, rec := range sel.Records {
		if strings.TrimSpace(rec.Get(domain.FieldBuildingStatus)) == "" {
			continue
		}
		cards = append(cards, rec)
	}

	limit, offset := parseLimitOffset(r, 20, 0)
	total := len(cards)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	writeJSON(w, http.StatusOK, BuildingsListResponse{
		View:   view,
		Limit:  limit,
		Offset: offset,
		Total:  total,
		Items:  cards[offset:end],
	})
}

type SelectionResponse struct {
	View     string                   `json:"view"`
	Criteria map[string]string        `json:"criteria"`
	Invalid  []filtering.InvalidValue `json:"invalid,omitempty"`
	Summary  aggregate.Summary        `json:"summary"`
}

func selectionResponse(sel dashboard.Selection, invalid []filtering.InvalidValue) SelectionResponse {
	return SelectionResponse{
		View:     sel.View,
		Criteria: sel.Criteria.Form(),
		Invalid:  invalid,
		Summary:  sel.Summary,
	}
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sel, err := s.Controller.Current(mux.Vars(r)["view"])
	if err != nil {
		writeViewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, selectionResponse(sel, nil))
}

func (s *Server) handleFiltersGet(w http.ResponseWriter, r *http.Request) {
	sel, err := s.Controller.Current(mux.Vars(r)["view"])
	if err != nil {
		writeViewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"view": sel.View, "criteria": sel.Criteria.Form()})
}

func (s *Server) handleFiltersApply(w http.ResponseWriter, r *http.Request) {
	view := mux.Vars(r)["view"]
	form, err := decodeForm(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_form"})
		return
	}

	crit, invalid := filtering.FromForm(form)
	if len(invalid) > 0 {
		s.logger(r).Debug("ignored filter values", zap.String("view", view), zap.Any("invalid", invalid))
	}
	sel, err := s.Controller.Apply(view, crit)
	if err != nil {
		writeViewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, selectionResponse(sel, invalid))
}

func (s *Server) handleFiltersReset(w http.ResponseWriter, r *http.Request) {
	view := mux.Vars(r)["view"]
	if err := s.Controller.Reset(view); err != nil {
		writeViewError(w, err)
		return
	}
	sel, err := s.Controller.Current(view)
	if err != nil {
		writeViewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, selectionResponse(sel, nil))
}

// decodeForm reads filter form values from a JSON object body, or from the
// query string and urlencoded body otherwise.
func decodeForm(r *http.Request) (map[string]string, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			return nil, err
		}
		out := make(map[string]string, len(raw))
		for k, v := range raw {
			switch t := v.(type) {
			case nil:
				out[k] = ""
			case string:
				out[k] = t
			case float64:
				out[k] = strconv.FormatFloat(t, 'f', -1, 64)
			case bool:
				out[k] = strconv.FormatBool(t)
			default:
				return nil, errors.New("unsupported value for " + k)
			}
		}
		return out, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(r.Form))
	for k := range r.Form {
		out[k] = r.Form.Get(k)
	}
	return out, nil
}

func writeViewError(w http.ResponseWriter, err error) {
	if errors.Is(err, filtering.ErrUnknownView) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown_view"})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal"})
}

func parseLimitOffset(r *http.Request, defLimit, defOffset int) (int, int) {
	q := r.URL.Query()

	limit := defLimit
	if v := q.Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit <= 0 {
		limit = defLimit
	}
	// safety cap
	if limit > 200 {
		limit = 200
	}

	offset := defOffset
	if v := q.Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = defOffset
	}

	return limit, offset
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

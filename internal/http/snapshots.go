package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/denisok6893-rgb/building-insights/internal/domain"
	"github.com/denisok6893-rgb/building-insights/internal/filtering"
)

// SnapshotStore persists filter form snapshots. *storage.SQLiteStore
// satisfies it.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap domain.FilterSnapshot) (domain.FilterSnapshot, error)
	GetSnapshot(ctx context.Context, key string) (domain.FilterSnapshot, bool, error)
	DeleteSnapshot(ctx context.Context, key string) (bool, error)
	ListSnapshotKeys(ctx context.Context) ([]string, error)
}

func (s *Server) snapshotsEnabled(w http.ResponseWriter) bool {
	if s.Snapshots == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "snapshots_disabled"})
		return false
	}
	return true
}

func (s *Server) handleSnapshotsList(w http.ResponseWriter, r *http.Request) {
	if !s.snapshotsEnabled(w) {
		return
	}
	keys, err := s.Snapshots.ListSnapshotKeys(r.Context())
	if err != nil {
		s.logger(r).Error("list snapshots", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage_error"})
		return
	}
	if keys == nil {
		keys = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"keys": keys, "default": s.DefaultSnapshotKey})
}

func (s *Server) handleSnapshotGet(w http.ResponseWriter, r *http.Request) {
	if !s.snapshotsEnabled(w) {
		return
	}
	key := mux.Vars(r)["key"]
	snap, ok, err := s.Snapshots.GetSnapshot(r.Context(), key)
	if err != nil {
		s.logger(r).Error("get snapshot", zap.String("key", key), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage_error"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleSnapshotPut stores the form exactly as submitted, so a companion
// view can restore the raw inputs. Unknown form fields are rejected.
func (s *Server) handleSnapshotPut(w http.ResponseWriter, r *http.Request) {
	if !s.snapshotsEnabled(w) {
		return
	}
	key := mux.Vars(r)["key"]

	var req struct {
		Values map[string]string `json:"values"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_json"})
		return
	}
	for name := range req.Values {
		if _, ok := filtering.Lookup(name); !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown_field", "field": name})
			return
		}
	}

	snap, err := s.Snapshots.SaveSnapshot(r.Context(), domain.FilterSnapshot{Key: key, Values: req.Values})
	if err != nil {
		s.logger(r).Error("save snapshot", zap.String("key", key), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage_error"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSnapshotDelete(w http.ResponseWriter, r *http.Request) {
	if !s.snapshotsEnabled(w) {
		return
	}
	key := mux.Vars(r)["key"]
	deleted, err := s.Snapshots.DeleteSnapshot(r.Context(), key)
	if err != nil {
		s.logger(r).Error("delete snapshot", zap.String("key", key), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage_error"})
		return
	}
	if !deleted {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/campaignlens/campaignlens/internal/insights"
	"github.com/campaignlens/campaignlens/internal/metrics"
	"github.com/campaignlens/campaignlens/internal/query"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	d := s.dataset.Load()
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"rows":   len(d.Records),
	})
}

type datasetSummary struct {
	Name          string    `json:"name"`
	Version       string    `json:"version"`
	RowCount      int64     `json:"row_count"`
	Checksum      string    `json:"checksum"`
	SourceColumns []string  `json:"source_columns"`
	CreatedAt     time.Time `json:"created_at"`
	LoadedAt      time.Time `json:"loaded_at"`
}

func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	d := s.dataset.Load()
	writeJSON(w, http.StatusOK, datasetSummary{
		Name:          d.Manifest.Dataset.Name,
		Version:       d.Manifest.Dataset.Version,
		RowCount:      d.Manifest.Dataset.RowCount,
		Checksum:      d.Manifest.Dataset.Checksum,
		SourceColumns: d.Manifest.Source.Columns,
		CreatedAt:     d.Manifest.CreatedAt,
		LoadedAt:      d.LoadedAt,
	})
}

func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	d := s.dataset.Load()
	writeJSON(w, http.StatusOK, query.FilterOptions(d.Records))
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var f query.Filter
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rows := s.dataset.Load().Filter(f)
	sess := s.sessions.Create(f, rows)

	writeJSON(w, http.StatusCreated, map[string]any{
		"session_id": sess.ID,
		"row_count":  len(rows),
		"expires_at": sess.ExpiresAt.UTC(),
	})
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found or expired")
		return
	}

	switch r.PathValue("view") {
	case "overview":
		writeJSON(w, http.StatusOK, query.Overview(sess.Rows))
	case "channels":
		writeJSON(w, http.StatusOK, query.Channels(sess.Rows))
	case "audiences":
		writeJSON(w, http.StatusOK, query.Audiences(sess.Rows))
	case "geo":
		writeJSON(w, http.StatusOK, query.Geo(sess.Rows))
	default:
		writeError(w, http.StatusNotFound, "unknown view")
	}
}

type insightsRequest struct {
	View string `json:"view"`
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found or expired")
		return
	}

	var req insightsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	facts, err := buildFacts(req.View, sess.Rows)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.narrative.Generate(r.Context(), insights.Request{View: req.View, Facts: facts})
	if err != nil {
		s.log.Error("narrative generation failed", "view", req.View, "error", err)
		result = insights.Result{Status: insights.StatusUnavailable, Text: insights.ErrorMessage}
	}

	if m := metrics.Get(); m != nil {
		m.IncNarrativeRequests(string(result.Status))
	}
	writeJSON(w, http.StatusOK, result)
}

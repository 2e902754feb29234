// ABOUTME: HTTP handlers for digests, questions, and goal analysis.
// ABOUTME: GET /api/digests/{type}?regenerate=true bypasses the digest cache.
package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/harperreed/ringhealth/internal/narrative"
)

type askRequest struct {
	Question string `json:"question" validate:"required"`
}

func (s *Server) handleDigest(w http.ResponseWriter, r *http.Request) {
	t, err := narrative.ParseDigestType(chi.URLParam(r, "type"))
	if err != nil {
		writeError(w, r, &apiError{status: http.StatusBadRequest, msg: err.Error()})
		return
	}

	if date := r.URL.Query().Get("date"); date != "" {
		d, err := s.narrative.Get(t, date)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, narrative.DigestResult{Digest: d, Cached: true})
		return
	}

	regenerate, _ := strconv.ParseBool(r.URL.Query().Get("regenerate"))
	res, err := s.narrative.Generate(r.Context(), t, regenerate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDigestHistory(w http.ResponseWriter, r *http.Request) {
	digests, err := s.narrative.History()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if digests == nil {
		digests = []*narrative.Digest{}
	}
	writeJSON(w, http.StatusOK, digests)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	answer, err := s.narrative.Ask(r.Context(), req.Question)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

func (s *Server) handleAnalyzeGoal(w http.ResponseWriter, r *http.Request) {
	report, err := s.narrative.AnalyzeGoal(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

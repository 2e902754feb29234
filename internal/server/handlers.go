// ABOUTME: HTTP handlers for sync control and synced ring records.
// ABOUTME: POST /api/sync runs a full sync; records are served as Oura returned them.
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/harperreed/ringhealth/internal/models"
	ringsync "github.com/harperreed/ringhealth/internal/sync"
)

const defaultLimit = 20

type syncResponse struct {
	*ringsync.Summary
	Failed  map[models.StreamKind]string `json:"failed,omitempty"`
	Results []*ringsync.StreamResult     `json:"streams"`
}

func newSyncResponse(s *ringsync.Summary) syncResponse {
	resp := syncResponse{Summary: s}
	if errs := s.Errors(); len(errs) > 0 {
		resp.Failed = errs
	}
	for _, kind := range s.Order() {
		if r, ok := s.Streams[kind]; ok {
			resp.Results = append(resp.Results, r)
		}
	}
	return resp
}

func (s *Server) handleSyncRun(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", s.daysBack)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// A sync runs to completion even if the client goes away.
	summary, err := s.syncer.PerformFullSync(context.WithoutCancel(r.Context()), days)
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if !summary.Success {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, newSyncResponse(summary))
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.syncer.Status(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleCheckpoints(w http.ResponseWriter, r *http.Request) {
	checkpoints, err := s.repo.ListCheckpoints(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	flags, err := s.repo.ListRetryFlags(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"checkpoints": checkpoints, "retry_flags": flags})
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	kind, err := models.ParseStream(chi.URLParam(r, "stream"))
	if err != nil {
		writeError(w, r, &apiError{status: http.StatusNotFound, msg: err.Error()})
		return
	}
	limit, err := queryInt(r, "limit", defaultLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	records, err := s.repo.RecentPayloads(r.Context(), kind, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if records == nil {
		records = []json.RawMessage{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"stream": kind, "count": len(records), "records": records})
}

func (s *Server) handleWorkout(w http.ResponseWriter, r *http.Request) {
	workout, err := s.repo.GetWorkout(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, workoutJSON(workout))
}

type workoutView struct {
	ID               string   `json:"id"`
	Day              string   `json:"day"`
	Activity         string   `json:"activity"`
	StartDatetime    *string  `json:"start_datetime,omitempty"`
	EndDatetime      *string  `json:"end_datetime,omitempty"`
	Calories         *float64 `json:"calories,omitempty"`
	Intensity        *string  `json:"intensity,omitempty"`
	AverageHeartRate *float64 `json:"average_heart_rate,omitempty"`
	MaxHeartRate     *float64 `json:"max_heart_rate,omitempty"`
	Distance         *float64 `json:"distance,omitempty"`
	Source           *string  `json:"source,omitempty"`
	Label            *string  `json:"label,omitempty"`
}

func workoutJSON(w *models.Workout) workoutView {
	return workoutView{
		ID:               w.ID,
		Day:              w.Day,
		Activity:         w.Activity,
		StartDatetime:    w.StartDatetime,
		EndDatetime:      w.EndDatetime,
		Calories:         w.Calories,
		Intensity:        w.Intensity,
		AverageHeartRate: w.AverageHeartRate,
		MaxHeartRate:     w.MaxHeartRate,
		Distance:         w.Distance,
		Source:           w.Source,
		Label:            w.Label,
	}
}

// ABOUTME: HTTP API over synced ring data, sync control, the journal, and narratives.
// ABOUTME: Routes are built with chi; responses are JSON; /metrics exposes Prometheus counters.
package server

import (
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harperreed/ringhealth/internal/logging"
	"github.com/harperreed/ringhealth/internal/narrative"
	"github.com/harperreed/ringhealth/internal/oura"
	"github.com/harperreed/ringhealth/internal/storage"
	ringsync "github.com/harperreed/ringhealth/internal/sync"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Server serves the HTTP API.
type Server struct {
	repo      storage.Repository
	syncer    ringsync.Runner
	narrative *narrative.Service
	daysBack  int
}

// Option configures a Server.
type Option func(*Server)

// WithSyncer enables the sync endpoints. daysBack is used when a request omits it.
func WithSyncer(s ringsync.Runner, daysBack int) Option {
	return func(srv *Server) {
		srv.syncer = s
		srv.daysBack = daysBack
	}
}

// WithNarrative enables the digest, ask, and goal analysis endpoints.
func WithNarrative(n *narrative.Service) Option {
	return func(srv *Server) { srv.narrative = n }
}

// New creates an API server over repo.
func New(repo storage.Repository, opts ...Option) (*Server, error) {
	if repo == nil {
		return nil, errors.New("server: repository is required")
	}
	s := &Server{repo: repo, daysBack: 60}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(correlationID)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/sync", func(r chi.Router) {
			r.Use(s.requireSyncer)
			r.Get("/", s.handleSyncStatus)
			r.Post("/", s.handleSyncRun)
		})
		r.Get("/checkpoints", s.handleCheckpoints)

		r.Get("/records/{stream}", s.handleRecords)
		r.Get("/workouts/{id}", s.handleWorkout)

		r.Route("/notes", func(r chi.Router) {
			r.Get("/", s.handleListNotes)
			r.Post("/", s.handleCreateNote)
			r.Delete("/{id}", s.handleDeleteNote)
		})
		r.Route("/goals", func(r chi.Router) {
			r.Get("/", s.handleListGoals)
			r.Post("/", s.handleCreateGoal)
			r.Get("/{id}", s.handleGetGoal)
			r.Patch("/{id}", s.handleUpdateGoal)
			r.Delete("/{id}", s.handleDeleteGoal)
			r.With(s.requireNarrative).Get("/{id}/analysis", s.handleAnalyzeGoal)
		})
		r.Route("/meals", func(r chi.Router) {
			r.Get("/", s.handleListMeals)
			r.Post("/", s.handleCreateMeal)
			r.Delete("/{id}", s.handleDeleteMeal)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireNarrative)
			r.Get("/digests", s.handleDigestHistory)
			r.Get("/digests/{type}", s.handleDigest)
			r.Post("/ask", s.handleAsk)
		})
	})

	return r
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// decodeBody reads a JSON body into v and validates it.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &apiError{status: http.StatusBadRequest, msg: "invalid JSON body: " + err.Error()}
	}
	if err := getValidator().Struct(v); err != nil {
		return &apiError{status: http.StatusBadRequest, msg: err.Error()}
	}
	return nil
}

// apiError carries an HTTP status with a client-facing message.
type apiError struct {
	status int
	msg    string
}

func (e *apiError) Error() string { return e.msg }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn().Err(err).Msg("failed to write response")
	}
}

// writeError maps err to a status code and writes a JSON error body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var apiErr *apiError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.status
	case storage.IsNotFound(err), errors.Is(err, narrative.ErrDigestNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ringsync.ErrSyncInProgress):
		status = http.StatusConflict
	case errors.Is(err, ringsync.ErrNegativeDays):
		status = http.StatusBadRequest
	case oura.IsAuth(err):
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, &apiError{status: http.StatusBadRequest, msg: "invalid " + name + ": " + v}
	}
	return n, nil
}

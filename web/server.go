// ABOUTME: JSON API server for agency records, invoices, and Harvest sync
// ABOUTME: gorilla/mux routes with request logging, optional bearer auth, and shared sync runs
package web

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/harperreed/agencycrm/billing"
	"github.com/harperreed/agencycrm/client"
	"github.com/harperreed/agencycrm/db"
	"github.com/harperreed/agencycrm/models"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

type Server struct {
	records    *db.RecordRepository
	reconciler *billing.Reconciler
	validate   *validator.Validate
	syncs      singleflight.Group
	token      string
	log        zerolog.Logger
}

// NewServer wires the API over database. An empty token disables auth.
func NewServer(database *sql.DB, reconciler *billing.Reconciler, token string, log zerolog.Logger) *Server {
	return &Server{
		records:    db.NewRecordRepository(database),
		reconciler: reconciler,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		token:      token,
		log:        log.With().Str("component", "web").Logger(),
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestID, s.logRequests, s.authenticate)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	// Invoice and Harvest routes must precede the generic entity routes.
	r.HandleFunc("/invoices", s.handleInvoices).Methods(http.MethodGet)
	r.HandleFunc("/invoices/by-client/{id:[0-9]+}", s.handleClientInvoices).Methods(http.MethodGet)
	r.HandleFunc("/invoices/unmatched-clients", s.handleUnmatched).Methods(http.MethodGet)
	r.HandleFunc("/invoices/link-harvest-client", s.handleLink).Methods(http.MethodPost)
	r.HandleFunc("/harvest/status", s.handleHarvestStatus).Methods(http.MethodGet)
	r.HandleFunc("/harvest/sync", s.handleHarvestSync).Methods(http.MethodPost)

	r.HandleFunc("/{entity}", s.handleList).Methods(http.MethodGet)
	r.HandleFunc("/{entity}", s.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/{entity}/{id:[0-9]+}", s.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/{entity}/{id:[0-9]+}", s.handleUpdate).Methods(http.MethodPatch)
	r.HandleFunc("/{entity}/{id:[0-9]+}", s.handleDelete).Methods(http.MethodDelete)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// Start serves on addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("starting API server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log.Info().Msg("shutting down API server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	entity, ok := entityParam(w, r)
	if !ok {
		return
	}
	rows, err := s.records.List(r.Context(), entity)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	entity, ok := entityParam(w, r)
	if !ok {
		return
	}
	row, err := s.records.Get(r.Context(), entity, idParam(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	entity, ok := entityParam(w, r)
	if !ok {
		return
	}
	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	row, err := s.records.Create(r.Context(), entity, fields)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	entity, ok := entityParam(w, r)
	if !ok {
		return
	}
	var body models.FieldUpdate
	if !s.decode(w, r, &body) {
		return
	}
	id := idParam(r)
	if err := s.records.UpdateField(r.Context(), entity, id, body.Field, body.Value); err != nil {
		s.fail(w, r, err)
		return
	}
	row, err := s.records.Get(r.Context(), entity, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	entity, ok := entityParam(w, r)
	if !ok {
		return
	}
	if err := s.records.Delete(r.Context(), entity, idParam(r)); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := s.reconciler.Invoices(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, invoices)
}

func (s *Server) handleClientInvoices(w http.ResponseWriter, r *http.Request) {
	view, err := s.reconciler.ClientInvoices(r.Context(), idParam(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleUnmatched(w http.ResponseWriter, r *http.Request) {
	unmatched, err := s.reconciler.Unmatched(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, unmatched)
}

func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	var body client.LinkRequest
	if !s.decode(w, r, &body) {
		return
	}
	n, err := s.reconciler.Link(r.Context(), body.HarvestClientID, body.ClientID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, client.LinkResponse{Success: true, InvoicesUpdated: n})
}

func (s *Server) handleHarvestStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.reconciler.Status(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// runSync runs one Harvest sync at a time. Callers arriving mid-run get that
// run's result. The run outlives a cancelled caller.
func (s *Server) runSync(ctx context.Context) (models.SyncResult, error) {
	detached := context.WithoutCancel(ctx)
	v, err, shared := s.syncs.Do("harvest", func() (any, error) {
		return s.reconciler.Sync(detached)
	})
	if err != nil {
		return models.SyncResult{}, err
	}
	if shared {
		zerolog.Ctx(ctx).Debug().Msg("joined in-flight harvest sync")
	}
	return v.(models.SyncResult), nil
}

func (s *Server) handleHarvestSync(w http.ResponseWriter, r *http.Request) {
	result, err := s.runSync(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	return fmt.Sprintf("invalid request: %s failed %s", fe.Field(), fe.Tag())
}

// fail maps domain errors to status codes. Messages pass through verbatim.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var herr *billing.HarvestError
	switch {
	case errors.Is(err, db.ErrRecordNotFound), errors.Is(err, billing.ErrClientNotFound):
		status = http.StatusNotFound
	case errors.Is(err, db.ErrUnknownField), errors.Is(err, db.ErrInvalidValue):
		status = http.StatusBadRequest
	case errors.Is(err, db.ErrReadOnly):
		status = http.StatusMethodNotAllowed
	case errors.Is(err, billing.ErrNotConfigured):
		status = http.StatusServiceUnavailable
	case errors.As(err, &herr):
		status = http.StatusBadGateway
	}

	log := zerolog.Ctx(r.Context())
	if status >= 500 {
		log.Error().Err(err).Int("status", status).Msg("request failed")
	} else {
		log.Debug().Err(err).Int("status", status).Msg("request rejected")
	}
	writeError(w, status, err.Error())
}

func entityParam(w http.ResponseWriter, r *http.Request) (models.EntityType, bool) {
	entity, err := models.ParseEntityType(mux.Vars(r)["entity"])
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return "", false
	}
	return entity, true
}

// idParam reads the {id} route variable. The route pattern guarantees digits.
func idParam(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		log := s.log.With().Str("request_id", id).Logger()
		next.ServeHTTP(w, r.WithContext(log.WithContext(r.Context())))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		zerolog.Ctx(r.Context()).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" && r.URL.Path != "/healthz" && r.Header.Get("Authorization") != "Bearer "+s.token {
			writeError(w, http.StatusUnauthorized, "missing or invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

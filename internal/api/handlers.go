package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"smartcollections/internal/catalog"
	"smartcollections/internal/expr"
	"smartcollections/internal/runner"
)

const Version = "0.1.0"

type RunnerInterface interface {
	Run(ctx context.Context) (*runner.RunReport, error)
	IsRunning() bool
	LastReport() *runner.RunReport
}

type CollectionLister interface {
	ListManagedCollections(ctx context.Context) ([]catalog.Collection, error)
}

type Handler struct {
	ctx         context.Context
	runner      RunnerInterface
	collections CollectionLister
	logger      zerolog.Logger
}

// NewHandler returns the API handlers. Runs started over HTTP use ctx, so
// cancelling it stops them at the next definition boundary.
func NewHandler(ctx context.Context, r RunnerInterface, collections CollectionLister, logger zerolog.Logger) *Handler {
	return &Handler{
		ctx:         ctx,
		runner:      r,
		collections: collections,
		logger:      logger,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Version: Version,
	}
	if h.runner != nil {
		resp.Running = h.runner.IsRunning()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) StartRun(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		writeError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Runner not initialized")
		return
	}

	if h.runner.IsRunning() {
		writeJSON(w, http.StatusOK, RunResponse{
			Status:  "in_progress",
			Message: "Run already in progress",
		})
		return
	}

	go func() {
		if _, err := h.runner.Run(h.ctx); err != nil {
			if errors.Is(err, runner.ErrRunInProgress) {
				h.logger.Debug().Msg("run request raced an active run")
				return
			}
			h.logger.Error().Err(err).Msg("run failed")
		}
	}()

	writeJSON(w, http.StatusAccepted, RunResponse{
		Status:  "started",
		Message: "Collection run started",
	})
}

func (h *Handler) LatestRun(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		writeError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Runner not initialized")
		return
	}

	rep := h.runner.LastReport()
	if rep == nil {
		writeError(w, http.StatusNotFound, "RUN_NOT_FOUND", "No run has finished yet")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *Handler) ValidateExpression(w http.ResponseWriter, r *http.Request) {
	var req ValidateExpressionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body")
		return
	}

	node, errs := expr.Parse(req.Expression)
	if len(errs) > 0 {
		writeJSON(w, http.StatusOK, ValidateExpressionResponse{Valid: false, Errors: errs})
		return
	}

	resp := ValidateExpressionResponse{
		Valid:     true,
		Canonical: node.String(),
	}
	for _, c := range expr.Criteria(node) {
		resp.Criteria = append(resp.Criteria, c.Kind.String())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ListCollections(w http.ResponseWriter, r *http.Request) {
	if h.collections == nil {
		writeError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Store not initialized")
		return
	}

	collections, err := h.collections.ListManagedCollections(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list collections")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list collections")
		return
	}
	if collections == nil {
		collections = []catalog.Collection{}
	}

	writeJSON(w, http.StatusOK, CollectionsResponse{Collections: collections})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

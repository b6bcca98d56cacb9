package handlers

import (
	"errors"
	"net/http"

	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/internal/store"
	"github.com/wonny/limitup/pkg/logger"
)

// LearningHandler serves factor weights and learning sessions
type LearningHandler struct {
	store  store.Store
	logger *logger.Logger
}

// NewLearningHandler creates a learning handler
func NewLearningHandler(st store.Store, log *logger.Logger) *LearningHandler {
	return &LearningHandler{
		store:  st,
		logger: log,
	}
}

// GetFactors returns the current factor weights
// GET /api/factors
func (h *LearningHandler) GetFactors(w http.ResponseWriter, r *http.Request) {
	weights, err := h.store.GetFactorWeights(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to get factor weights")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve factor weights")
		return
	}
	if weights == nil {
		weights = []contracts.FactorWeight{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(weights),
		"factors": weights,
	})
}

// GetLatestSession returns the newest learning session
// GET /api/learning/latest?kind=&status=
func (h *LearningHandler) GetLatestSession(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	status := contracts.SessionStatus(r.URL.Query().Get("status"))
	switch status {
	case "", contracts.SessionCompleted, contracts.SessionFailed, contracts.SessionSkipped:
	default:
		respondError(w, http.StatusBadRequest, "Unknown session status: "+string(status))
		return
	}

	session, err := h.store.LastLearningSession(r.Context(), kind, status)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "No learning session recorded")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get learning session")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve learning session")
		return
	}

	respondJSON(w, http.StatusOK, session)
}

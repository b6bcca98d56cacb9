package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/internal/performance"
	"github.com/wonny/limitup/pkg/logger"
)

// defaultReportDays is the report window when no range is given
const defaultReportDays = 30

// Reporter builds performance reports
type Reporter interface {
	Report(ctx context.Context, r contracts.DateRange) (*performance.Report, error)
}

// PerformanceHandler serves performance reports
type PerformanceHandler struct {
	reporter Reporter
	loc      *time.Location
	logger   *logger.Logger
	now      func() time.Time
}

// NewPerformanceHandler creates a performance handler
func NewPerformanceHandler(reporter Reporter, loc *time.Location, log *logger.Logger) *PerformanceHandler {
	return &PerformanceHandler{
		reporter: reporter,
		loc:      loc,
		logger:   log,
		now:      time.Now,
	}
}

// WithClock overrides the clock used for the default range
func (h *PerformanceHandler) WithClock(now func() time.Time) *PerformanceHandler {
	h.now = now
	return h
}

// Get returns the performance report for a trade-date range
// GET /api/performance?from=&to=   (default: last 30 days)
func (h *PerformanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	from, err := queryDate(r, "from", h.loc)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := queryDate(r, "to", h.loc)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if to.IsZero() {
		now := h.now().In(h.loc)
		to = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, h.loc)
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -defaultReportDays)
	}
	if from.After(to) {
		respondError(w, http.StatusBadRequest, "'from' must not be after 'to'")
		return
	}

	rep, err := h.reporter.Report(ctx, contracts.DateRange{From: from, To: to})
	if err != nil {
		h.logger.WithError(err).Error("Failed to build performance report")
		respondError(w, http.StatusInternalServerError, "Failed to build performance report")
		return
	}

	respondJSON(w, http.StatusOK, rep)
}

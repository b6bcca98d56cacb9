package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/internal/store"
	"github.com/wonny/limitup/pkg/logger"
)

const maxListLimit = 500

// RecommendationHandler serves persisted recommendations
// ⭐ SSOT: 추천 조회 API는 이 핸들러에서만
type RecommendationHandler struct {
	store  store.Store
	loc    *time.Location
	logger *logger.Logger
}

// NewRecommendationHandler creates a recommendation handler
func NewRecommendationHandler(st store.Store, loc *time.Location, log *logger.Logger) *RecommendationHandler {
	return &RecommendationHandler{
		store:  st,
		loc:    loc,
		logger: log,
	}
}

// RecommendationList is the list response
type RecommendationList struct {
	Count           int                         `json:"count"`
	Recommendations []*contracts.Recommendation `json:"recommendations"`
}

// List returns recommendations
// GET /api/recommendations?date=&t1=&from=&to=&symbol=&status=scored,evaluated&limit=
func (h *RecommendationHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var f store.RecommendationFilter
	var err error
	if f.TradeDate, err = queryDate(r, "date", h.loc); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if f.T1Date, err = queryDate(r, "t1", h.loc); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if f.Range.From, err = queryDate(r, "from", h.loc); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if f.Range.To, err = queryDate(r, "to", h.loc); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if f.Limit, err = queryInt(r, "limit", 100); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if f.Limit == 0 || f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	f.Symbol = strings.ToUpper(r.URL.Query().Get("symbol"))

	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			status := contracts.RecommendationStatus(strings.TrimSpace(s))
			switch status {
			case contracts.StatusScored, contracts.StatusEvaluated, contracts.StatusBlocked, contracts.StatusNoTrade:
				f.Statuses = append(f.Statuses, status)
			default:
				respondError(w, http.StatusBadRequest, "Unknown status: "+string(status))
				return
			}
		}
	}

	recs, err := h.store.ListRecommendations(ctx, f)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list recommendations")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve recommendations")
		return
	}
	if recs == nil {
		recs = []*contracts.Recommendation{}
	}

	respondJSON(w, http.StatusOK, RecommendationList{Count: len(recs), Recommendations: recs})
}

// Get returns one recommendation with its recorded trades
// GET /api/recommendations/{id}
func (h *RecommendationHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	rec, err := h.store.GetRecommendation(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Recommendation not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("id", id).Error("Failed to get recommendation")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve recommendation")
		return
	}

	trades, err := h.store.ListTradesFor(ctx, id)
	if err != nil {
		h.logger.WithError(err).WithField("id", id).Error("Failed to list trades")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve trades")
		return
	}
	if trades == nil {
		trades = []*contracts.Trade{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"recommendation": rec,
		"trades":         trades,
	})
}

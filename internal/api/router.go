package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/limitup/internal/api/handlers"
	"github.com/wonny/limitup/pkg/database"
	"github.com/wonny/limitup/pkg/logger"
)

// HealthChecker checks a dependency for /health
type HealthChecker interface {
	Health(ctx context.Context) database.Health
}

// Handlers groups everything the router mounts.
// Store, Feed and Metrics are optional.
type Handlers struct {
	Store           HealthChecker
	Recommendations *handlers.RecommendationHandler
	Performance     *handlers.PerformanceHandler
	Learning        *handlers.LearningHandler
	Scheduler       *handlers.SchedulerHandler
	Feed            http.HandlerFunc // websocket push feed
	Metrics         http.Handler     // prometheus exposition
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(h Handlers, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler(h.Store)).Methods("GET")

	if h.Metrics != nil {
		r.Handle("/metrics", h.Metrics).Methods("GET")
	}
	if h.Feed != nil {
		r.HandleFunc("/ws", h.Feed).Methods("GET")
	}

	// API v1
	api := r.PathPrefix("/api").Subrouter()

	// Recommendation endpoints
	api.HandleFunc("/recommendations", h.Recommendations.List).Methods("GET")
	api.HandleFunc("/recommendations/{id}", h.Recommendations.Get).Methods("GET")

	// Performance & learning
	api.HandleFunc("/performance", h.Performance.Get).Methods("GET")
	api.HandleFunc("/factors", h.Learning.GetFactors).Methods("GET")
	api.HandleFunc("/learning/latest", h.Learning.GetLatestSession).Methods("GET")

	// Scheduler
	api.HandleFunc("/scheduler/jobs", h.Scheduler.ListJobs).Methods("GET")
	api.HandleFunc("/scheduler/jobs/{name}/run", h.Scheduler.RunJob).Methods("POST")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status; 503 when the store is unreachable
func healthCheckHandler(st HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{
			"status":  "ok",
			"service": "limitup-api",
		}
		code := http.StatusOK
		if st != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			h := st.Health(ctx)
			cancel()
			body["store"] = h
			if !h.Healthy {
				body["status"] = "degraded"
				code = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(body)
	}
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Call next handler
			next.ServeHTTP(w, r)

			// Log request
			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/limitup/internal/scheduler"
	"github.com/wonny/limitup/pkg/logger"
)

// JobController is the part of the scheduler exposed over HTTP
type JobController interface {
	List() []scheduler.JobInfo
	GetJobStats() map[string]scheduler.JobStats
	RunJob(jobName string) error
}

// SchedulerHandler serves scheduler status and manual triggers
type SchedulerHandler struct {
	jobs   JobController
	logger *logger.Logger
}

// NewSchedulerHandler creates a scheduler handler; jobs may be nil when
// the process runs without a scheduler
func NewSchedulerHandler(jobs JobController, log *logger.Logger) *SchedulerHandler {
	return &SchedulerHandler{
		jobs:   jobs,
		logger: log,
	}
}

// JobStatus combines registration info with run statistics
type JobStatus struct {
	scheduler.JobInfo
	Stats *scheduler.JobStats `json:"stats,omitempty"`
}

// ListJobs returns registered jobs with their statistics
// GET /api/scheduler/jobs
func (h *SchedulerHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		respondError(w, http.StatusServiceUnavailable, "Scheduler is not running in this process")
		return
	}

	stats := h.jobs.GetJobStats()
	infos := h.jobs.List()
	out := make([]JobStatus, 0, len(infos))
	for _, info := range infos {
		status := JobStatus{JobInfo: info}
		if s, ok := stats[info.Name]; ok {
			status.Stats = &s
		}
		out = append(out, status)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(out),
		"jobs":  out,
	})
}

// RunJob triggers a job outside of its schedule
// POST /api/scheduler/jobs/{name}/run
func (h *SchedulerHandler) RunJob(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		respondError(w, http.StatusServiceUnavailable, "Scheduler is not running in this process")
		return
	}

	name := mux.Vars(r)["name"]
	if err := h.jobs.RunJob(name); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	h.logger.WithField("job", name).Info("Job triggered via API")
	respondJSON(w, http.StatusAccepted, map[string]string{
		"status": "triggered",
		"job":    name,
	})
}

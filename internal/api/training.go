package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tutu-network/tutu-gym/internal/domain"
)

// Response messages of the training endpoints. Clients match on them.
const (
	MsgTrainingStarted = "Training started."
	MsgAlreadyRunning  = "Training is already in progress."
	MsgTrainingStopped = "Training stopped."
	StatusInProgress   = "Training in progress."
	StatusIdle         = "No active training process."
)

// maxBodyBytes bounds a POST /train override document.
const maxBodyBytes = 64 << 10

// TrainResponse is the body of POST /train and POST /train/stop.
type TrainResponse struct {
	Message string `json:"message"`
	JobID   string `json:"job_id,omitempty"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Status    string     `json:"status"`
	JobID     string     `json:"job_id,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
}

// JobsResponse is the body of GET /jobs.
type JobsResponse struct {
	Jobs []domain.JobRecord `json:"jobs"`
}

// --- POST /train ---

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	cfg := s.defaults
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	err := dec.Decode(&cfg)
	if err == nil {
		// exactly one JSON object
		if dec.Decode(&struct{}{}) != io.EOF {
			err = errors.New("unexpected data after JSON object")
		}
	} else if errors.Is(err, io.EOF) {
		err = nil
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid training config: %v", err))
		return
	}

	job, err := s.jobs.Start(cfg)
	switch {
	case errors.Is(err, domain.ErrAlreadyRunning):
		writeJSON(w, http.StatusBadRequest, TrainResponse{Message: MsgAlreadyRunning})
		return
	case errors.Is(err, domain.ErrInvalidConfig):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.logger.Error("start training", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, TrainResponse{Message: MsgTrainingStarted, JobID: job.ID})
}

// --- POST /train/stop ---

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Stop()
	if errors.Is(err, domain.ErrNoActiveJob) {
		writeJSON(w, http.StatusNotFound, TrainResponse{Message: StatusIdle})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, TrainResponse{Message: MsgTrainingStopped, JobID: job.ID})
}

// --- GET /status ---

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.jobs.Status()
	if !st.Running() {
		writeJSON(w, http.StatusOK, StatusResponse{Status: StatusIdle})
		return
	}
	started := st.Job.StartedAt
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:    StatusInProgress,
		JobID:     st.Job.ID,
		StartedAt: &started,
	})
}

// --- GET /jobs ---

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", v))
			return
		}
		limit = n
	}

	list, err := s.jobs.List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []domain.JobRecord{}
	}
	writeJSON(w, http.StatusOK, JobsResponse{Jobs: list})
}

// --- GET /jobs/{id} ---

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Get(chi.URLParam(r, "id"))
	if errors.Is(err, domain.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

package engine

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/clinforge-ai/platform/pkg/common/logger"
	"github.com/clinforge-ai/platform/pkg/study"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/studies/{study}/runs", h.handleRunStudy).Methods(http.MethodPost)
	router.HandleFunc("/studies/{study}/runs", h.handleListRuns).Methods(http.MethodGet)
	router.HandleFunc("/studies/{study}/status", h.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/runs/{id}", h.handleGetRun).Methods(http.MethodGet)
	router.HandleFunc("/runs/{id}/report", h.handleReport).Methods(http.MethodGet)
	router.HandleFunc("/runs/{id}/shift", h.handleShift).Methods(http.MethodGet)
}

func (h *HTTPHandler) handleRunStudy(w http.ResponseWriter, r *http.Request) {
	studyCode := mux.Vars(r)["study"]
	actor := r.Header.Get("X-Actor")
	if actor == "" {
		actor = "api"
	}

	run, err := h.service.RunStudy(r.Context(), studyCode, actor)
	if err != nil {
		if errors.Is(err, study.ErrNotFound) {
			http.Error(w, "study not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("derivation run failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(run)
}

func (h *HTTPHandler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	studyCode := mux.Vars(r)["study"]
	runs, err := h.service.ListRuns(r.Context(), studyCode, 20)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list runs")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(runs)
}

func (h *HTTPHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	studyCode := mux.Vars(r)["study"]
	status, found, err := h.service.Status(r.Context(), studyCode)
	if err != nil {
		logger.Log.WithError(err).Error("failed to read run status")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "no runs recorded for study", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (h *HTTPHandler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid run id", http.StatusBadRequest)
		return
	}
	run, err := h.service.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrRunNotFound) {
			http.Error(w, "run not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to fetch run")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(run)
}

// handleReport serves the validation report as JSON, flat text, or CSV
// depending on the format query parameter.
func (h *HTTPHandler) handleReport(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid run id", http.StatusBadRequest)
		return
	}
	report, err := h.service.GetReport(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrRunNotFound) {
			http.Error(w, "run not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to fetch report")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	switch r.URL.Query().Get("format") {
	case "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := report.WriteText(w); err != nil {
			logger.Log.WithError(err).Error("failed to render text report")
		}
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		if err := report.WriteCSV(w); err != nil {
			logger.Log.WithError(err).Error("failed to render csv report")
		}
	default:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(report)
	}
}

func (h *HTTPHandler) handleShift(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid run id", http.StatusBadRequest)
		return
	}
	rows, err := h.service.GetShiftRows(r.Context(), id)
	if err != nil {
		logger.Log.WithError(err).Error("failed to fetch shift rows")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rows)
}

package ingestion

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/clinforge-ai/platform/pkg/common/logger"
	"github.com/clinforge-ai/platform/pkg/common/models"
	"github.com/clinforge-ai/platform/pkg/validate"
	"github.com/gorilla/mux"
)

type HTTPHandler struct {
	service *Service
	maxBody int64
}

func NewHTTPHandler(service *Service, maxBody int64) *HTTPHandler {
	return &HTTPHandler{service: service, maxBody: maxBody}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/submissions", h.handleSubmit).Methods(http.MethodPost)
	router.HandleFunc("/submissions/{id}", h.handleStatus).Methods(http.MethodGet)
}

type submitResult struct {
	models.SubmitResponse
	Issues []validate.Issue `json:"issues,omitempty"`
}

func (h *HTTPHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	var req models.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Log.WithError(err).Warn("invalid submission payload")
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	resp, issues, err := h.service.Process(r.Context(), req)
	if err != nil {
		if IsValidationError(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Log.WithError(err).Error("failed to process submission")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(submitResult{SubmitResponse: *resp, Issues: issues})
}

func (h *HTTPHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	sub, err := h.service.Status(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "submission not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to fetch submission status")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sub)
}

package care

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type Assigner interface {
	Assign(ctx context.Context, patientID int64) (*Assignment, error)
}

type Handler struct {
	assigner Assigner
	logger   *slog.Logger
}

func NewHandler(assigner Assigner, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{assigner: assigner, logger: logger}
}

// AssignPatient serves POST /api/patients/{patientID}/assignment.
func (h *Handler) AssignPatient(w http.ResponseWriter, r *http.Request) {
	patientID, err := strconv.ParseInt(chi.URLParam(r, "patientID"), 10, 64)
	if err != nil || patientID <= 0 {
		http.Error(w, "invalid patient id", http.StatusBadRequest)
		return
	}

	a, err := h.assigner.Assign(r.Context(), patientID)
	switch {
	case err == nil:
	case errors.Is(err, ErrPatientNotFound):
		http.Error(w, "patient not found", http.StatusNotFound)
		return
	case errors.Is(err, ErrAlreadyAssigned):
		http.Error(w, "patient already assigned", http.StatusConflict)
		return
	case errors.Is(err, ErrNoDoctorAvailable):
		http.Error(w, "no doctor available", http.StatusServiceUnavailable)
		return
	default:
		h.logger.Error("assign patient", "patient_id", patientID, "error", err)
		http.Error(w, "could not assign patient", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(a)
}

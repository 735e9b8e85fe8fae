package care

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

type Store interface {
	AssignDoctor(ctx context.Context, patientID int64, roomID func(patientID, doctorID int64) string) (*Assignment, error)
}

type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// Assign gives the patient a doctor and a chat room they can both join.
func (s *Service) Assign(ctx context.Context, patientID int64) (*Assignment, error) {
	if patientID <= 0 {
		return nil, ErrPatientNotFound
	}

	a, err := s.store.AssignDoctor(ctx, patientID, RoomID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("patient assigned",
		"patient_id", a.Patient.ID,
		"doctor_id", a.Doctor.ID,
		"room", a.Room.RoomID,
	)
	return a, nil
}

// RoomID builds chat_<patient>_<doctor>_<8 hex chars>.
func RoomID(patientID, doctorID int64) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("chat_%d_%d_%s", patientID, doctorID, suffix)
}

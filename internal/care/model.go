package care

import (
	"database/sql"
	"errors"
	"time"
)

var (
	ErrPatientNotFound   = errors.New("care: patient not found")
	ErrAlreadyAssigned   = errors.New("care: patient already has a doctor")
	ErrNoDoctorAvailable = errors.New("care: no doctor available")
)

const (
	StatusPending  = "pending"
	StatusAssigned = "assigned"
)

type Doctor struct {
	ID                  int64  `json:"id"`
	Name                string `json:"name"`
	IsAvailable         bool   `json:"is_available"`
	MaxPatients         int    `json:"max_patients"`
	CurrentPatientCount int    `json:"current_patient_count"`
}

type Patient struct {
	ID               int64         `json:"id"`
	Name             string        `json:"name"`
	AssignedDoctorID sql.NullInt64 `json:"-"`
	AssignmentStatus string        `json:"assignment_status"`
}

// ChatRoom is the room a patient and their doctor talk in. RoomID is what clients join.
type ChatRoom struct {
	ID        int64     `json:"id"`
	RoomID    string    `json:"room_id"`
	PatientID int64     `json:"patient_id"`
	DoctorID  int64     `json:"doctor_id"`
	CreatedAt time.Time `json:"created_at"`
}

type Assignment struct {
	Patient Patient  `json:"patient"`
	Doctor  Doctor   `json:"doctor"`
	Room    ChatRoom `json:"room"`
}

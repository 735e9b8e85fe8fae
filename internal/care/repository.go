package care

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// AssignDoctor hands the patient to the least loaded available doctor and opens their chat
// room, all in one transaction. Doctors locked by a concurrent assignment are skipped.
func (r *Repository) AssignDoctor(ctx context.Context, patientID int64, roomID func(patientID, doctorID int64) string) (*Assignment, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var a Assignment
	p := &a.Patient
	err = tx.QueryRowContext(ctx,
		`SELECT id, name, assigned_doctor_id, assignment_status FROM patients WHERE id = $1 FOR UPDATE`,
		patientID,
	).Scan(&p.ID, &p.Name, &p.AssignedDoctorID, &p.AssignmentStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load patient: %w", err)
	}
	if p.AssignedDoctorID.Valid {
		return nil, ErrAlreadyAssigned
	}

	d := &a.Doctor
	err = tx.QueryRowContext(ctx, `
		SELECT id, name, is_available, max_patients, current_patient_count
		FROM doctors
		WHERE is_available AND current_patient_count < max_patients
		ORDER BY current_patient_count ASC, id ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`).Scan(&d.ID, &d.Name, &d.IsAvailable, &d.MaxPatients, &d.CurrentPatientCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoDoctorAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("pick doctor: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE doctors SET current_patient_count = current_patient_count + 1 WHERE id = $1`, d.ID,
	); err != nil {
		return nil, fmt.Errorf("update doctor: %w", err)
	}
	d.CurrentPatientCount++

	if _, err := tx.ExecContext(ctx,
		`UPDATE patients SET assigned_doctor_id = $1, assignment_status = $2 WHERE id = $3`,
		d.ID, StatusAssigned, p.ID,
	); err != nil {
		return nil, fmt.Errorf("update patient: %w", err)
	}
	p.AssignedDoctorID = sql.NullInt64{Int64: d.ID, Valid: true}
	p.AssignmentStatus = StatusAssigned

	room := &a.Room
	room.RoomID = roomID(p.ID, d.ID)
	room.PatientID = p.ID
	room.DoctorID = d.ID
	if err := tx.QueryRowContext(ctx,
		`INSERT INTO chat_rooms (room_id, patient_id, doctor_id) VALUES ($1, $2, $3) RETURNING id, created_at`,
		room.RoomID, room.PatientID, room.DoctorID,
	).Scan(&room.ID, &room.CreatedAt); err != nil {
		return nil, fmt.Errorf("create chat room: %w", err)
	}
	room.CreatedAt = room.CreatedAt.UTC()

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &a, nil
}

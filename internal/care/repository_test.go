package care

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"care-chat/internal/db"
)

func newTestRepository(t *testing.T) (*Repository, *db.Database) {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	database, err := db.NewDatabase(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.AutoMigrate(ctx))

	// Other doctors in a shared database would compete for the patient.
	_, err = database.Conn.ExecContext(ctx, `UPDATE doctors SET is_available = FALSE`)
	require.NoError(t, err)
	return NewRepository(database.Conn), database
}

func insertID(t *testing.T, database *db.Database, query string, args ...any) int64 {
	t.Helper()
	var id int64
	require.NoError(t, database.Conn.QueryRowContext(context.Background(), query, args...).Scan(&id))
	return id
}

func TestRepository_AssignDoctor(t *testing.T) {
	repo, database := newTestRepository(t)
	ctx := context.Background()

	busy := insertID(t, database, `INSERT INTO doctors (name, max_patients, current_patient_count) VALUES ('busy', 5, 4) RETURNING id`)
	idle := insertID(t, database, `INSERT INTO doctors (name, max_patients, current_patient_count) VALUES ('idle', 5, 0) RETURNING id`)
	patient := insertID(t, database, `INSERT INTO patients (name, assignment_status) VALUES ('p', $1) RETURNING id`, StatusPending)
	t.Cleanup(func() {
		database.Conn.ExecContext(ctx, `DELETE FROM patients WHERE id = $1`, patient)
		database.Conn.ExecContext(ctx, `DELETE FROM doctors WHERE id IN ($1, $2)`, busy, idle)
	})

	a, err := repo.AssignDoctor(ctx, patient, RoomID)
	require.NoError(t, err)
	assert.Equal(t, idle, a.Doctor.ID, "least loaded doctor wins")
	assert.Equal(t, 1, a.Doctor.CurrentPatientCount)
	assert.Equal(t, StatusAssigned, a.Patient.AssignmentStatus)
	assert.NotZero(t, a.Room.ID)

	var count int
	require.NoError(t, database.Conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chat_rooms WHERE room_id = $1 AND patient_id = $2 AND doctor_id = $3`,
		a.Room.RoomID, patient, idle,
	).Scan(&count))
	assert.Equal(t, 1, count)

	_, err = repo.AssignDoctor(ctx, patient, RoomID)
	assert.ErrorIs(t, err, ErrAlreadyAssigned)
}

func TestRepository_AssignDoctorErrors(t *testing.T) {
	repo, database := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.AssignDoctor(ctx, -42, RoomID)
	assert.ErrorIs(t, err, ErrPatientNotFound)

	patient := insertID(t, database, `INSERT INTO patients (name, assignment_status) VALUES ('nobody home', $1) RETURNING id`, StatusPending)
	t.Cleanup(func() { database.Conn.ExecContext(ctx, `DELETE FROM patients WHERE id = $1`, patient) })

	_, err = repo.AssignDoctor(ctx, patient, RoomID)
	assert.ErrorIs(t, err, ErrNoDoctorAvailable)

	var status string
	require.NoError(t, database.Conn.QueryRowContext(ctx,
		`SELECT assignment_status FROM patients WHERE id = $1`, patient,
	).Scan(&status))
	assert.Equal(t, StatusPending, status, "a failed assignment leaves the patient pending")
}

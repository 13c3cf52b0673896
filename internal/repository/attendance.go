package repository

import (
	"context"
	"fmt"

	"eventstaff-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AttendanceRepository persists clock-in proof-of-presence records
type AttendanceRepository struct {
	db *pgxpool.Pool
}

// NewAttendanceRepository creates a new attendance repository
func NewAttendanceRepository(db *pgxpool.Pool) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// CreateClockInRecord stores the proof bundle captured at clock-in
func (r *AttendanceRepository) CreateClockInRecord(ctx context.Context, rec *models.ClockInRecord) error {
	query := `
		INSERT INTO clock_in_records (id, booking_id, staff_id, time, selfie_url, lat, lng, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		rec.ID, rec.BookingID, rec.StaffID, rec.Time, rec.SelfieURL, rec.Lat, rec.Lng, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create clock-in record: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"eventstaff-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BookingRepository handles database operations for confirmed shift bookings
type BookingRepository struct {
	db *pgxpool.Pool
}

// NewBookingRepository creates a new booking repository
func NewBookingRepository(db *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{db: db}
}

// GetByID retrieves a booking by ID
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	query := `
		SELECT id, staff_id, company_id, title, location_name, lat, lng,
		       start_time, end_time, hourly_rate, description, created_at
		FROM bookings
		WHERE id = $1
	`
	var b models.Booking
	err := r.db.QueryRow(ctx, query, id).Scan(
		&b.ID, &b.StaffID, &b.CompanyID, &b.Title, &b.LocationName, &b.Lat, &b.Lng,
		&b.StartTime, &b.EndTime, &b.HourlyRate, &b.Description, &b.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("booking not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &b, nil
}

// ListByStaff retrieves a staff member's bookings ending after the given
// cutoff, soonest first
func (r *BookingRepository) ListByStaff(ctx context.Context, staffID string, after time.Time) ([]*models.Booking, error) {
	query := `
		SELECT id, staff_id, company_id, title, location_name, lat, lng,
		       start_time, end_time, hourly_rate, description, created_at
		FROM bookings
		WHERE staff_id = $1 AND end_time > $2
		ORDER BY start_time ASC
	`
	rows, err := r.db.Query(ctx, query, staffID, after)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		var b models.Booking
		err := rows.Scan(
			&b.ID, &b.StaffID, &b.CompanyID, &b.Title, &b.LocationName, &b.Lat, &b.Lng,
			&b.StartTime, &b.EndTime, &b.HourlyRate, &b.Description, &b.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bookings: %w", err)
	}

	return bookings, nil
}

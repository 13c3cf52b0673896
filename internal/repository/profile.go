package repository

import (
	"context"
	"errors"
	"fmt"

	"eventstaff-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProfileRepository handles database operations for company and staff profiles
type ProfileRepository struct {
	db *pgxpool.Pool
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// GetCompany retrieves the company profile for a user, or pgx.ErrNoRows
// wrapped if the user is not a company
func (r *ProfileRepository) GetCompany(ctx context.Context, userID string) (*models.CompanyProfile, error) {
	query := `
		SELECT user_id, company_name, avatar_url
		FROM company_profiles
		WHERE user_id = $1
	`
	var p models.CompanyProfile
	err := r.db.QueryRow(ctx, query, userID).Scan(&p.UserID, &p.CompanyName, &p.AvatarURL)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("company profile not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get company profile: %w", err)
	}
	return &p, nil
}

// GetStaff retrieves the staff profile for a user
func (r *ProfileRepository) GetStaff(ctx context.Context, userID string) (*models.StaffProfile, error) {
	query := `
		SELECT user_id, full_name, avatar_url
		FROM staff_profiles
		WHERE user_id = $1
	`
	var p models.StaffProfile
	err := r.db.QueryRow(ctx, query, userID).Scan(&p.UserID, &p.FullName, &p.AvatarURL)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("staff profile not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get staff profile: %w", err)
	}
	return &p, nil
}

// CompanyName returns the company display name for a user, or empty strings
// if the user has no company profile. Errors are reserved for query failures.
func (r *ProfileRepository) CompanyName(ctx context.Context, userID string) (name, avatarURL string, err error) {
	p, err := r.GetCompany(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", nil
		}
		return "", "", err
	}
	return p.CompanyName, p.AvatarURL, nil
}

// StaffName returns the staff display name for a user, or empty strings if
// the user has no staff profile
func (r *ProfileRepository) StaffName(ctx context.Context, userID string) (name, avatarURL string, err error) {
	p, err := r.GetStaff(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", nil
		}
		return "", "", err
	}
	return p.FullName, p.AvatarURL, nil
}

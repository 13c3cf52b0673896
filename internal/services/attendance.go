package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"eventstaff-backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Clock-in opens 15 minutes before the shift starts and closes at the
// start. Clock-out is allowed from 15 minutes before the shift ends to 15
// minutes after.
const (
	ClockInEarlyWindow = 15 * time.Minute
	ClockOutGrace      = 15 * time.Minute
)

// Attendance precondition and device failures. Handlers map each to its
// own user-visible message; none of them changes tracker state.
var (
	ErrOutsideClockInWindow  = errors.New("outside clock-in window")
	ErrOutsideClockOutWindow = errors.New("outside clock-out window")
	ErrAlreadyClockedIn      = errors.New("already clocked in")
	ErrAlreadyClockedOut     = errors.New("already clocked out")
	ErrNotClockedIn          = errors.New("not clocked in")
	ErrNotYourBooking        = errors.New("booking belongs to another staff member")
	ErrCameraUnavailable     = errors.New("camera unavailable")
	ErrLocationUnavailable   = errors.New("location unavailable")
)

// WithinClockInWindow reports whether now falls in [start-15m, start],
// bounds inclusive
func WithinClockInWindow(now, shiftStart time.Time) bool {
	return !now.Before(shiftStart.Add(-ClockInEarlyWindow)) && !now.After(shiftStart)
}

// WithinClockOutWindow reports whether now falls in [end-15m, end+15m],
// bounds inclusive
func WithinClockOutWindow(now, shiftEnd time.Time) bool {
	return !now.Before(shiftEnd.Add(-ClockOutGrace)) && !now.After(shiftEnd.Add(ClockOutGrace))
}

// Position is a single geolocation fix
type Position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Locator acquires a single-shot geolocation fix
type Locator interface {
	CurrentPosition(ctx context.Context) (Position, error)
}

// Camera opens a capture stream for the verification selfie
type Camera interface {
	Open(ctx context.Context) (CameraStream, error)
}

// CameraStream is an open camera. Close releases the device and must be
// called on every path once Open succeeded.
type CameraStream interface {
	Capture(ctx context.Context) ([]byte, error)
	Close() error
}

// SelfieStore persists a captured frame and returns its public URL
type SelfieStore interface {
	Store(ctx context.Context, bookingID, staffID string, frame []byte) (string, error)
}

// BookingStore is the booking row access the tracker needs
type BookingStore interface {
	GetByID(ctx context.Context, id string) (*models.Booking, error)
	ListByStaff(ctx context.Context, staffID string, after time.Time) ([]*models.Booking, error)
}

// ClockInRecordStore persists proof-of-presence records
type ClockInRecordStore interface {
	CreateClockInRecord(ctx context.Context, rec *models.ClockInRecord) error
}

// attendanceSession is one staff member's presence state at one booking.
// It lives in memory for the lifetime of the process; the durable proof is
// the ClockInRecord written at the transition.
type attendanceSession struct {
	mu           sync.Mutex
	status       models.AttendanceStatus
	clockInTime  time.Time
	clockOutTime time.Time
}

// AttendanceState is a snapshot of a session for display
type AttendanceState struct {
	Status      models.AttendanceStatus `json:"status"`
	ClockInTime *time.Time              `json:"clock_in_time,omitempty"`
	Elapsed     time.Duration           `json:"elapsed"`
}

// AttendanceService gates clock-in/out to the scheduled shift windows,
// captures proof of presence at clock-in, and reports elapsed on-shift time
type AttendanceService struct {
	bookings BookingStore
	records  ClockInRecordStore
	selfies  SelfieStore

	mu       sync.Mutex
	sessions map[string]*attendanceSession
}

// NewAttendanceService creates a new attendance service
func NewAttendanceService(bookings BookingStore, records ClockInRecordStore, selfies SelfieStore) *AttendanceService {
	return &AttendanceService{
		bookings: bookings,
		records:  records,
		selfies:  selfies,
		sessions: make(map[string]*attendanceSession),
	}
}

func (s *AttendanceService) session(bookingID, staffID string) *attendanceSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := bookingID + "|" + staffID
	sess, ok := s.sessions[key]
	if !ok {
		sess = &attendanceSession{status: models.AttendanceNotClockedIn}
		s.sessions[key] = sess
	}
	return sess
}

// ClockIn performs the full clock-in flow: window and state preconditions,
// geolocation fix, selfie capture, proof persistence, then the transition
// to clocked-in. Any failure before the transition leaves the session
// unchanged and retryable; the camera is released on every path once
// opened.
func (s *AttendanceService) ClockIn(ctx context.Context, staffID, bookingID string, cam Camera, loc Locator, now time.Time) (*models.ClockInRecord, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.StaffID != staffID {
		return nil, ErrNotYourBooking
	}

	sess := s.session(bookingID, staffID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	switch sess.status {
	case models.AttendanceClockedIn:
		return nil, ErrAlreadyClockedIn
	case models.AttendanceClockedOut:
		return nil, ErrAlreadyClockedOut
	}
	if !WithinClockInWindow(now, booking.StartTime) {
		return nil, ErrOutsideClockInWindow
	}

	pos, err := loc.CurrentPosition(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLocationUnavailable, err)
	}

	stream, err := cam.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	}
	frame, err := stream.Capture(ctx)
	if closeErr := stream.Close(); closeErr != nil {
		log.Warn().Err(closeErr).Str("booking_id", bookingID).Msg("Failed to release camera stream")
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	}

	selfieURL, err := s.selfies.Store(ctx, bookingID, staffID, frame)
	if err != nil {
		return nil, fmt.Errorf("failed to store selfie: %w", err)
	}

	rec := &models.ClockInRecord{
		ID:        uuid.New().String(),
		BookingID: bookingID,
		StaffID:   staffID,
		Time:      now,
		SelfieURL: selfieURL,
		Lat:       pos.Lat,
		Lng:       pos.Lng,
		CreatedAt: now,
	}
	if err := s.records.CreateClockInRecord(ctx, rec); err != nil {
		return nil, err
	}

	sess.status = models.AttendanceClockedIn
	sess.clockInTime = now

	log.Info().
		Str("staff_id", staffID).
		Str("booking_id", bookingID).
		Time("time", now).
		Msg("Staff clocked in")

	return rec, nil
}

// ClockOut transitions a clocked-in session to its terminal state. The
// state precondition is checked before the window so a clock-out without a
// prior clock-in always fails the same way regardless of time. No proof is
// captured at clock-out.
func (s *AttendanceService) ClockOut(ctx context.Context, staffID, bookingID string, now time.Time) error {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if booking.StaffID != staffID {
		return ErrNotYourBooking
	}

	sess := s.session(bookingID, staffID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	switch sess.status {
	case models.AttendanceNotClockedIn:
		return ErrNotClockedIn
	case models.AttendanceClockedOut:
		return ErrAlreadyClockedOut
	}
	if !WithinClockOutWindow(now, booking.EndTime) {
		return ErrOutsideClockOutWindow
	}

	sess.status = models.AttendanceClockedOut
	sess.clockOutTime = now

	log.Info().
		Str("staff_id", staffID).
		Str("booking_id", bookingID).
		Dur("on_shift", now.Sub(sess.clockInTime)).
		Msg("Staff clocked out")

	return nil
}

// State returns the current attendance snapshot for a booking. Elapsed is
// zero before clock-in, grows with now while clocked in, and freezes at
// the on-shift total after clock-out.
func (s *AttendanceService) State(staffID, bookingID string, now time.Time) AttendanceState {
	sess := s.session(bookingID, staffID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	state := AttendanceState{Status: sess.status}
	switch sess.status {
	case models.AttendanceClockedIn:
		t := sess.clockInTime
		state.ClockInTime = &t
		state.Elapsed = now.Sub(sess.clockInTime)
	case models.AttendanceClockedOut:
		t := sess.clockInTime
		state.ClockInTime = &t
		state.Elapsed = sess.clockOutTime.Sub(sess.clockInTime)
	}
	return state
}

// Bookings lists the staff member's shifts that have not yet ended
func (s *AttendanceService) Bookings(ctx context.Context, staffID string, now time.Time) ([]*models.Booking, error) {
	return s.bookings.ListByStaff(ctx, staffID, now)
}

package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"eventstaff-backend/internal/middleware"
	"eventstaff-backend/internal/models"
	"eventstaff-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// maxSelfieBytes caps the multipart selfie upload
const maxSelfieBytes = 10 << 20

// AttendanceHandler handles clock-in/clock-out HTTP requests
type AttendanceHandler struct {
	attendanceService *services.AttendanceService
}

// NewAttendanceHandler creates a new attendance handler
func NewAttendanceHandler(attendanceService *services.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{
		attendanceService: attendanceService,
	}
}

// requestCamera adapts the uploaded multipart frame to the Camera contract.
// A request without a selfie part behaves like a denied camera.
type requestCamera struct {
	file io.ReadCloser
	err  error
}

func (c *requestCamera) Open(ctx context.Context) (services.CameraStream, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &requestStream{file: c.file}, nil
}

type requestStream struct {
	file io.ReadCloser
}

func (s *requestStream) Capture(ctx context.Context) ([]byte, error) {
	return io.ReadAll(io.LimitReader(s.file, maxSelfieBytes))
}

func (s *requestStream) Close() error {
	return s.file.Close()
}

// requestLocator adapts the client-reported GPS fix to the Locator contract.
// Missing coordinates behave like a denied location permission.
type requestLocator struct {
	pos services.Position
	err error
}

func (l *requestLocator) CurrentPosition(ctx context.Context) (services.Position, error) {
	if l.err != nil {
		return services.Position{}, l.err
	}
	return l.pos, nil
}

// ClockIn handles POST /api/v1/bookings/{bookingID}/clock-in. Expects a
// multipart form with a "selfie" file part and "lat"/"lng" fields.
func (h *AttendanceHandler) ClockIn(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	bookingID := chi.URLParam(r, "bookingID")

	if err := r.ParseMultipartForm(maxSelfieBytes); err != nil {
		respondError(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	cam := &requestCamera{}
	file, _, err := r.FormFile("selfie")
	if err != nil {
		cam.err = errors.New("selfie capture missing")
	} else {
		cam.file = file
	}

	loc := &requestLocator{}
	lat, latErr := strconv.ParseFloat(r.FormValue("lat"), 64)
	lng, lngErr := strconv.ParseFloat(r.FormValue("lng"), 64)
	if latErr != nil || lngErr != nil {
		loc.err = errors.New("location fix missing")
	} else {
		loc.pos = services.Position{Lat: lat, Lng: lng}
	}

	rec, err := h.attendanceService.ClockIn(r.Context(), userID, bookingID, cam, loc, time.Now())
	if err != nil {
		h.respondAttendanceError(w, userID, bookingID, "clock in", err)
		return
	}

	respondJSON(w, rec, http.StatusCreated)
}

// ClockOut handles POST /api/v1/bookings/{bookingID}/clock-out
func (h *AttendanceHandler) ClockOut(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	bookingID := chi.URLParam(r, "bookingID")

	if err := h.attendanceService.ClockOut(r.Context(), userID, bookingID, time.Now()); err != nil {
		h.respondAttendanceError(w, userID, bookingID, "clock out", err)
		return
	}

	respondJSON(w, h.attendanceService.State(userID, bookingID, time.Now()), http.StatusOK)
}

// GetState handles GET /api/v1/bookings/{bookingID}/attendance
func (h *AttendanceHandler) GetState(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	bookingID := chi.URLParam(r, "bookingID")

	respondJSON(w, h.attendanceService.State(userID, bookingID, time.Now()), http.StatusOK)
}

// ListBookings handles GET /api/v1/bookings
func (h *AttendanceHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	bookings, err := h.attendanceService.Bookings(r.Context(), userID, time.Now())
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to list bookings")
		respondError(w, "Failed to load bookings", http.StatusInternalServerError)
		return
	}
	if bookings == nil {
		bookings = []*models.Booking{}
	}

	respondJSON(w, map[string]interface{}{
		"bookings": bookings,
	}, http.StatusOK)
}

// respondAttendanceError maps each precondition and device failure to its
// own user-visible message
func (h *AttendanceHandler) respondAttendanceError(w http.ResponseWriter, userID, bookingID, action string, err error) {
	switch {
	case errors.Is(err, services.ErrOutsideClockInWindow):
		respondError(w, "You can only clock in from 15 minutes before your shift starts", http.StatusConflict)
	case errors.Is(err, services.ErrOutsideClockOutWindow):
		respondError(w, "You can only clock out within 15 minutes of your shift ending", http.StatusConflict)
	case errors.Is(err, services.ErrAlreadyClockedIn):
		respondError(w, "You are already clocked in", http.StatusConflict)
	case errors.Is(err, services.ErrAlreadyClockedOut):
		respondError(w, "This shift is already clocked out", http.StatusConflict)
	case errors.Is(err, services.ErrNotClockedIn):
		respondError(w, "You have not clocked in for this shift", http.StatusConflict)
	case errors.Is(err, services.ErrNotYourBooking), errors.Is(err, pgx.ErrNoRows):
		respondError(w, "Booking not found", http.StatusNotFound)
	case errors.Is(err, services.ErrCameraUnavailable):
		respondError(w, "Camera access is required to clock in", http.StatusBadRequest)
	case errors.Is(err, services.ErrLocationUnavailable):
		respondError(w, "Location access is required to clock in", http.StatusBadRequest)
	default:
		log.Error().
			Err(err).
			Str("user_id", userID).
			Str("booking_id", bookingID).
			Msgf("Failed to %s", action)
		respondError(w, "Something went wrong, please try again", http.StatusInternalServerError)
	}
}

package models

import "time"

// User represents an authenticated account, either a company or a staff member
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"` // "company" or "staff"
	PushToken    *string   `json:"push_token,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// CompanyProfile holds the display data for a company account
type CompanyProfile struct {
	UserID      string `json:"user_id"`
	CompanyName string `json:"company_name"`
	AvatarURL   string `json:"avatar_url"`
}

// StaffProfile holds the display data for a staff account
type StaffProfile struct {
	UserID    string `json:"user_id"`
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`
}

// Message represents a direct message between two users
type Message struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	Content     string    `json:"content"`
	IsRead      bool      `json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
}

// ConversationMessage is a message annotated for display in a two-party thread
type ConversationMessage struct {
	Message
	IsOwn bool `json:"is_own"`
}

// Contact is a derived view of a message counterpart; it is never persisted
type Contact struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	CompanyName string `json:"company_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Preview     string `json:"preview"`
	Unread      int    `json:"unread"`
}

// Booking represents a staff member's confirmed shift at a job
type Booking struct {
	ID           string    `json:"id"`
	StaffID      string    `json:"staff_id"`
	CompanyID    string    `json:"company_id"`
	Title        string    `json:"title"`
	LocationName string    `json:"location_name"`
	Lat          float64   `json:"lat"`
	Lng          float64   `json:"lng"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	HourlyRate   float64   `json:"hourly_rate"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
}

// AttendanceStatus tracks a staff member's presence at a booked shift.
// Transitions run one way: not_clocked_in -> clocked_in -> clocked_out.
type AttendanceStatus string

const (
	AttendanceNotClockedIn AttendanceStatus = "not_clocked_in"
	AttendanceClockedIn    AttendanceStatus = "clocked_in"
	AttendanceClockedOut   AttendanceStatus = "clocked_out"
)

// ClockInRecord is the proof-of-presence bundle captured when a staff member
// clocks in: timestamp, selfie location in object storage, and a GPS fix
type ClockInRecord struct {
	ID        string    `json:"id"`
	BookingID string    `json:"booking_id"`
	StaffID   string    `json:"staff_id"`
	Time      time.Time `json:"time"`
	SelfieURL string    `json:"selfie_url"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	CreatedAt time.Time `json:"created_at"`
}

package models

import "time"

// DeliveryNote is one delivery attempt logged against a request.
type DeliveryNote struct {
	NoteID      string    `json:"note_id"`
	RequestCode string    `json:"request_code"`
	JobType     JobType   `json:"job_type"`
	DeliveredAt time.Time `json:"delivered_at"`
	Carrier     string    `json:"carrier,omitempty"`
	Recipient   string    `json:"recipient,omitempty"`
	Note        string    `json:"note,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// WorkHourEntry is one labor record logged against a request.
type WorkHourEntry struct {
	EntryID     string    `json:"entry_id"`
	RequestCode string    `json:"request_code"`
	JobType     JobType   `json:"job_type"`
	Worker      string    `json:"worker"`
	Hours       float64   `json:"hours"`
	WorkedOn    time.Time `json:"worked_on"`
	Note        string    `json:"note,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Session is an authenticated dashboard session. Sessions are issued by the
// surrounding application; this service only reads them for role checks.
type Session struct {
	SessionID string    `json:"session_id"`
	Identity  string    `json:"identity"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

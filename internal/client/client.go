package client

import (
	"time"
)

const (
	EnrollmentStatusEnrolled   = "enrolled"
	EnrollmentStatusUnenrolled = "unenrolled"
)

// Client is the decrypted, in-memory view of a case file. It exists only
// for the lifetime of a request; persistence always goes through the
// encrypted datamodel columns.
type Client struct {
	ID        int64
	FirstName string
	LastName  string
	BirthDate string
	IsDemo    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EnrollmentView is one program membership as shown to a specific viewer.
// The program name is resolved here because enrollment rows only carry ids.
type EnrollmentView struct {
	ProgramID   int64  `json:"program_id"`
	ProgramName string `json:"program_name"`
	Status      string `json:"status"`
}

// FieldValue is a decrypted custom field value paired with its definition.
type FieldValue struct {
	FieldID     int64  `json:"field_id"`
	Name        string `json:"name"`
	IsSensitive bool   `json:"is_sensitive"`
	Value       string `json:"value"`
}

package export

import "time"

type CreateExportDTO struct {
	Kind            string `json:"kind"`
	ProgramID       *int64 `json:"program_id,omitempty"`
	IncludeRawNotes bool   `json:"include_raw_notes"`
}

type LinkResponse struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	IsElevated  bool       `json:"is_elevated"`
	ContainsPII bool       `json:"contains_pii"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	// AvailableAt is when the download pipeline will release the file;
	// creation time for ordinary links, end of the review window for
	// elevated ones.
	AvailableAt time.Time  `json:"available_at"`
	Revoked     bool       `json:"revoked"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
}

type RevokeResponse struct {
	ID             string `json:"id"`
	Revoked        bool   `json:"revoked"`
	AlreadyRevoked bool   `json:"already_revoked"`
}

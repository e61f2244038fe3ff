package export

import "time"

type ExportLink struct {
	ID        string `gorm:"primaryKey;type:uuid"`
	CreatorID int64  `gorm:"column:creator_id;not null"`
	Kind      string `gorm:"column:kind;not null"`
	// FileName is the uuid-derived name under the private storage root.
	// Only the name is stored; the root comes from configuration.
	FileName string `gorm:"column:file_name;not null"`

	// ContainsPII defaults true: deny-by-default when the flag was never
	// set explicitly.
	ContainsPII      bool `gorm:"column:contains_pii;default:true"`
	IsElevated       bool `gorm:"column:is_elevated;default:false"`
	ClientCount      int  `gorm:"column:client_count;default:0"`
	IncludesRawNotes bool `gorm:"column:includes_raw_notes;default:false"`

	Revoked   bool       `gorm:"column:revoked;default:false"`
	RevokedAt *time.Time `gorm:"column:revoked_at"`
	RevokedBy *int64     `gorm:"column:revoked_by"`

	DownloadCount    int        `gorm:"column:download_count;default:0"`
	LastDownloadedAt *time.Time `gorm:"column:last_downloaded_at"`
	LastDownloadedBy *int64     `gorm:"column:last_downloaded_by"`

	AdminNotifiedAt *time.Time `gorm:"column:admin_notified_at"`

	CreatedAt time.Time `gorm:"column:created_at;not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null"`
}

func (ExportLink) TableName() string {
	return "export_links"
}

package client

import "time"

// ClientRecord stores PII only in Fernet-encrypted columns. No plaintext
// name or birth date ever persists at rest.
type ClientRecord struct {
	ID                 int64     `gorm:"primaryKey"`
	EncryptedFirstName []byte    `gorm:"column:encrypted_first_name"`
	EncryptedLastName  []byte    `gorm:"column:encrypted_last_name"`
	EncryptedBirthDate []byte    `gorm:"column:encrypted_birth_date"`
	IsDemo             bool      `gorm:"column:is_demo;default:false"`
	CreatedAt          time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt          time.Time `gorm:"column:updated_at;default:now()"`
}

func (ClientRecord) TableName() string {
	return "client_records"
}

type Enrollment struct {
	ID        int64     `gorm:"primaryKey"`
	ClientID  int64     `gorm:"column:client_id;not null;uniqueIndex:idx_client_program"`
	ProgramID int64     `gorm:"column:program_id;not null;uniqueIndex:idx_client_program"`
	Status    string    `gorm:"column:status;default:enrolled"`
	CreatedAt time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt time.Time `gorm:"column:updated_at;default:now()"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}

// CustomFieldDef defines an extra per-client attribute. Sensitive fields
// take the encrypted storage path; the two paths never mix for one field.
type CustomFieldDef struct {
	ID          int64     `gorm:"primaryKey"`
	ProgramID   int64     `gorm:"column:program_id;not null"`
	Name        string    `gorm:"column:name;not null"`
	IsSensitive bool      `gorm:"column:is_sensitive;default:false"`
	CreatedAt   time.Time `gorm:"column:created_at;default:now()"`
}

func (CustomFieldDef) TableName() string {
	return "custom_field_defs"
}

type CustomFieldValue struct {
	ID             int64     `gorm:"primaryKey"`
	FieldID        int64     `gorm:"column:field_id;not null;uniqueIndex:idx_field_client"`
	ClientID       int64     `gorm:"column:client_id;not null;uniqueIndex:idx_field_client"`
	PlainValue     *string   `gorm:"column:plain_value"`
	EncryptedValue []byte    `gorm:"column:encrypted_value"`
	UpdatedAt      time.Time `gorm:"column:updated_at;default:now()"`
}

func (CustomFieldValue) TableName() string {
	return "custom_field_values"
}

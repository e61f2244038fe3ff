package access

import "time"

// RoleAssignment ties a user to a program with exactly one role. Rows
// cascade with the owning user or program.
type RoleAssignment struct {
	ID        int64     `gorm:"primaryKey"`
	UserID    int64     `gorm:"column:user_id;not null;uniqueIndex:idx_user_program"`
	ProgramID int64     `gorm:"column:program_id;not null;uniqueIndex:idx_user_program"`
	Role      string    `gorm:"column:role;not null"`
	Status    string    `gorm:"column:status;default:active"`
	CreatedAt time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt time.Time `gorm:"column:updated_at;default:now()"`
}

func (RoleAssignment) TableName() string {
	return "role_assignments"
}

// AccessBlock is an explicit per-(user, client) denial. It overrides every
// role-based grant and survives role changes independently.
type AccessBlock struct {
	ID        int64     `gorm:"primaryKey"`
	UserID    int64     `gorm:"column:user_id;not null;uniqueIndex:idx_block_user_client"`
	ClientID  int64     `gorm:"column:client_id;not null;uniqueIndex:idx_block_user_client"`
	IsActive  bool      `gorm:"column:is_active;default:true"`
	CreatedBy int64     `gorm:"column:created_by;not null"`
	CreatedAt time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt time.Time `gorm:"column:updated_at;default:now()"`
}

func (AccessBlock) TableName() string {
	return "access_blocks"
}

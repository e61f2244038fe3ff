package program

import "time"

type Program struct {
	ID          int64     `gorm:"primaryKey"`
	Name        string    `gorm:"column:name;uniqueIndex;not null"`
	Description string    `gorm:"column:description"`
	// IsConfidential is one-way: the service layer refuses any update that
	// clears it. The column itself carries no such constraint.
	IsConfidential bool      `gorm:"column:is_confidential;default:false"`
	Status         string    `gorm:"column:status;default:active"`
	CreatedAt      time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt      time.Time `gorm:"column:updated_at;default:now()"`
}

func (Program) TableName() string {
	return "programs"
}

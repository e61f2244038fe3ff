package program

import (
	"time"

	programDatamodel "github.com/nonprofit-tech/casevault/internal/core/datamodel/program"
)

const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

type Program struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	IsConfidential bool      `json:"is_confidential"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (p *Program) IsActiveProgram() bool {
	return p.Status == StatusActive
}

func (p *Program) Archive() {
	p.Status = StatusArchived
	p.UpdatedAt = time.Now()
}

func NewProgram(name, description string, confidential bool) *Program {
	now := time.Now()
	return &Program{
		Name:           name,
		Description:    description,
		IsConfidential: confidential,
		Status:         StatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func ToDataModel(p *Program) *programDatamodel.Program {
	return &programDatamodel.Program{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		IsConfidential: p.IsConfidential,
		Status:         p.Status,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func FromDataModel(p *programDatamodel.Program) *Program {
	return &Program{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		IsConfidential: p.IsConfidential,
		Status:         p.Status,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

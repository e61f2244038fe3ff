package program

import (
	"github.com/nonprofit-tech/casevault/internal/core/common/validation"
)

type CreateProgramDTO struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	IsConfidential bool   `json:"is_confidential"`
}

func (d *CreateProgramDTO) Validate() error {
	validator := validation.NewValidator()

	validator.Field("name", d.Name).Required().MaxLength(255)
	validator.Field("description", d.Description).MaxLength(2000)

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

type UpdateProgramDTO struct {
	Name           *string `json:"name,omitempty"`
	Description    *string `json:"description,omitempty"`
	IsConfidential *bool   `json:"is_confidential,omitempty"`
	Status         *string `json:"status,omitempty"`
}

type ProgramResponse struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	IsConfidential bool   `json:"is_confidential"`
	Status         string `json:"status"`
}

type ProgramsResponse struct {
	Programs []ProgramResponse `json:"programs"`
}

func (p *Program) ToResponse() ProgramResponse {
	return ProgramResponse{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		IsConfidential: p.IsConfidential,
		Status:         p.Status,
	}
}

package client

import (
	"github.com/nonprofit-tech/casevault/internal/core/common/validation"
)

type CreateClientDTO struct {
	FirstName  string  `json:"first_name"`
	LastName   string  `json:"last_name"`
	BirthDate  string  `json:"birth_date"`
	ProgramIDs []int64 `json:"program_ids"`
}

func (d *CreateClientDTO) Validate() error {
	validator := validation.NewValidator()

	validator.Field("first_name", d.FirstName).Required().MaxLength(200)
	validator.Field("last_name", d.LastName).Required().MaxLength(200)
	validator.Field("birth_date", d.BirthDate).Required().Date()

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

type UpdateClientDTO struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	BirthDate *string `json:"birth_date,omitempty"`
	// ProgramIDs is the editor's full desired enrollment set, limited to
	// programs the editor can see. Enrollments in programs outside the
	// editor's view are preserved server-side.
	ProgramIDs *[]int64 `json:"program_ids,omitempty"`
}

type SetFieldValueDTO struct {
	FieldID int64  `json:"field_id"`
	Value   string `json:"value"`
}

func (d *SetFieldValueDTO) Validate() error {
	validator := validation.NewValidator()

	validator.Field("field_id", d.FieldID).Required()
	validator.Field("value", d.Value).MaxLength(2000)

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

type ClientResponse struct {
	ID          int64            `json:"id"`
	FirstName   string           `json:"first_name"`
	LastName    string           `json:"last_name"`
	BirthDate   string           `json:"birth_date"`
	IsDemo      bool             `json:"is_demo"`
	Enrollments []EnrollmentView `json:"enrollments"`
	Fields      []FieldValue     `json:"fields,omitempty"`
}

type EnrollmentsResponse struct {
	Enrollments []EnrollmentView `json:"enrollments"`
}

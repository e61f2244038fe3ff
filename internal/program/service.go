package program

import (
	"context"
	"log/slog"

	"github.com/nonprofit-tech/casevault/internal"
	"github.com/nonprofit-tech/casevault/internal/access"

	programDatamodel "github.com/nonprofit-tech/casevault/internal/core/datamodel/program"
	userDatamodel "github.com/nonprofit-tech/casevault/internal/core/datamodel/user"
)

type RepositoryAPI interface {
	GetAll(ctx context.Context) ([]*programDatamodel.Program, error)
	GetByID(ctx context.Context, id int64) (*programDatamodel.Program, error)
	GetByIDs(ctx context.Context, ids []int64) ([]*programDatamodel.Program, error)
	Create(ctx context.Context, program *programDatamodel.Program) error
	Update(ctx context.Context, program *programDatamodel.Program) error
}

type Service struct {
	repo      RepositoryAPI
	evaluator *access.Evaluator
	logger    *slog.Logger
}

func NewService(repo RepositoryAPI, evaluator *access.Evaluator, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		evaluator: evaluator,
		logger:    logger,
	}
}

// ListVisible returns the programs the user may know exist. Admins see the
// full catalog; everyone else sees only programs where they hold an active
// role, which keeps confidential program names out of the listing entirely.
func (s *Service) ListVisible(ctx context.Context, user *userDatamodel.User) ([]ProgramResponse, error) {
	if user == nil {
		return nil, internal.ErrAccessDenied
	}

	var records []*programDatamodel.Program
	var err error
	if user.IsAdmin {
		records, err = s.repo.GetAll(ctx)
	} else {
		var visible access.ProgramSet
		visible, err = s.evaluator.VisiblePrograms(ctx, user)
		if err != nil {
			return nil, err
		}
		ids := make([]int64, 0, len(visible))
		for id := range visible {
			ids = append(ids, id)
		}
		records, err = s.repo.GetByIDs(ctx, ids)
	}
	if err != nil {
		s.logger.Error("failed to list programs", "error", err)
		return nil, err
	}

	responses := make([]ProgramResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, FromDataModel(record).ToResponse())
	}
	return responses, nil
}

func (s *Service) GetByID(ctx context.Context, user *userDatamodel.User, id int64) (*ProgramResponse, error) {
	if user == nil {
		return nil, internal.ErrAccessDenied
	}
	if !user.IsAdmin {
		visible, err := s.evaluator.VisiblePrograms(ctx, user)
		if err != nil {
			return nil, err
		}
		if !visible.Contains(id) {
			return nil, internal.ErrAccessDenied
		}
	}

	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	response := FromDataModel(record).ToResponse()
	return &response, nil
}

func (s *Service) Create(ctx context.Context, user *userDatamodel.User, dto CreateProgramDTO) (*ProgramResponse, error) {
	if user == nil || !user.IsAdmin {
		return nil, internal.ErrAccessDenied
	}
	if dto.Name == "" {
		return nil, internal.NewValidationError("program name is required", internal.ErrCodeValidationFailed)
	}

	domain := NewProgram(dto.Name, dto.Description, dto.IsConfidential)
	record := ToDataModel(domain)
	if err := s.repo.Create(ctx, record); err != nil {
		s.logger.Error("failed to create program", "name", dto.Name, "error", err)
		return nil, err
	}

	s.logger.Info("program created",
		"program_id", record.ID,
		"confidential", record.IsConfidential)

	response := FromDataModel(record).ToResponse()
	return &response, nil
}

// Update applies partial changes. The confidential flag only moves in one
// direction: once set it can never be cleared, not even by an admin.
func (s *Service) Update(ctx context.Context, user *userDatamodel.User, id int64, dto UpdateProgramDTO) (*ProgramResponse, error) {
	if user == nil || !user.IsAdmin {
		return nil, internal.ErrAccessDenied
	}

	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if dto.IsConfidential != nil {
		if record.IsConfidential && !*dto.IsConfidential {
			return nil, internal.ErrConfidentialFlagFinal
		}
		record.IsConfidential = *dto.IsConfidential
	}
	if dto.Name != nil {
		if *dto.Name == "" {
			return nil, internal.NewValidationError("program name is required", internal.ErrCodeValidationFailed)
		}
		record.Name = *dto.Name
	}
	if dto.Description != nil {
		record.Description = *dto.Description
	}
	if dto.Status != nil {
		if *dto.Status != StatusActive && *dto.Status != StatusArchived {
			return nil, internal.NewValidationError("status must be active or archived", internal.ErrCodeValidationFailed)
		}
		record.Status = *dto.Status
	}

	if err := s.repo.Update(ctx, record); err != nil {
		s.logger.Error("failed to update program", "program_id", id, "error", err)
		return nil, err
	}

	response := FromDataModel(record).ToResponse()
	return &response, nil
}

package user

import (
	"context"
	"fmt"
)

type Repository interface {
	GetByID(ctx context.Context, userID int64) (*User, error)
	ActiveAdmins(ctx context.Context) ([]User, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
	}
}

func (s *Service) GetByID(ctx context.Context, userID int64) (*User, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return u, nil
}

// ActiveAdmins lists the recipients for elevated-export notifications.
func (s *Service) ActiveAdmins(ctx context.Context) ([]User, error) {
	admins, err := s.repo.ActiveAdmins(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active admins: %w", err)
	}
	return admins, nil
}

package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/nonprofit-tech/casevault/internal/access"
	accessDatamodel "github.com/nonprofit-tech/casevault/internal/core/datamodel/access"
	clientDatamodel "github.com/nonprofit-tech/casevault/internal/core/datamodel/client"
)

// AccessRepository implements access.Repository using GORM. Every method
// hits the database directly; decisions are never cached.
type AccessRepository struct {
	db *gorm.DB
}

func NewAccessRepository(db *gorm.DB) access.Repository {
	return &AccessRepository{db: db}
}

func (r *AccessRepository) RolesFor(ctx context.Context, userID int64) ([]access.RoleAssignment, error) {
	var rows []accessDatamodel.RoleAssignment
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	assignments := make([]access.RoleAssignment, 0, len(rows))
	for _, row := range rows {
		role, err := access.ParseRole(row.Role)
		if err != nil {
			// integrity violation: surface, never silently accept
			return nil, err
		}
		assignments = append(assignments, access.RoleAssignment{
			ProgramID: row.ProgramID,
			Role:      role,
			Status:    row.Status,
		})
	}
	return assignments, nil
}

func (r *AccessRepository) ProgramsWithRole(ctx context.Context, userID int64, status string) (access.ProgramSet, error) {
	var programIDs []int64
	err := r.db.WithContext(ctx).
		Model(&accessDatamodel.RoleAssignment{}).
		Where("user_id = ? AND status = ?", userID, status).
		Pluck("program_id", &programIDs).Error
	if err != nil {
		return nil, err
	}

	set := make(access.ProgramSet, len(programIDs))
	for _, id := range programIDs {
		set[id] = struct{}{}
	}
	return set, nil
}

func (r *AccessRepository) HasActiveBlock(ctx context.Context, userID, clientID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&accessDatamodel.AccessBlock{}).
		Where("user_id = ? AND client_id = ? AND is_active = ?", userID, clientID, true).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *AccessRepository) EnrolledPrograms(ctx context.Context, clientID int64) (access.ProgramSet, error) {
	var programIDs []int64
	err := r.db.WithContext(ctx).
		Model(&clientDatamodel.Enrollment{}).
		Where("client_id = ? AND status = ?", clientID, "enrolled").
		Pluck("program_id", &programIDs).Error
	if err != nil {
		return nil, err
	}

	set := make(access.ProgramSet, len(programIDs))
	for _, id := range programIDs {
		set[id] = struct{}{}
	}
	return set, nil
}

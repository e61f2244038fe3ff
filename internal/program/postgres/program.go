package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/nonprofit-tech/casevault/internal"
	"github.com/nonprofit-tech/casevault/internal/program"

	programDatamodel "github.com/nonprofit-tech/casevault/internal/core/datamodel/program"
)

type ProgramRepository struct {
	db *gorm.DB
}

func NewProgramRepository(db *gorm.DB) *ProgramRepository {
	return &ProgramRepository{db: db}
}

var _ program.RepositoryAPI = (*ProgramRepository)(nil)

func (r *ProgramRepository) GetAll(ctx context.Context) ([]*programDatamodel.Program, error) {
	var programs []*programDatamodel.Program
	err := r.db.WithContext(ctx).Order("name ASC").Find(&programs).Error
	return programs, err
}

func (r *ProgramRepository) GetByID(ctx context.Context, id int64) (*programDatamodel.Program, error) {
	var record programDatamodel.Program
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, internal.ErrProgramNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (r *ProgramRepository) GetByIDs(ctx context.Context, ids []int64) ([]*programDatamodel.Program, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var programs []*programDatamodel.Program
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("name ASC").Find(&programs).Error
	return programs, err
}

func (r *ProgramRepository) Create(ctx context.Context, record *programDatamodel.Program) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *ProgramRepository) Update(ctx context.Context, record *programDatamodel.Program) error {
	return r.db.WithContext(ctx).Save(record).Error
}

package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/nonprofit-tech/casevault/internal/auth"

	userDatamodel "github.com/nonprofit-tech/casevault/internal/core/datamodel/user"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) auth.UserRepository {
	return &Repository{db: db}
}

func (r *Repository) GetCredentials(ctx context.Context, email string) (string, int64, bool, error) {
	var user userDatamodel.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", 0, false, fmt.Errorf("user not found")
		}
		return "", 0, false, err
	}
	return user.PasswordHash, user.ID, user.IsActive, nil
}

func (r *Repository) GetUserByID(ctx context.Context, userID int64) (*userDatamodel.User, error) {
	var user userDatamodel.User
	err := r.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("user not found")
		}
		return nil, err
	}
	return &user, nil
}

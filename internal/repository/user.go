// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"

	"askbox/internal/models"
	"askbox/internal/observability"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users and the
// user side of the profile_managers join.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByIDs(ctx context.Context, ids []uint) ([]models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id uint) error
	ManagedProfileIDs(ctx context.Context, userID uint) ([]string, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// GetByID reads from the primary: ProfileIDs feed authorization and must not lag.
func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	defer observability.TrackQuery("get_by_id", "users")()

	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFoundOr(err, "User", id)
	}
	ids, err := r.ManagedProfileIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	user.ProfileIDs = ids
	return &user, nil
}

func (r *userRepository) GetByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	users := []models.User{}
	if len(ids) == 0 {
		return users, nil
	}
	if err := readDB(r.db).WithContext(ctx).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	var links []models.ProfileManager
	if err := readDB(r.db).WithContext(ctx).
		Where("user_id IN ?", ids).
		Order("created_at ASC").
		Find(&links).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	byUser := make(map[uint][]string, len(users))
	for _, l := range links {
		byUser[l.UserID] = append(byUser[l.UserID], l.ProfileID)
	}
	for i := range users {
		users[i].ProfileIDs = byUser[users[i].ID]
		if users[i].ProfileIDs == nil {
			users[i].ProfileIDs = []string{}
		}
	}
	return users, nil
}

// GetByEmail returns (nil, nil) when no user has the address.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := readDB(r.db).WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

// GetByUsername returns (nil, nil) when the name is free.
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := readDB(r.db).WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("User already exists")
		}
		return models.NewInternalError(err)
	}
	user.ProfileIDs = []string{}
	return nil
}

// Delete removes the user and releases its profiles. Profiles themselves are
// kept, even when this user was their last manager.
func (r *userRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&models.ProfileManager{}).Error; err != nil {
			return models.NewInternalError(err)
		}
		res := tx.Delete(&models.User{}, id)
		if res.Error != nil {
			return models.NewInternalError(res.Error)
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("User", id)
		}
		return nil
	})
}

func (r *userRepository) ManagedProfileIDs(ctx context.Context, userID uint) ([]string, error) {
	ids := []string{}
	if err := r.db.WithContext(ctx).
		Model(&models.ProfileManager{}).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Pluck("profile_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

package service

import (
	"context"
	"log/slog"

	"askbox/internal/middleware"
	"askbox/internal/models"
	"askbox/internal/repository"
)

type UserService struct {
	userRepo    repository.UserRepository
	profileRepo repository.ProfileRepository
}

func NewUserService(userRepo repository.UserRepository, profileRepo repository.ProfileRepository) *UserService {
	return &UserService{userRepo: userRepo, profileRepo: profileRepo}
}

func (s *UserService) Get(ctx context.Context, id uint, expand models.UserExpand) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if expand.Profiles {
		if user.Profiles, err = s.profileRepo.GetByIDs(ctx, user.ProfileIDs); err != nil {
			return nil, err
		}
	}
	return user, nil
}

// Delete removes the user. Profiles it managed stay, minus this manager.
func (s *UserService) Delete(ctx context.Context, id uint) error {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.userRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.profileRepo.Invalidate(ctx, user.ProfileIDs...)
	middleware.Logger.InfoContext(ctx, "User deleted",
		slog.Uint64("deleted_user_id", uint64(id)), slog.Int("released_profiles", len(user.ProfileIDs)))
	return nil
}

// AddProfile makes userID a manager of profileID. Repeating it is a no-op.
func (s *UserService) AddProfile(ctx context.Context, userID uint, profileID string, expand models.UserExpand) (*models.User, error) {
	if err := s.checkLink(ctx, userID, profileID); err != nil {
		return nil, err
	}
	if err := s.profileRepo.AddManager(ctx, profileID, userID); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID, expand)
}

// RemoveProfile drops userID from profileID's managers. Repeating it is a no-op.
func (s *UserService) RemoveProfile(ctx context.Context, userID uint, profileID string, expand models.UserExpand) (*models.User, error) {
	if err := s.checkLink(ctx, userID, profileID); err != nil {
		return nil, err
	}
	if err := s.profileRepo.RemoveManager(ctx, profileID, userID); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID, expand)
}

func (s *UserService) checkLink(ctx context.Context, userID uint, profileID string) error {
	if err := checkProfileID(profileID); err != nil {
		return err
	}
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return err
	}
	ok, err := s.profileRepo.Exists(ctx, profileID)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewNotFoundError("Profile", profileID)
	}
	return nil
}

package service

import (
	"context"
	"log/slog"

	"askbox/internal/events"
	"askbox/internal/middleware"
	"askbox/internal/models"
	"askbox/internal/observability"
	"askbox/internal/repository"
	"askbox/internal/validation"
)

// expandedListLimit bounds the posts and likes inlined by an expand.
const expandedListLimit = 100

type ProfileService struct {
	profileRepo repository.ProfileRepository
	postRepo    repository.PostRepository
	userRepo    repository.UserRepository
	publisher   events.Publisher
}

type CreateProfileInput struct {
	OwnerID uint
	Tag     string
	Name    string
}

// UpdateProfileInput carries a partial update. Nil fields are left unchanged.
type UpdateProfileInput struct {
	ID   string
	Tag  *string
	Name *string
}

func NewProfileService(
	profileRepo repository.ProfileRepository,
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	publisher events.Publisher,
) *ProfileService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &ProfileService{
		profileRepo: profileRepo,
		postRepo:    postRepo,
		userRepo:    userRepo,
		publisher:   publisher,
	}
}

func checkProfileID(id string) error {
	if err := validation.ValidateProfileID(id); err != nil {
		return models.NewValidationError(err.Error())
	}
	return nil
}

func (s *ProfileService) Get(ctx context.Context, id string, expand models.ProfileExpand) (*models.Profile, error) {
	if err := checkProfileID(id); err != nil {
		return nil, err
	}
	profile, err := s.profileRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.expand(ctx, profile, expand); err != nil {
		return nil, err
	}
	return profile, nil
}

// Create persists a profile with in.OwnerID as its only manager. A taken tag
// is a Conflict and nothing is written.
func (s *ProfileService) Create(ctx context.Context, in CreateProfileInput, expand models.ProfileExpand) (*models.Profile, error) {
	tag := validation.NormalizeTag(in.Tag)
	if err := validation.ValidateProfileTag(tag); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateProfileName(in.Name); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := s.ensureTagFree(ctx, tag, ""); err != nil {
		return nil, err
	}

	profile := &models.Profile{Tag: tag, Name: trimName(in.Name)}
	if err := s.profileRepo.Create(ctx, profile, in.OwnerID); err != nil {
		return nil, err
	}
	middleware.Logger.InfoContext(ctx, "Profile created",
		slog.String("profile_id", profile.ID), slog.String("tag", profile.Tag))

	if err := s.expand(ctx, profile, expand); err != nil {
		return nil, err
	}
	return profile, nil
}

// Update merges name and tag. The unique index stays the final arbiter for
// tags claimed concurrently.
func (s *ProfileService) Update(ctx context.Context, in UpdateProfileInput, expand models.ProfileExpand) (*models.Profile, error) {
	if err := checkProfileID(in.ID); err != nil {
		return nil, err
	}
	profile, err := s.profileRepo.GetByID(ctx, in.ID)
	if err != nil {
		return nil, err
	}

	if in.Tag != nil {
		tag := validation.NormalizeTag(*in.Tag)
		if err := validation.ValidateProfileTag(tag); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		if tag != profile.Tag {
			if err := s.ensureTagFree(ctx, tag, profile.ID); err != nil {
				return nil, err
			}
			profile.Tag = tag
		}
	}
	if in.Name != nil {
		if err := validation.ValidateProfileName(*in.Name); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		profile.Name = trimName(*in.Name)
	}

	if err := s.profileRepo.Update(ctx, profile); err != nil {
		return nil, err
	}
	if err := s.expand(ctx, profile, expand); err != nil {
		return nil, err
	}
	return profile, nil
}

// Delete removes the profile and returns its last state. An absent profile is
// a NotFound, so callers can tell a deletion from a no-op.
func (s *ProfileService) Delete(ctx context.Context, id string) (*models.Profile, error) {
	if err := checkProfileID(id); err != nil {
		return nil, err
	}
	followers, err := s.profileRepo.FollowerIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	profile, err := s.profileRepo.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	middleware.Logger.InfoContext(ctx, "Profile deleted",
		slog.String("profile_id", id), slog.String("tag", profile.Tag),
		slog.Int("followers", len(followers)))
	events.Emit(ctx, s.publisher, events.Event{Type: events.TypeProfileDeleted, ProfileID: id})
	// Followers lose an edge; tell each of them which followee went away.
	for _, followerID := range followers {
		events.Emit(ctx, s.publisher, events.Event{
			Type:      events.TypeProfileDeleted,
			ProfileID: followerID,
			ActorID:   id,
		})
	}
	return profile, nil
}

// Follow makes followerID follow profileID. Repeating it is a no-op.
func (s *ProfileService) Follow(ctx context.Context, profileID, followerID string) error {
	if err := s.checkEdge(ctx, profileID, followerID); err != nil {
		return err
	}
	created, err := s.profileRepo.Follow(ctx, followerID, profileID)
	if err != nil {
		return err
	}
	observability.GraphEdgeMutations.WithLabelValues("follow").Inc()
	if created {
		events.Emit(ctx, s.publisher, events.Event{
			Type:      events.TypeProfileFollowed,
			ProfileID: profileID,
			ActorID:   followerID,
		})
	}
	return nil
}

// Unfollow removes the edge followerID -> profileID if it exists.
func (s *ProfileService) Unfollow(ctx context.Context, profileID, followerID string) error {
	if err := s.checkEdge(ctx, profileID, followerID); err != nil {
		return err
	}
	removed, err := s.profileRepo.Unfollow(ctx, followerID, profileID)
	if err != nil {
		return err
	}
	observability.GraphEdgeMutations.WithLabelValues("unfollow").Inc()
	if removed {
		events.Emit(ctx, s.publisher, events.Event{
			Type:      events.TypeProfileUnfollowed,
			ProfileID: profileID,
			ActorID:   followerID,
		})
	}
	return nil
}

func (s *ProfileService) GetFollowers(ctx context.Context, id string, expand models.ProfileExpand) ([]models.Profile, error) {
	if err := s.ensureExists(ctx, id); err != nil {
		return nil, err
	}
	profiles, err := s.profileRepo.Followers(ctx, id)
	if err != nil {
		return nil, err
	}
	return profiles, s.expandAll(ctx, profiles, expand)
}

func (s *ProfileService) GetFollowing(ctx context.Context, id string, expand models.ProfileExpand) ([]models.Profile, error) {
	if err := s.ensureExists(ctx, id); err != nil {
		return nil, err
	}
	profiles, err := s.profileRepo.Following(ctx, id)
	if err != nil {
		return nil, err
	}
	return profiles, s.expandAll(ctx, profiles, expand)
}

// GetFollowingIDs returns only the ids of the profiles id follows, without its
// own id.
func (s *ProfileService) GetFollowingIDs(ctx context.Context, id string) ([]string, error) {
	if err := s.ensureExists(ctx, id); err != nil {
		return nil, err
	}
	return s.profileRepo.FollowingIDs(ctx, id)
}

// Annotate sets Relationship on each profile relative to viewerID.
func (s *ProfileService) Annotate(ctx context.Context, viewerID string, profiles ...*models.Profile) error {
	if err := s.ensureExists(ctx, viewerID); err != nil {
		return err
	}
	ids := make([]string, len(profiles))
	for i, p := range profiles {
		ids[i] = p.ID
	}
	rels, err := s.profileRepo.Relationships(ctx, viewerID, ids)
	if err != nil {
		return err
	}
	for _, p := range profiles {
		rel := rels[p.ID]
		p.Relationship = &rel
	}
	return nil
}

func (s *ProfileService) checkEdge(ctx context.Context, profileID, followerID string) error {
	if profileID == followerID {
		return models.NewValidationError("A profile cannot follow itself")
	}
	if err := s.ensureExists(ctx, profileID); err != nil {
		return err
	}
	return s.ensureExists(ctx, followerID)
}

func (s *ProfileService) ensureExists(ctx context.Context, id string) error {
	if err := checkProfileID(id); err != nil {
		return err
	}
	ok, err := s.profileRepo.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewNotFoundError("Profile", id)
	}
	return nil
}

func (s *ProfileService) ensureTagFree(ctx context.Context, tag, selfID string) error {
	existing, err := s.profileRepo.GetByTag(ctx, tag)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != selfID {
		return models.NewConflictError("Profile tag already taken")
	}
	return nil
}

func (s *ProfileService) expandAll(ctx context.Context, profiles []models.Profile, expand models.ProfileExpand) error {
	if !expand.Any() {
		return nil
	}
	for i := range profiles {
		if err := s.expand(ctx, &profiles[i], expand); err != nil {
			return err
		}
	}
	return nil
}

func (s *ProfileService) expand(ctx context.Context, p *models.Profile, expand models.ProfileExpand) error {
	if !expand.Any() {
		return nil
	}
	var err error
	if expand.Posts {
		if p.Posts, err = s.postRepo.ListByAuthors(ctx, []string{p.ID}, expandedListLimit, nil); err != nil {
			return err
		}
	}
	if expand.Managers {
		if p.Managers, err = s.userRepo.GetByIDs(ctx, p.ManagerIDs); err != nil {
			return err
		}
	}
	if expand.Following {
		if p.Following, err = s.profileRepo.Following(ctx, p.ID); err != nil {
			return err
		}
	}
	if expand.Followers {
		if p.Followers, err = s.profileRepo.Followers(ctx, p.ID); err != nil {
			return err
		}
	}
	if expand.Likes {
		if p.Likes, err = s.postRepo.LikedBy(ctx, p.ID, expandedListLimit); err != nil {
			return err
		}
	}
	return nil
}

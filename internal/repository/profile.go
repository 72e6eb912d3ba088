package repository

import (
	"context"
	"sort"

	"askbox/internal/cache"
	"askbox/internal/models"
	"askbox/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileRepository persists profiles, their managers, and the follow graph.
// Follow edges live in one directed table; followers and following are its two
// query directions.
type ProfileRepository interface {
	GetByID(ctx context.Context, id string) (*models.Profile, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.Profile, error)
	GetByTag(ctx context.Context, tag string) (*models.Profile, error)
	Exists(ctx context.Context, id string) (bool, error)
	Create(ctx context.Context, profile *models.Profile, ownerID uint) error
	Update(ctx context.Context, profile *models.Profile) error
	Delete(ctx context.Context, id string) (*models.Profile, error)

	Follow(ctx context.Context, followerID, followedID string) (bool, error)
	Unfollow(ctx context.Context, followerID, followedID string) (bool, error)
	Followers(ctx context.Context, id string) ([]models.Profile, error)
	Following(ctx context.Context, id string) ([]models.Profile, error)
	FollowerIDs(ctx context.Context, id string) ([]string, error)
	FollowingIDs(ctx context.Context, id string) ([]string, error)
	Relationships(ctx context.Context, viewerID string, ids []string) (map[string]models.Relationship, error)

	ManagerIDs(ctx context.Context, id string) ([]uint, error)
	AddManager(ctx context.Context, profileID string, userID uint) error
	RemoveManager(ctx context.Context, profileID string, userID uint) error
	Invalidate(ctx context.Context, ids ...string)
}

type profileRepository struct {
	db    *gorm.DB
	cache *cache.Store
}

// NewProfileRepository returns a ProfileRepository. store may be nil to run
// without Redis.
func NewProfileRepository(db *gorm.DB, store *cache.Store) ProfileRepository {
	return &profileRepository{db: db, cache: store}
}

// GetByID is cache-aside and, like FollowingIDs, refills from the primary:
// ManagerIDs must reflect manager edits made a moment ago.
func (r *profileRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	ctx, span := observability.TraceRepositoryMethod(ctx, "GetByID", "profiles")
	var profile models.Profile
	err := r.cache.Aside(ctx, cache.NameProfile, cache.ProfileKey(id), &profile, cache.ProfileTTL, func() error {
		defer observability.TrackQuery("get_by_id", "profiles")()
		if err := r.db.WithContext(ctx).First(&profile, "id = ?", id).Error; err != nil {
			return notFoundOr(err, "Profile", id)
		}
		managers, err := r.ManagerIDs(ctx, id)
		if err != nil {
			return err
		}
		profile.ManagerIDs = managers
		return nil
	})
	observability.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetByIDs returns the profiles that exist among ids, ordered by tag.
func (r *profileRepository) GetByIDs(ctx context.Context, ids []string) ([]models.Profile, error) {
	profiles := []models.Profile{}
	if len(ids) == 0 {
		return profiles, nil
	}
	if err := readDB(r.db).WithContext(ctx).
		Where("id IN ?", ids).
		Order("tag ASC").
		Find(&profiles).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := r.attachManagerIDs(ctx, profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

// GetByTag returns (nil, nil) when the tag is free.
func (r *profileRepository) GetByTag(ctx context.Context, tag string) (*models.Profile, error) {
	var profiles []models.Profile
	if err := r.db.WithContext(ctx).Where("tag = ?", tag).Limit(1).Find(&profiles).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	if len(profiles) == 0 {
		return nil, nil
	}
	return &profiles[0], nil
}

func (r *profileRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// Create inserts the profile and its first manager in one transaction. A tag
// collision writes nothing and returns a Conflict.
func (r *profileRepository) Create(ctx context.Context, profile *models.Profile, ownerID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(profile).Error; err != nil {
			return err
		}
		return tx.Create(&models.ProfileManager{ProfileID: profile.ID, UserID: ownerID}).Error
	})
	if err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Profile tag already taken")
		}
		return models.NewInternalError(err)
	}
	profile.ManagerIDs = []uint{ownerID}
	return nil
}

// Update writes the mutable columns, tag and name.
func (r *profileRepository) Update(ctx context.Context, profile *models.Profile) error {
	res := r.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("id = ?", profile.ID).
		Updates(map[string]any{"tag": profile.Tag, "name": profile.Name})
	if res.Error != nil {
		if isUniqueConstraintError(res.Error) {
			return models.NewConflictError("Profile tag already taken")
		}
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Profile", profile.ID)
	}
	r.cache.Invalidate(ctx, cache.ProfileKey(profile.ID))
	return nil
}

// Delete removes the profile with everything it owns: both directions of its
// follow edges, its likes, questions asked or received, its posts and their
// likes, and its manager links. Users are released, not deleted. It returns
// the profile as it was before deletion.
func (r *profileRepository) Delete(ctx context.Context, id string) (*models.Profile, error) {
	var snapshot models.Profile
	var followerIDs []string
	var postIDs []uint

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&snapshot, "id = ?", id).Error; err != nil {
			return notFoundOr(err, "Profile", id)
		}
		if err := tx.Model(&models.ProfileManager{}).
			Where("profile_id = ?", id).
			Order("created_at ASC").
			Pluck("user_id", &snapshot.ManagerIDs).Error; err != nil {
			return models.NewInternalError(err)
		}
		if err := tx.Model(&models.Follow{}).
			Where("followed_id = ?", id).
			Pluck("follower_id", &followerIDs).Error; err != nil {
			return models.NewInternalError(err)
		}
		if err := tx.Model(&models.Post{}).
			Where("author_id = ?", id).
			Pluck("id", &postIDs).Error; err != nil {
			return models.NewInternalError(err)
		}

		questions := tx.Model(&models.Question{}).Select("id").
			Where("from_id = ? OR recipient_id = ?", id, id)
		authored := tx.Model(&models.Post{}).Select("id").Where("author_id = ?", id)

		steps := []func() error{
			func() error {
				return tx.Where("follower_id = ? OR followed_id = ?", id, id).Delete(&models.Follow{}).Error
			},
			func() error { return tx.Where("profile_id = ?", id).Delete(&models.PostLike{}).Error },
			func() error { return tx.Where("post_id IN (?)", authored).Delete(&models.PostLike{}).Error },
			func() error {
				return tx.Model(&models.Post{}).Where("question_id IN (?)", questions).Update("question_id", nil).Error
			},
			func() error { return tx.Where("author_id = ?", id).Delete(&models.Post{}).Error },
			func() error {
				return tx.Where("from_id = ? OR recipient_id = ?", id, id).Delete(&models.Question{}).Error
			},
			func() error { return tx.Where("profile_id = ?", id).Delete(&models.ProfileManager{}).Error },
			func() error { return tx.Where("id = ?", id).Delete(&models.Profile{}).Error },
		}
		for _, step := range steps {
			if err := step(); err != nil {
				return models.NewInternalError(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	keys := []string{cache.ProfileKey(id), cache.FollowingKey(id)}
	for _, f := range followerIDs {
		keys = append(keys, cache.FollowingKey(f))
	}
	for _, p := range postIDs {
		keys = append(keys, cache.PostKey(p))
	}
	r.cache.Invalidate(ctx, keys...)
	return &snapshot, nil
}

// Follow inserts followerID -> followedID. It reports whether a new edge was
// created; an existing edge is left untouched.
func (r *profileRepository) Follow(ctx context.Context, followerID, followedID string) (bool, error) {
	defer observability.TrackQuery("follow", "follows")()

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Follow{FollowerID: followerID, FollowedID: followedID})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	r.cache.Invalidate(ctx, cache.FollowingKey(followerID))
	return res.RowsAffected > 0, nil
}

// Unfollow removes the edge if present and reports whether it existed.
func (r *profileRepository) Unfollow(ctx context.Context, followerID, followedID string) (bool, error) {
	defer observability.TrackQuery("unfollow", "follows")()

	res := r.db.WithContext(ctx).
		Where("follower_id = ? AND followed_id = ?", followerID, followedID).
		Delete(&models.Follow{})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	r.cache.Invalidate(ctx, cache.FollowingKey(followerID))
	return res.RowsAffected > 0, nil
}

// Followers lists profiles following id, most recent follow first.
func (r *profileRepository) Followers(ctx context.Context, id string) ([]models.Profile, error) {
	return r.edgeProfiles(ctx, "follows.follower_id", "follows.followed_id", id)
}

// Following lists profiles id follows, most recent follow first.
func (r *profileRepository) Following(ctx context.Context, id string) ([]models.Profile, error) {
	return r.edgeProfiles(ctx, "follows.followed_id", "follows.follower_id", id)
}

func (r *profileRepository) edgeProfiles(ctx context.Context, joinCol, matchCol, id string) ([]models.Profile, error) {
	defer observability.TrackQuery("list_edges", "follows")()

	profiles := []models.Profile{}
	if err := readDB(r.db).WithContext(ctx).
		Model(&models.Profile{}).
		Joins("JOIN follows ON "+joinCol+" = profiles.id").
		Where(matchCol+" = ?", id).
		Order("follows.created_at DESC").
		Order("profiles.id ASC").
		Find(&profiles).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := r.attachManagerIDs(ctx, profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

// FollowerIDs reads the primary; profile deletion uses it to notify every
// follower, including one that followed a moment ago.
func (r *profileRepository) FollowerIDs(ctx context.Context, id string) ([]string, error) {
	ids := []string{}
	if err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("followed_id = ?", id).
		Order("created_at DESC").
		Pluck("follower_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

// FollowingIDs plucks one column of the edge table, cache-aside. It reads the
// primary so an invalidated entry is never refilled from a lagging replica.
// The profile's own id is never included.
func (r *profileRepository) FollowingIDs(ctx context.Context, id string) ([]string, error) {
	ids := []string{}
	err := r.cache.Aside(ctx, cache.NameFollowing, cache.FollowingKey(id), &ids, cache.FollowingTTL, func() error {
		defer observability.TrackQuery("following_ids", "follows")()
		if err := r.db.WithContext(ctx).
			Model(&models.Follow{}).
			Where("follower_id = ?", id).
			Order("created_at DESC").
			Pluck("followed_id", &ids).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Relationships reports, for each of ids, whether viewerID follows it and
// whether it follows viewerID. Every id gets an entry.
func (r *profileRepository) Relationships(ctx context.Context, viewerID string, ids []string) (map[string]models.Relationship, error) {
	out := make(map[string]models.Relationship, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var edges []models.Follow
	if err := readDB(r.db).WithContext(ctx).
		Where("(follower_id = ? AND followed_id IN ?) OR (followed_id = ? AND follower_id IN ?)",
			viewerID, ids, viewerID, ids).
		Find(&edges).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, id := range ids {
		out[id] = models.Relationship{}
	}
	for _, e := range edges {
		if e.FollowerID == viewerID {
			rel := out[e.FollowedID]
			rel.Following = true
			out[e.FollowedID] = rel
		}
		if e.FollowedID == viewerID {
			rel := out[e.FollowerID]
			rel.FollowedBy = true
			out[e.FollowerID] = rel
		}
	}
	return out, nil
}

func (r *profileRepository) ManagerIDs(ctx context.Context, id string) ([]uint, error) {
	ids := []uint{}
	if err := r.db.WithContext(ctx).
		Model(&models.ProfileManager{}).
		Where("profile_id = ?", id).
		Order("created_at ASC").
		Pluck("user_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

// AddManager is idempotent.
func (r *profileRepository) AddManager(ctx context.Context, profileID string, userID uint) error {
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.ProfileManager{ProfileID: profileID, UserID: userID}).Error; err != nil {
		return models.NewInternalError(err)
	}
	r.cache.Invalidate(ctx, cache.ProfileKey(profileID))
	return nil
}

// RemoveManager is idempotent. Removing the last manager leaves the profile
// in place with nobody able to act as it.
func (r *profileRepository) RemoveManager(ctx context.Context, profileID string, userID uint) error {
	if err := r.db.WithContext(ctx).
		Where("profile_id = ? AND user_id = ?", profileID, userID).
		Delete(&models.ProfileManager{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	r.cache.Invalidate(ctx, cache.ProfileKey(profileID))
	return nil
}

// Invalidate drops cached profile rows, e.g. after their manager set changed
// through a user deletion.
func (r *profileRepository) Invalidate(ctx context.Context, ids ...string) {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, cache.ProfileKey(id))
	}
	r.cache.Invalidate(ctx, keys...)
}

func (r *profileRepository) attachManagerIDs(ctx context.Context, profiles []models.Profile) error {
	if len(profiles) == 0 {
		return nil
	}
	ids := make([]string, len(profiles))
	for i := range profiles {
		ids[i] = profiles[i].ID
	}

	var links []models.ProfileManager
	if err := readDB(r.db).WithContext(ctx).
		Where("profile_id IN ?", ids).
		Find(&links).Error; err != nil {
		return models.NewInternalError(err)
	}
	sort.SliceStable(links, func(i, j int) bool { return links[i].CreatedAt.Before(links[j].CreatedAt) })

	byProfile := make(map[string][]uint, len(profiles))
	for _, l := range links {
		byProfile[l.ProfileID] = append(byProfile[l.ProfileID], l.UserID)
	}
	for i := range profiles {
		profiles[i].ManagerIDs = byProfile[profiles[i].ID]
		if profiles[i].ManagerIDs == nil {
			profiles[i].ManagerIDs = []uint{}
		}
	}
	return nil
}
